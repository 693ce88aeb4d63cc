package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionActiveOnEndExclusive(t *testing.T) {
	end := date(2024, 3, 10)
	s := Subscription{ID: "s1", CompanyID: "c1", ServiceID: "analytics", StartDate: date(2024, 3, 1), EndDate: &end}

	assert.False(t, s.ActiveOn(date(2024, 2, 29)))
	assert.True(t, s.ActiveOn(date(2024, 3, 1)))
	assert.True(t, s.ActiveOn(date(2024, 3, 9)))
	assert.False(t, s.ActiveOn(date(2024, 3, 10)))
}

func TestSubscriptionOpenEnded(t *testing.T) {
	s := Subscription{StartDate: date(2024, 3, 1)}
	assert.True(t, s.ActiveOn(date(2030, 1, 1)))
}

func TestSubscriptionValidate(t *testing.T) {
	end := date(2024, 2, 1)
	s := Subscription{ID: "s1", CompanyID: "c1", ServiceID: "x", StartDate: date(2024, 3, 1), EndDate: &end}
	assert.ErrorIs(t, s.Validate(), ErrInvalidWindow)

	s.EndDate = nil
	assert.NoError(t, s.Validate())
}

func TestWindowUnion(t *testing.T) {
	e1, e2 := date(2024, 3, 10), date(2024, 4, 1)
	a := Window{From: date(2024, 3, 5), To: &e1}
	b := Window{From: date(2024, 3, 1), To: &e2}

	u := a.Union(b)
	assert.Equal(t, date(2024, 3, 1), u.From)
	if assert.NotNil(t, u.To) {
		assert.Equal(t, e2, *u.To)
	}

	open := a.Union(Window{From: date(2024, 3, 20)})
	assert.Nil(t, open.To)
	assert.True(t, open.Contains(date(2099, 1, 1)))
}

func TestServiceIDsSortedKeepsEachSubscription(t *testing.T) {
	subs := []Subscription{{ServiceID: "b"}, {ServiceID: "a"}, {ServiceID: "b"}}
	assert.Equal(t, []string{"a", "b", "b"}, ServiceIDs(subs))
}

func TestDayDropsZone(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	assert.Equal(t, date(2024, 3, 1), Day(time.Date(2024, 3, 1, 0, 30, 0, 0, seoul)))
}
