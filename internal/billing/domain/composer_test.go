package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gib = int64(1) << 30

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func testComposer(t *testing.T) *Composer {
	t.Helper()
	rates := DefaultRates()
	rates.ServiceRates = map[string]decimal.Decimal{"analytics": d("10"), "backup": d("2.5")}
	c, err := NewComposer(rates)
	require.NoError(t, err)
	return c
}

func TestStorageAmountFreeAllowance(t *testing.T) {
	c := testComposer(t)
	assert.True(t, c.StorageAmount(19*gib).IsZero())
	assert.True(t, c.StorageAmount(20*gib).IsZero())
	assert.True(t, c.StorageAmount(21*gib).Equal(c.Rates().StoragePerGBRate))
}

func TestStorageAmountPartialGiBRoundsHalfUp(t *testing.T) {
	c := testComposer(t)
	// 0.25 GiB over at 0.5 per GiB = 0.125
	assert.Equal(t, "0.13", c.StorageAmount(20*gib+gib/4).StringFixed(2))
}

func TestComposeSumsComponents(t *testing.T) {
	c := testComposer(t)
	b, err := c.Compose(5000, 3, 19*gib, []string{"analytics"})
	require.NoError(t, err)
	assert.True(t, b.APICallAmount.Equal(d("5")))
	assert.True(t, b.IoTInstallationAmount.Equal(d("3")))
	assert.True(t, b.StorageAmount.IsZero())
	assert.True(t, b.SubscriptionAmount.Equal(d("10")))
	assert.True(t, b.Amount.Equal(d("18")))
}

func TestRecalculateAmountAfterCancel(t *testing.T) {
	c := testComposer(t)
	fact := MeteredUsageFact{ID: "f1", CompanyID: "c1", UsageDate: date(2024, 3, 1), APICallCount: 5000, IoTInstallationCount: 3}

	before, err := c.RecalculateAmount(fact, []string{"analytics"}, 0)
	require.NoError(t, err)
	assert.True(t, before.Equal(d("18")))

	after, err := c.RecalculateAmount(fact, nil, 0)
	require.NoError(t, err)
	assert.True(t, after.Equal(d("8")))
}

func TestComposeUnknownService(t *testing.T) {
	c := testComposer(t)
	_, err := c.Compose(1, 1, 0, []string{"missing"})
	assert.ErrorIs(t, err, ErrUnknownService)
}

func TestComposeRejectsNegative(t *testing.T) {
	c := testComposer(t)
	_, err := c.Compose(-1, 0, 0, nil)
	assert.ErrorIs(t, err, ErrNegativeQuantity)
}

func TestNewComposerRejectsNegativeRate(t *testing.T) {
	rates := DefaultRates()
	rates.IoTUnitRate = d("-1")
	_, err := NewComposer(rates)
	assert.ErrorIs(t, err, ErrInvalidRates)
}

func TestSummarizeUsesLatestIoTCount(t *testing.T) {
	c := testComposer(t)
	facts := []MeteredUsageFact{
		{ID: "a", CompanyID: "c1", UsageDate: date(2024, 3, 3), APICallCount: 1000, IoTInstallationCount: 5, DatabaseStorageBytes: 21 * gib},
		{ID: "b", CompanyID: "c1", UsageDate: date(2024, 3, 1), APICallCount: 2000, IoTInstallationCount: 2, DatabaseStorageBytes: 30 * gib},
		{ID: "c", CompanyID: "c1", UsageDate: date(2024, 3, 2), APICallCount: 3000, IoTInstallationCount: 4, DatabaseStorageBytes: 25 * gib},
	}
	s, err := c.Summarize("c1", date(2024, 3, 1), date(2024, 3, 3), facts, []string{"backup"})
	require.NoError(t, err)

	assert.Equal(t, int64(6000), s.APICallCount)
	assert.Equal(t, int64(5), s.IoTInstallationCount)
	assert.Equal(t, 21*gib, s.DatabaseStorageBytes)
	assert.True(t, s.APICallAmount.Equal(d("6")))
	assert.True(t, s.IoTInstallationAmount.Equal(d("5")))
	assert.True(t, s.StorageAmount.Equal(d("0.5")))
	assert.True(t, s.SubscriptionAmount.Equal(d("2.5")))
	assert.True(t, s.Amount.Equal(d("14")))
}

func TestSummarizeEmpty(t *testing.T) {
	c := testComposer(t)
	s, err := c.Summarize("c1", date(2024, 3, 1), date(2024, 3, 31), nil, nil)
	require.NoError(t, err)
	assert.True(t, s.Amount.IsZero())
	assert.NotNil(t, s.ServiceIDs)
}
