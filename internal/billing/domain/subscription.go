package billing

import (
	"context"
	"slices"
	"time"
)

// Subscription is a flat-rate service active over [StartDate, EndDate).
// A nil EndDate is open-ended.
type Subscription struct {
	ID        string
	CompanyID string
	ServiceID string
	StartDate time.Time
	EndDate   *time.Time
	UpdatedAt time.Time
}

// Validate checks subscription invariants.
func (s Subscription) Validate() error {
	if s.ID == "" {
		return ErrEmptyID
	}
	if s.CompanyID == "" {
		return ErrEmptyCompanyID
	}
	if s.ServiceID == "" {
		return ErrUnknownService
	}
	if s.StartDate.IsZero() {
		return ErrInvalidDate
	}
	if s.EndDate != nil && Day(*s.EndDate).Before(Day(s.StartDate)) {
		return ErrInvalidWindow
	}
	return nil
}

// ActiveOn reports whether the subscription covers date.
func (s Subscription) ActiveOn(date time.Time) bool {
	date = Day(date)
	if date.Before(Day(s.StartDate)) {
		return false
	}
	return s.EndDate == nil || date.Before(Day(*s.EndDate))
}

// Window returns the subscription's active window.
func (s Subscription) Window() Window {
	w := Window{From: Day(s.StartDate)}
	if s.EndDate != nil {
		end := Day(*s.EndDate)
		w.To = &end
	}
	return w
}

// Clone returns a deep copy.
func (s Subscription) Clone() Subscription {
	out := s
	if s.EndDate != nil {
		end := *s.EndDate
		out.EndDate = &end
	}
	return out
}

// Window is a half-open date range [From, To). A nil To is unbounded.
type Window struct {
	From time.Time
	To   *time.Time
}

// Contains reports whether date lies in the window.
func (w Window) Contains(date time.Time) bool {
	date = Day(date)
	if date.Before(w.From) {
		return false
	}
	return w.To == nil || date.Before(*w.To)
}

// Union returns the smallest window covering both.
func (w Window) Union(other Window) Window {
	out := Window{From: w.From}
	if other.From.Before(out.From) {
		out.From = other.From
	}
	if w.To == nil || other.To == nil {
		return out
	}
	to := *w.To
	if other.To.After(to) {
		to = *other.To
	}
	out.To = &to
	return out
}

// ServiceIDs returns the sorted service ids of subs, one entry per
// subscription. Two active subscriptions to one service are both charged.
func ServiceIDs(subs []Subscription) []string {
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ServiceID)
	}
	slices.Sort(ids)
	return ids
}

// SubscriptionRepository stores subscriptions. Get returns (nil, nil) when missing.
type SubscriptionRepository interface {
	Get(ctx context.Context, id string) (*Subscription, error)
	Save(ctx context.Context, sub *Subscription) error
	ListActiveOn(ctx context.Context, companyID string, date time.Time) ([]Subscription, error)
}
