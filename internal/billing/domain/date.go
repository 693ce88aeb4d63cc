package billing

import "time"

// Day normalizes t to its calendar date at UTC midnight. Billing dates are
// civil dates; the zone they were observed in is resolved before this call.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses YYYY-MM-DD into a billing date.
func ParseDay(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}
