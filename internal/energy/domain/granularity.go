package energy

import "time"

// Granularity is the resolution of a reconciled bucket.
type Granularity string

const (
	GranularityHour    Granularity = "HOUR"
	GranularityDay     Granularity = "DAY"
	GranularityMonth   Granularity = "MONTH"
	GranularitySummary Granularity = "SUMMARY"
)

// IsValid reports whether g is supported.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityHour, GranularityDay, GranularityMonth, GranularitySummary:
		return true
	default:
		return false
	}
}

// TimeKey is the display key of a bucket's period start.
type TimeKey string

// NewTimeKey formats a period start for its granularity. Hour keys carry the
// zone offset so repeated wall-clock hours stay distinct.
func NewTimeKey(g Granularity, periodStart time.Time) (TimeKey, error) {
	switch g {
	case GranularityHour:
		return TimeKey(periodStart.Format("2006-01-02T15:04-07:00")), nil
	case GranularityDay:
		return TimeKey(periodStart.Format("2006-01-02")), nil
	case GranularityMonth:
		return TimeKey(periodStart.Format("2006-01")), nil
	default:
		return "", ErrInvalidGranularity
	}
}

// String returns the raw key.
func (k TimeKey) String() string { return string(k) }
