package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuery is returned for empty ids or inverted time ranges.
var ErrInvalidQuery = errors.New("telemetry: invalid query")

// MeterReading is one ingested device reading. Timestamps are UTC.
type MeterReading struct {
	DeviceID  string
	CompanyID string
	Timestamp time.Time
	Usage     decimal.Decimal
}

// ForecastPoint is one forecast value for a company. Timestamps are UTC.
type ForecastPoint struct {
	CompanyID string
	Timestamp time.Time
	Forecast  decimal.Decimal
}

// Range is a half-open UTC interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// Validate checks the range is non-empty and ordered.
func (r Range) Validate() error {
	if r.From.IsZero() || r.To.IsZero() || !r.From.Before(r.To) {
		return ErrInvalidQuery
	}
	return nil
}

// Contains reports whether t lies in [From, To).
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// ReadingStore is the read-only reading store.
type ReadingStore interface {
	Readings(ctx context.Context, companyID string, window Range) ([]MeterReading, error)
}

// ForecastStore is the read-only forecast store.
type ForecastStore interface {
	Forecasts(ctx context.Context, companyID string, window Range) ([]ForecastPoint, error)
}

// Store provides both series.
type Store interface {
	ReadingStore
	ForecastStore
}
