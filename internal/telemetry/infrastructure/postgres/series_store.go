package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	telemetry "energy-billing/internal/telemetry/domain"
)

const (
	defaultReadingsTable  = "meter_readings"
	defaultForecastsTable = "energy_forecasts"
)

// SeriesStore reads readings and forecasts from Postgres.
type SeriesStore struct {
	db             *sql.DB
	readingsTable  string
	forecastsTable string
}

// SeriesOption configures the store.
type SeriesOption func(*SeriesStore)

// WithReadingsTable overrides the readings table name.
func WithReadingsTable(table string) SeriesOption {
	return func(s *SeriesStore) {
		if table != "" {
			s.readingsTable = table
		}
	}
}

// WithForecastsTable overrides the forecasts table name.
func WithForecastsTable(table string) SeriesOption {
	return func(s *SeriesStore) {
		if table != "" {
			s.forecastsTable = table
		}
	}
}

// NewSeriesStore constructs a store with default table names.
func NewSeriesStore(db *sql.DB, opts ...SeriesOption) *SeriesStore {
	s := &SeriesStore{db: db, readingsTable: defaultReadingsTable, forecastsTable: defaultForecastsTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Readings returns readings of a company within [From, To).
func (s *SeriesStore) Readings(ctx context.Context, companyID string, window telemetry.Range) ([]telemetry.MeterReading, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("series store: nil db")
	}
	if companyID == "" {
		return nil, telemetry.ErrInvalidQuery
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT device_id, company_id, ts, usage
FROM %s
WHERE company_id = $1
	AND ts >= $2
	AND ts < $3
ORDER BY ts ASC, device_id ASC`, s.readingsTable)

	rows, err := s.db.QueryContext(ctx, query, companyID, window.From.UTC(), window.To.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetry.MeterReading
	for rows.Next() {
		var r telemetry.MeterReading
		if err := rows.Scan(&r.DeviceID, &r.CompanyID, &r.Timestamp, &r.Usage); err != nil {
			return nil, err
		}
		r.Timestamp = r.Timestamp.UTC()
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Forecasts returns forecasts of a company within [From, To).
func (s *SeriesStore) Forecasts(ctx context.Context, companyID string, window telemetry.Range) ([]telemetry.ForecastPoint, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("series store: nil db")
	}
	if companyID == "" {
		return nil, telemetry.ErrInvalidQuery
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT company_id, ts, forecast
FROM %s
WHERE company_id = $1
	AND ts >= $2
	AND ts < $3
ORDER BY ts ASC`, s.forecastsTable)

	rows, err := s.db.QueryContext(ctx, query, companyID, window.From.UTC(), window.To.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetry.ForecastPoint
	for rows.Next() {
		var p telemetry.ForecastPoint
		if err := rows.Scan(&p.CompanyID, &p.Timestamp, &p.Forecast); err != nil {
			return nil, err
		}
		p.Timestamp = p.Timestamp.UTC()
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
