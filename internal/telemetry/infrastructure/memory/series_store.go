package memory

import (
	"context"
	"sort"
	"sync"

	telemetry "energy-billing/internal/telemetry/domain"
)

// SeriesStore keeps readings and forecasts in memory.
type SeriesStore struct {
	mu        sync.RWMutex
	readings  []telemetry.MeterReading
	forecasts []telemetry.ForecastPoint
}

// NewSeriesStore constructs an empty store.
func NewSeriesStore() *SeriesStore {
	return &SeriesStore{}
}

// AddReadings appends readings.
func (s *SeriesStore) AddReadings(readings ...telemetry.MeterReading) {
	s.mu.Lock()
	s.readings = append(s.readings, readings...)
	s.mu.Unlock()
}

// AddForecasts appends forecasts.
func (s *SeriesStore) AddForecasts(points ...telemetry.ForecastPoint) {
	s.mu.Lock()
	s.forecasts = append(s.forecasts, points...)
	s.mu.Unlock()
}

// Readings returns readings of a company within [From, To) ordered by time.
func (s *SeriesStore) Readings(ctx context.Context, companyID string, window telemetry.Range) ([]telemetry.MeterReading, error) {
	_ = ctx
	if companyID == "" {
		return nil, telemetry.ErrInvalidQuery
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []telemetry.MeterReading
	for _, r := range s.readings {
		if r.CompanyID == companyID && window.Contains(r.Timestamp) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Forecasts returns forecasts of a company within [From, To) ordered by time.
func (s *SeriesStore) Forecasts(ctx context.Context, companyID string, window telemetry.Range) ([]telemetry.ForecastPoint, error) {
	_ = ctx
	if companyID == "" {
		return nil, telemetry.ErrInvalidQuery
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []telemetry.ForecastPoint
	for _, p := range s.forecasts {
		if p.CompanyID == companyID && window.Contains(p.Timestamp) {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
