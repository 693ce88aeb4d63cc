package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	energy "energy-billing/internal/energy/domain"
	masterdata "energy-billing/internal/masterdata/domain"
	"energy-billing/internal/observability/logging"
	"energy-billing/internal/observability/metrics"
	tariff "energy-billing/internal/tariff/domain"
	telemetry "energy-billing/internal/telemetry/domain"
)

const (
	viewRange    = "range"
	viewRealtime = "realtime"
	viewMonthly  = "monthly"
)

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

// Now returns current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// CompanyReader is the read-only company registry.
type CompanyReader interface {
	Get(ctx context.Context, id string) (*masterdata.Company, error)
}

// TariffSource resolves the profile for a company's country.
type TariffSource interface {
	ProfileFor(ctx context.Context, company masterdata.Company) (tariff.Profile, error)
}

// Query is an immutable reconciliation request. A zero EndDate means a single day.
type Query struct {
	CompanyID string
	StartDate energy.Date
	EndDate   energy.Date
	Filters   []telemetry.ReadingFilter
}

// WithFilters returns a copy of q with extra reading filters appended.
func (q Query) WithFilters(filters ...telemetry.ReadingFilter) Query {
	out := q
	out.Filters = append(append([]telemetry.ReadingFilter(nil), q.Filters...), filters...)
	return out
}

// EnergyService reconciles readings against forecasts for a company.
type EnergyService struct {
	companies CompanyReader
	tariffs   TariffSource
	readings  telemetry.ReadingStore
	forecasts telemetry.ForecastStore
	clock     Clock
	logger    *zap.Logger
}

// NewEnergyService constructs the service.
func NewEnergyService(companies CompanyReader, tariffs TariffSource, readings telemetry.ReadingStore, forecasts telemetry.ForecastStore, clock Clock, logger *zap.Logger) (*EnergyService, error) {
	if companies == nil {
		return nil, errors.New("energy service: nil company reader")
	}
	if tariffs == nil {
		return nil, errors.New("energy service: nil tariff source")
	}
	if readings == nil {
		return nil, errors.New("energy service: nil reading store")
	}
	if forecasts == nil {
		return nil, errors.New("energy service: nil forecast store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &EnergyService{
		companies: companies,
		tariffs:   tariffs,
		readings:  readings,
		forecasts: forecasts,
		clock:     clock,
		logger:    logging.OrNop(logger).Named("energy"),
	}, nil
}

// ReadEnergy reconciles the closed date range of the query.
func (s *EnergyService) ReadEnergy(ctx context.Context, q Query) (resp SummaryResponse, err error) {
	start := time.Now()
	defer func() { observe(viewRange, err, time.Since(start)) }()

	company, err := s.loadCompany(ctx, q.CompanyID)
	if err != nil {
		return SummaryResponse{}, err
	}
	end := q.EndDate
	if end.IsZero() {
		end = q.StartDate
	}
	return s.read(ctx, company, q.StartDate, end, q.Filters)
}

// GetRealtimeAndLastMonth reconciles today and the same day last month in the company's zone.
func (s *EnergyService) GetRealtimeAndLastMonth(ctx context.Context, companyID string, filters ...telemetry.ReadingFilter) (resp PairedResponse, err error) {
	start := time.Now()
	defer func() { observe(viewRealtime, err, time.Since(start)) }()

	company, today, err := s.companyToday(ctx, companyID)
	if err != nil {
		return PairedResponse{}, err
	}
	previous := today.SameDayPreviousMonth()
	return s.pair(ctx, company, [2]energy.Date{today, today}, [2]energy.Date{previous, previous}, filters)
}

// GetThisAndLastMonth reconciles the month to date and the whole previous month.
func (s *EnergyService) GetThisAndLastMonth(ctx context.Context, companyID string, filters ...telemetry.ReadingFilter) (resp PairedResponse, err error) {
	start := time.Now()
	defer func() { observe(viewMonthly, err, time.Since(start)) }()

	company, today, err := s.companyToday(ctx, companyID)
	if err != nil {
		return PairedResponse{}, err
	}
	lastMonth := today.FirstOfMonth().AddDays(-1)
	return s.pair(ctx, company,
		[2]energy.Date{today.FirstOfMonth(), today},
		[2]energy.Date{lastMonth.FirstOfMonth(), lastMonth},
		filters,
	)
}

func (s *EnergyService) pair(ctx context.Context, company masterdata.Company, current, previous [2]energy.Date, filters []telemetry.ReadingFilter) (PairedResponse, error) {
	var resp PairedResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.read(gctx, company, current[0], current[1], filters)
		resp.Current = out
		return err
	})
	g.Go(func() error {
		out, err := s.read(gctx, company, previous[0], previous[1], filters)
		resp.Previous = out
		return err
	})
	if err := g.Wait(); err != nil {
		return PairedResponse{}, err
	}
	return resp, nil
}

func (s *EnergyService) read(ctx context.Context, company masterdata.Company, startDate, endDate energy.Date, filters []telemetry.ReadingFilter) (SummaryResponse, error) {
	if startDate.IsZero() {
		return SummaryResponse{}, fmt.Errorf("%w: empty start date", energy.ErrInvalidRange)
	}
	if endDate.Before(startDate) {
		return SummaryResponse{}, fmt.Errorf("%w: %s before %s", energy.ErrInvalidRange, endDate, startDate)
	}
	loc, err := company.Location()
	if err != nil {
		return SummaryResponse{}, err
	}
	window := telemetry.Range{From: startDate.Midnight(loc).UTC(), To: endDate.AddDays(1).Midnight(loc).UTC()}

	var (
		profile   tariff.Profile
		readings  []telemetry.MeterReading
		forecasts []telemetry.ForecastPoint
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = s.tariffs.ProfileFor(gctx, company)
		return err
	})
	g.Go(func() error {
		var err error
		readings, err = s.readings.Readings(gctx, company.ID, window)
		return err
	})
	g.Go(func() error {
		var err error
		forecasts, err = s.forecasts.Forecasts(gctx, company.ID, window)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("reconciliation fetch failed",
			zap.String("company_id", company.ID),
			zap.Stringer("start_date", startDate),
			zap.Stringer("end_date", endDate),
			zap.Error(err))
		return SummaryResponse{}, err
	}

	summary, err := energy.Aggregate(energy.Input{
		Location:   loc,
		Industrial: company.IsIndustrial(),
		Profile:    profile,
		Readings:   telemetry.Apply(readings, filters...),
		Forecasts:  forecasts,
	})
	if err != nil {
		return SummaryResponse{}, err
	}
	return toSummaryResponse(company.ID, loc, startDate, endDate, summary), nil
}

func (s *EnergyService) loadCompany(ctx context.Context, companyID string) (masterdata.Company, error) {
	if companyID == "" {
		return masterdata.Company{}, fmt.Errorf("%w: empty id", masterdata.ErrCompanyNotFound)
	}
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return masterdata.Company{}, err
	}
	if company == nil {
		return masterdata.Company{}, fmt.Errorf("%w: %s", masterdata.ErrCompanyNotFound, companyID)
	}
	return *company, nil
}

func (s *EnergyService) companyToday(ctx context.Context, companyID string) (masterdata.Company, energy.Date, error) {
	company, err := s.loadCompany(ctx, companyID)
	if err != nil {
		return masterdata.Company{}, energy.Date{}, err
	}
	midnight, err := company.Today(s.clock.Now())
	if err != nil {
		return masterdata.Company{}, energy.Date{}, err
	}
	return company, energy.DateOf(midnight), nil
}

func observe(view string, err error, d time.Duration) {
	result := metrics.ResultSuccess
	switch {
	case errors.Is(err, masterdata.ErrCompanyNotFound):
		result = metrics.ResultNotFound
	case err != nil:
		result = metrics.ResultError
	}
	metrics.ObserveReconcile(view, result, d)
}
