package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	masterdata "energy-billing/internal/masterdata/domain"
	"energy-billing/internal/observability/logging"
	"energy-billing/internal/observability/metrics"
	tariff "energy-billing/internal/tariff/domain"
)

// CompanyDirectory is the read-only company registry.
type CompanyDirectory interface {
	Get(ctx context.Context, id string) (*masterdata.Company, error)
	List(ctx context.Context) ([]masterdata.Company, error)
}

// ProfileReader is the read-only tariff profile store.
type ProfileReader interface {
	Get(ctx context.Context, countryID string) (*tariff.Profile, error)
}

// RateService resolves per-hour prices for companies.
type RateService struct {
	profiles  ProfileReader
	companies CompanyDirectory
	logger    *zap.Logger
}

// NewRateService constructs a rate service.
func NewRateService(profiles ProfileReader, companies CompanyDirectory, logger *zap.Logger) (*RateService, error) {
	if profiles == nil {
		return nil, errors.New("rate service: nil profile reader")
	}
	if companies == nil {
		return nil, errors.New("rate service: nil company directory")
	}
	return &RateService{
		profiles:  profiles,
		companies: companies,
		logger:    logging.OrNop(logger).Named("tariff.rates"),
	}, nil
}

// ProfileFor loads the tariff profile of the company's country.
func (s *RateService) ProfileFor(ctx context.Context, company masterdata.Company) (tariff.Profile, error) {
	profile, err := s.profiles.Get(ctx, company.CountryID)
	if err != nil {
		return tariff.Profile{}, err
	}
	if profile == nil {
		return tariff.Profile{}, fmt.Errorf("%w: country %s", tariff.ErrTariffNotFound, company.CountryID)
	}
	return *profile, nil
}

// Rate returns the effective price of hour for the company.
func (s *RateService) Rate(ctx context.Context, company masterdata.Company, hour int) (tariff.HourRate, error) {
	profile, err := s.ProfileFor(ctx, company)
	if err != nil {
		return tariff.HourRate{}, err
	}
	return profile.Rate(company.IsIndustrial(), hour)
}

// HourlyRates returns the 24-hour price table per company. An empty
// companyID computes the table for every registered company. A missing
// profile for any company fails the whole call.
func (s *RateService) HourlyRates(ctx context.Context, companyID string) (result map[string]map[int]tariff.HourRate, err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.ResultSuccess
		if err != nil {
			outcome = metrics.ResultError
		}
		metrics.ObserveHourlyRates(outcome, time.Since(start))
	}()

	companies, err := s.targetCompanies(ctx, companyID)
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]tariff.Profile)
	result = make(map[string]map[int]tariff.HourRate, len(companies))
	for _, company := range companies {
		profile, ok := profiles[company.CountryID]
		if !ok {
			profile, err = s.ProfileFor(ctx, company)
			if err != nil {
				s.logger.Error("hourly rates failed",
					zap.String("company_id", company.ID),
					zap.String("country_id", company.CountryID),
					zap.Error(err))
				return nil, err
			}
			profiles[company.CountryID] = profile
		}
		rates := profile.Rates(company.IsIndustrial())
		table := make(map[int]tariff.HourRate, len(rates))
		for _, rate := range rates {
			table[rate.Hour] = rate
		}
		result[company.ID] = table
	}
	return result, nil
}

func (s *RateService) targetCompanies(ctx context.Context, companyID string) ([]masterdata.Company, error) {
	if companyID == "" {
		return s.companies.List(ctx)
	}
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("%w: %s", masterdata.ErrCompanyNotFound, companyID)
	}
	return []masterdata.Company{*company}, nil
}
