package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"energy-billing/internal/audit"
	billingapp "energy-billing/internal/billing/application"
	billing "energy-billing/internal/billing/domain"
	billingpg "energy-billing/internal/billing/infrastructure/postgres"
	"energy-billing/internal/config"
	energyapp "energy-billing/internal/energy/application"
	"energy-billing/internal/eventbus"
	masterdatapg "energy-billing/internal/masterdata/infrastructure/postgres"
	tariffapp "energy-billing/internal/tariff/application"
	tariffpg "energy-billing/internal/tariff/infrastructure/postgres"
	telemetry "energy-billing/internal/telemetry/domain"
	"energy-billing/internal/telemetry/infrastructure/influx"
	telemetrypg "energy-billing/internal/telemetry/infrastructure/postgres"
)

// app holds the wired services shared by the commands.
type app struct {
	db        *sql.DB
	logger    *zap.Logger
	companies *masterdatapg.CompanyRepository
	profiles  *tariffpg.ProfileRepository
	audit     audit.Logger
	bus       *eventbus.InMemoryBus

	rates   *tariffapp.RateService
	imports *tariffapp.ImportService
	energy  *energyapp.EnergyService

	billingStore  *billingpg.Store
	usage         *billingapp.UsageService
	subscriptions *billingapp.SubscriptionService
	payments      *billingapp.PaymentService
	summary       *billingapp.SummaryService

	closers []func()
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("DATABASE_URL or PG_DSN is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &app{
		db:        db,
		logger:    logger,
		companies: masterdatapg.NewCompanyRepository(db),
		profiles:  tariffpg.NewProfileRepository(db),
		audit:     audit.NewRepository(db),
		bus:       eventbus.NewInMemoryBus(),
		closers:   []func(){func() { _ = db.Close() }},
	}

	if a.rates, err = tariffapp.NewRateService(a.profiles, a.companies, logger); err != nil {
		return nil, a.fail(err)
	}
	if a.imports, err = tariffapp.NewImportService(a.profiles, logger); err != nil {
		return nil, a.fail(err)
	}

	readings, forecasts, err := a.seriesStores(ctx, cfg)
	if err != nil {
		return nil, a.fail(err)
	}
	if a.energy, err = energyapp.NewEnergyService(a.companies, a.rates, readings, forecasts, energyapp.SystemClock{}, logger); err != nil {
		return nil, a.fail(err)
	}

	if err := a.wireBilling(cfg.Rates); err != nil {
		return nil, a.fail(err)
	}
	a.subscribeEvents()
	return a, nil
}

func (a *app) seriesStores(ctx context.Context, cfg config.Config) (telemetry.ReadingStore, telemetry.ForecastStore, error) {
	if cfg.ReadingStore != config.ReadingStoreInflux {
		store := telemetrypg.NewSeriesStore(a.db)
		return store, store, nil
	}
	store, err := influx.NewSeriesStore(ctx, influx.Config{
		URL:    cfg.Influx.URL,
		Token:  cfg.Influx.Token,
		Org:    cfg.Influx.Org,
		Bucket: cfg.Influx.Bucket,
	})
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, store, nil
}

func (a *app) wireBilling(rates billing.Rates) error {
	composer, err := billing.NewComposer(rates)
	if err != nil {
		return err
	}
	a.billingStore = billingpg.NewStore(a.db)
	recalc, err := billingapp.NewRecalculator(a.billingStore, a.companies, composer, billingapp.SystemClock{}, a.logger)
	if err != nil {
		return err
	}
	deps := billingapp.Deps{
		Store:        a.billingStore,
		Companies:    a.companies,
		Composer:     composer,
		Recalculator: recalc,
		Bus:          a.bus,
		Logger:       a.logger,
	}
	if a.usage, err = billingapp.NewUsageService(deps); err != nil {
		return err
	}
	if a.subscriptions, err = billingapp.NewSubscriptionService(deps); err != nil {
		return err
	}
	if a.payments, err = billingapp.NewPaymentService(deps); err != nil {
		return err
	}
	a.summary, err = billingapp.NewSummaryService(deps)
	return err
}

// subscribeEvents logs every recalculation batch and records failed rows in the audit log.
func (a *app) subscribeEvents() {
	eventbus.Handle(a.bus, func(_ context.Context, evt billingapp.PaymentsRecalculated) error {
		a.logger.Info("payments recalculated",
			zap.String("trigger", evt.Trigger),
			zap.String("company_id", evt.CompanyID),
			zap.String("source_id", evt.SourceID),
			zap.Int("updated", len(evt.Updated)),
			zap.Strings("failed", evt.Failed),
		)
		return nil
	})
	eventbus.Handle(a.bus, func(ctx context.Context, evt billingapp.PaymentsRecalculated) error {
		if len(evt.Failed) == 0 {
			return nil
		}
		return a.audit.Log(ctx, audit.Entry{
			TenantID:         "system",
			Actor:            "recalculator",
			Role:             "system",
			Action:           "billing.recalculation.failed",
			ResourceType:     "payment",
			ResourceID:       evt.SourceID,
			CompanyID:        evt.CompanyID,
			Trigger:          evt.Trigger,
			UpdatedCount:     len(evt.Updated),
			FailedPaymentIDs: evt.Failed,
			CreatedAt:        evt.OccurredAt,
		})
	})
}

func (a *app) fail(err error) error {
	a.Close()
	return err
}

// Close releases stores in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
