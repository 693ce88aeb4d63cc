package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	billing "energy-billing/internal/billing/domain"
	masterdata "energy-billing/internal/masterdata/domain"
	"energy-billing/internal/observability/logging"
	"energy-billing/internal/observability/metrics"
)

// CompanyReader resolves companies. Get returns (nil, nil) when missing.
type CompanyReader interface {
	Get(ctx context.Context, id string) (*masterdata.Company, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// RecalculationError records why one payment could not be recalculated.
type RecalculationError struct {
	PaymentID string
	Err       error
}

func (e *RecalculationError) Error() string {
	return fmt.Sprintf("payment %s: %v", e.PaymentID, e.Err)
}

func (e *RecalculationError) Unwrap() error { return e.Err }

// RecalculationReport lists the outcome of a batch.
type RecalculationReport struct {
	Trigger string
	Updated []string
	Failed  []*RecalculationError
}

// Err joins the per-row failures, or nil when every row was updated.
func (r RecalculationReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// FailedIDs returns the ids of failed payments.
func (r RecalculationReport) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.PaymentID)
	}
	return ids
}

// Recalculator re-derives payment amounts. Each payment is recalculated in
// its own transaction so one failing row never rolls back its siblings.
type Recalculator struct {
	store     billing.Store
	companies CompanyReader
	composer  *billing.Composer
	clock     Clock
	logger    *zap.Logger
}

// NewRecalculator constructs a recalculator.
func NewRecalculator(store billing.Store, companies CompanyReader, composer *billing.Composer, clock Clock, logger *zap.Logger) (*Recalculator, error) {
	if store == nil {
		return nil, errors.New("recalculator: nil store")
	}
	if companies == nil {
		return nil, errors.New("recalculator: nil company reader")
	}
	if composer == nil {
		return nil, errors.New("recalculator: nil composer")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Recalculator{
		store:     store,
		companies: companies,
		composer:  composer,
		clock:     clock,
		logger:    logging.OrNop(logger),
	}, nil
}

// ForUsageFact recalculates every payment referencing the fact.
func (r *Recalculator) ForUsageFact(ctx context.Context, factID string) (RecalculationReport, error) {
	payments, err := r.store.Payments().ListByUsageFact(ctx, factID)
	if err != nil {
		return RecalculationReport{Trigger: TriggerMeteredUsage}, err
	}
	return r.Recalculate(ctx, TriggerMeteredUsage, paymentIDs(payments)), nil
}

// ForWindow recalculates a company's payments whose usage date lies in window.
func (r *Recalculator) ForWindow(ctx context.Context, companyID string, window billing.Window) (RecalculationReport, error) {
	payments, err := r.store.Payments().ListByCompanyWindow(ctx, companyID, window)
	if err != nil {
		return RecalculationReport{Trigger: TriggerSubscription}, err
	}
	return r.Recalculate(ctx, TriggerSubscription, paymentIDs(payments)), nil
}

// Recalculate recomputes the given payments one transaction at a time.
func (r *Recalculator) Recalculate(ctx context.Context, trigger string, ids []string) RecalculationReport {
	start := time.Now()
	defer func() {
		metrics.ObserveRecalcBatch(trigger, time.Since(start))
	}()

	report := RecalculationReport{Trigger: trigger, Updated: []string{}}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			report.Failed = append(report.Failed, &RecalculationError{PaymentID: id, Err: err})
			metrics.IncRecalcRow(trigger, metrics.ResultSkipped)
			continue
		}
		err := r.store.InTx(ctx, func(tx billing.Store) error {
			return r.recalculateOne(ctx, tx, id)
		})
		if err != nil {
			result := metrics.ResultError
			if errors.Is(err, masterdata.ErrCompanyNotFound) || billing.IsNotFound(err) {
				result = metrics.ResultNotFound
			}
			metrics.IncRecalcRow(trigger, result)
			r.logger.Warn("payment recalculation failed",
				zap.String("trigger", trigger),
				zap.String("payment_id", id),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, &RecalculationError{PaymentID: id, Err: err})
			continue
		}
		metrics.IncRecalcRow(trigger, metrics.ResultSuccess)
		report.Updated = append(report.Updated, id)
	}
	return report
}

func (r *Recalculator) recalculateOne(ctx context.Context, tx billing.Store, id string) error {
	payment, err := tx.Payments().Get(ctx, id)
	if err != nil {
		return err
	}
	if payment == nil {
		return billing.ErrPaymentNotFound
	}
	company, err := r.companies.Get(ctx, payment.CompanyID)
	if err != nil {
		return err
	}
	if company == nil {
		return masterdata.ErrCompanyNotFound
	}
	fact, err := tx.Facts().Get(ctx, payment.MeteredUsageID)
	if err != nil {
		return err
	}
	if fact == nil {
		return billing.ErrUsageFactNotFound
	}
	active, err := tx.Subscriptions().ListActiveOn(ctx, company.ID, payment.UsageDate)
	if err != nil {
		return err
	}
	serviceIDs := billing.ServiceIDs(active)
	amount, err := r.composer.RecalculateAmount(*fact, serviceIDs, payment.StorageUsageBytes)
	if err != nil {
		return err
	}

	payment.SubscriptionServiceIDs = serviceIDs
	payment.Amount = amount
	payment.UpdatedAt = r.clock.Now()
	return tx.Payments().Save(ctx, payment)
}

func paymentIDs(payments []billing.Payment) []string {
	ids := make([]string, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
	}
	return ids
}
