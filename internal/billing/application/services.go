package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	billing "energy-billing/internal/billing/domain"
	"energy-billing/internal/eventbus"
	masterdata "energy-billing/internal/masterdata/domain"
	"energy-billing/internal/observability/logging"
)

// Deps bundles the collaborators shared by the billing services.
type Deps struct {
	Store        billing.Store
	Companies    CompanyReader
	Composer     *billing.Composer
	Recalculator *Recalculator
	Bus          eventbus.EventBus
	Clock        Clock
	Logger       *zap.Logger
}

func (d Deps) validate(name string) (Deps, error) {
	if d.Store == nil {
		return d, fmt.Errorf("%s: nil store", name)
	}
	if d.Companies == nil {
		return d, fmt.Errorf("%s: nil company reader", name)
	}
	if d.Composer == nil {
		return d, fmt.Errorf("%s: nil composer", name)
	}
	if d.Recalculator == nil {
		return d, fmt.Errorf("%s: nil recalculator", name)
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	d.Logger = logging.OrNop(d.Logger)
	return d, nil
}

func (d Deps) company(ctx context.Context, id string) (*masterdata.Company, error) {
	if strings.TrimSpace(id) == "" {
		return nil, billing.ErrEmptyCompanyID
	}
	company, err := d.Companies.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, masterdata.ErrCompanyNotFound
	}
	return company, nil
}

func (d Deps) publish(ctx context.Context, companyID, sourceID string, report RecalculationReport) {
	if d.Bus == nil {
		return
	}
	event := PaymentsRecalculated{
		Trigger:    report.Trigger,
		CompanyID:  companyID,
		SourceID:   sourceID,
		Updated:    report.Updated,
		Failed:     report.FailedIDs(),
		OccurredAt: d.Clock.Now(),
	}
	if err := d.Bus.Publish(ctx, event); err != nil {
		d.Logger.Warn("publish payments recalculated failed",
			zap.String("trigger", report.Trigger),
			zap.String("company_id", companyID),
			zap.Error(err),
		)
	}
}

// UsageService handles metered usage edits.
type UsageService struct {
	deps Deps
}

// NewUsageService constructs the service.
func NewUsageService(deps Deps) (*UsageService, error) {
	deps, err := deps.validate("usage service")
	if err != nil {
		return nil, err
	}
	return &UsageService{deps: deps}, nil
}

// UpdateMeteredUsage saves a fact and recalculates every payment referencing it.
func (s *UsageService) UpdateMeteredUsage(ctx context.Context, fact billing.MeteredUsageFact) (RecalculationReport, error) {
	if _, err := s.deps.company(ctx, fact.CompanyID); err != nil {
		return RecalculationReport{}, err
	}
	fact.UsageDate = billing.Day(fact.UsageDate)
	fact.UpdatedAt = s.deps.Clock.Now()
	if err := s.deps.Store.Facts().Save(ctx, &fact); err != nil {
		return RecalculationReport{}, err
	}
	report, err := s.deps.Recalculator.ForUsageFact(ctx, fact.ID)
	if err != nil {
		return report, err
	}
	s.deps.publish(ctx, fact.CompanyID, fact.ID, report)
	return report, nil
}

// SubscriptionChange is an edit of an existing subscription. Zero fields
// keep the current value. EndDate sets a new end; ClearEndDate removes it.
type SubscriptionChange struct {
	ServiceID    string
	StartDate    time.Time
	EndDate      *time.Time
	ClearEndDate bool
}

// SubscriptionService handles subscription lifecycle edits.
type SubscriptionService struct {
	deps Deps
}

// NewSubscriptionService constructs the service.
func NewSubscriptionService(deps Deps) (*SubscriptionService, error) {
	deps, err := deps.validate("subscription service")
	if err != nil {
		return nil, err
	}
	return &SubscriptionService{deps: deps}, nil
}

// Get loads a subscription.
func (s *SubscriptionService) Get(ctx context.Context, id string) (*billing.Subscription, error) {
	sub, err := s.deps.Store.Subscriptions().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, billing.ErrSubscriptionNotFound
	}
	return sub, nil
}

// Create saves a new subscription and recalculates payments in its window.
func (s *SubscriptionService) Create(ctx context.Context, sub billing.Subscription) (billing.Subscription, RecalculationReport, error) {
	if _, err := s.deps.company(ctx, sub.CompanyID); err != nil {
		return billing.Subscription{}, RecalculationReport{}, err
	}
	if _, err := s.deps.Composer.Rates().FlatRate(sub.ServiceID); err != nil {
		return billing.Subscription{}, RecalculationReport{}, err
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	normalize(&sub)
	sub.UpdatedAt = s.deps.Clock.Now()
	if err := s.deps.Store.Subscriptions().Save(ctx, &sub); err != nil {
		return billing.Subscription{}, RecalculationReport{}, err
	}
	report, err := s.recalculate(ctx, sub, sub.Window())
	return sub, report, err
}

// Update edits a subscription and recalculates payments in the union of
// the old and new windows.
func (s *SubscriptionService) Update(ctx context.Context, id string, change SubscriptionChange) (billing.Subscription, RecalculationReport, error) {
	if change.ClearEndDate && change.EndDate != nil {
		return billing.Subscription{}, RecalculationReport{}, billing.ErrConflictingEndDate
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return billing.Subscription{}, RecalculationReport{}, err
	}
	if _, err := s.deps.company(ctx, current.CompanyID); err != nil {
		return billing.Subscription{}, RecalculationReport{}, err
	}
	oldWindow := current.Window()

	updated := current.Clone()
	if change.ServiceID != "" {
		if _, err := s.deps.Composer.Rates().FlatRate(change.ServiceID); err != nil {
			return billing.Subscription{}, RecalculationReport{}, err
		}
		updated.ServiceID = change.ServiceID
	}
	if !change.StartDate.IsZero() {
		updated.StartDate = change.StartDate
	}
	switch {
	case change.ClearEndDate:
		updated.EndDate = nil
	case change.EndDate != nil:
		end := *change.EndDate
		updated.EndDate = &end
	}
	normalize(&updated)
	updated.UpdatedAt = s.deps.Clock.Now()
	if err := s.deps.Store.Subscriptions().Save(ctx, &updated); err != nil {
		return billing.Subscription{}, RecalculationReport{}, err
	}
	report, err := s.recalculate(ctx, updated, oldWindow.Union(updated.Window()))
	return updated, report, err
}

// Cancel ends a subscription today in the company's timezone and
// recalculates payments in its former window.
func (s *SubscriptionService) Cancel(ctx context.Context, id string) (billing.Subscription, RecalculationReport, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return billing.Subscription{}, RecalculationReport{}, err
	}
	company, err := s.deps.company(ctx, current.CompanyID)
	if err != nil {
		return billing.Subscription{}, RecalculationReport{}, err
	}
	today, err := company.Today(s.deps.Clock.Now())
	if err != nil {
		return billing.Subscription{}, RecalculationReport{}, err
	}
	oldWindow := current.Window()

	end := billing.Day(today)
	if end.Before(billing.Day(current.StartDate)) {
		end = billing.Day(current.StartDate)
	}
	if current.EndDate != nil && current.EndDate.Before(end) {
		end = billing.Day(*current.EndDate)
	}
	cancelled := current.Clone()
	cancelled.EndDate = &end
	cancelled.UpdatedAt = s.deps.Clock.Now()
	if err := s.deps.Store.Subscriptions().Save(ctx, &cancelled); err != nil {
		return billing.Subscription{}, RecalculationReport{}, err
	}
	report, err := s.recalculate(ctx, cancelled, oldWindow)
	return cancelled, report, err
}

func (s *SubscriptionService) recalculate(ctx context.Context, sub billing.Subscription, window billing.Window) (RecalculationReport, error) {
	report, err := s.deps.Recalculator.ForWindow(ctx, sub.CompanyID, window)
	if err != nil {
		return report, err
	}
	s.deps.publish(ctx, sub.CompanyID, sub.ID, report)
	return report, nil
}

func normalize(sub *billing.Subscription) {
	sub.StartDate = billing.Day(sub.StartDate)
	if sub.EndDate != nil {
		end := billing.Day(*sub.EndDate)
		sub.EndDate = &end
	}
}

// PaymentService creates and force-recalculates payments.
type PaymentService struct {
	deps Deps
}

// NewPaymentService constructs the service.
func NewPaymentService(deps Deps) (*PaymentService, error) {
	deps, err := deps.validate("payment service")
	if err != nil {
		return nil, err
	}
	return &PaymentService{deps: deps}, nil
}

// NewPayment is the input for creating a payment.
type NewPayment struct {
	ID                   string
	MeteredUsageID       string
	StorageUsageBytes    int64
	ScheduledPaymentDate time.Time
}

// Create prices and saves a pending payment for a usage fact.
func (s *PaymentService) Create(ctx context.Context, in NewPayment) (billing.Payment, error) {
	var created billing.Payment
	err := s.deps.Store.InTx(ctx, func(tx billing.Store) error {
		fact, err := tx.Facts().Get(ctx, in.MeteredUsageID)
		if err != nil {
			return err
		}
		if fact == nil {
			return billing.ErrUsageFactNotFound
		}
		if _, err := s.deps.company(ctx, fact.CompanyID); err != nil {
			return err
		}
		active, err := tx.Subscriptions().ListActiveOn(ctx, fact.CompanyID, fact.UsageDate)
		if err != nil {
			return err
		}
		serviceIDs := billing.ServiceIDs(active)
		amount, err := s.deps.Composer.RecalculateAmount(*fact, serviceIDs, in.StorageUsageBytes)
		if err != nil {
			return err
		}
		if in.ID == "" {
			in.ID = uuid.NewString()
		}
		now := s.deps.Clock.Now()
		created = billing.Payment{
			ID:                     in.ID,
			CompanyID:              fact.CompanyID,
			MeteredUsageID:         fact.ID,
			SubscriptionServiceIDs: serviceIDs,
			StorageUsageBytes:      in.StorageUsageBytes,
			Amount:                 amount,
			Status:                 billing.PaymentStatusPending,
			UsageDate:              billing.Day(fact.UsageDate),
			ScheduledPaymentDate:   billing.Day(in.ScheduledPaymentDate),
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		return tx.Payments().Save(ctx, &created)
	})
	if err != nil {
		return billing.Payment{}, err
	}
	return created, nil
}

// Get loads a payment.
func (s *PaymentService) Get(ctx context.Context, id string) (*billing.Payment, error) {
	p, err := s.deps.Store.Payments().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, billing.ErrPaymentNotFound
	}
	return p, nil
}

// RecalculateCompany forces a recalculation of every payment of a company.
func (s *PaymentService) RecalculateCompany(ctx context.Context, companyID string) (RecalculationReport, error) {
	if _, err := s.deps.company(ctx, companyID); err != nil {
		return RecalculationReport{}, err
	}
	payments, err := s.deps.Store.Payments().ListByCompanyWindow(ctx, companyID, billing.Window{})
	if err != nil {
		return RecalculationReport{}, err
	}
	report := s.deps.Recalculator.Recalculate(ctx, TriggerManual, paymentIDs(payments))
	s.deps.publish(ctx, companyID, companyID, report)
	return report, nil
}

// RecalculatePayments forces a recalculation of the given payments.
func (s *PaymentService) RecalculatePayments(ctx context.Context, ids []string) (RecalculationReport, error) {
	if len(ids) == 0 {
		return RecalculationReport{}, errors.New("payment service: no payment ids")
	}
	report := s.deps.Recalculator.Recalculate(ctx, TriggerManual, ids)
	s.deps.publish(ctx, "", strings.Join(ids, ","), report)
	return report, nil
}

// Statement lists a company's payments with usage dates in [from, to].
func (s *PaymentService) Statement(ctx context.Context, companyID string, from, to time.Time) (billing.Statement, error) {
	if from.IsZero() || to.IsZero() {
		return billing.Statement{}, billing.ErrInvalidDate
	}
	if billing.Day(to).Before(billing.Day(from)) {
		return billing.Statement{}, billing.ErrInvalidWindow
	}
	if _, err := s.deps.company(ctx, companyID); err != nil {
		return billing.Statement{}, err
	}
	payments, err := s.deps.Store.Payments().ListByCompanyWindow(ctx, companyID, billing.StatementWindow(from, to))
	if err != nil {
		return billing.Statement{}, err
	}
	return billing.NewStatement(companyID, from, to, payments, s.deps.Clock.Now()), nil
}

// SummaryService prices billing periods.
type SummaryService struct {
	deps Deps
}

// NewSummaryService constructs the service.
func NewSummaryService(deps Deps) (*SummaryService, error) {
	deps, err := deps.validate("summary service")
	if err != nil {
		return nil, err
	}
	return &SummaryService{deps: deps}, nil
}

// SummarizePeriod prices [from, to] for a company.
func (s *SummaryService) SummarizePeriod(ctx context.Context, companyID string, from, to time.Time) (billing.PeriodSummary, error) {
	if from.IsZero() || to.IsZero() {
		return billing.PeriodSummary{}, billing.ErrInvalidDate
	}
	from, to = billing.Day(from), billing.Day(to)
	if to.Before(from) {
		return billing.PeriodSummary{}, billing.ErrInvalidWindow
	}
	if _, err := s.deps.company(ctx, companyID); err != nil {
		return billing.PeriodSummary{}, err
	}
	facts, err := s.deps.Store.Facts().ListByCompanyBetween(ctx, companyID, from, to)
	if err != nil {
		return billing.PeriodSummary{}, err
	}
	active, err := s.deps.Store.Subscriptions().ListActiveOn(ctx, companyID, to)
	if err != nil {
		return billing.PeriodSummary{}, err
	}
	return s.deps.Composer.Summarize(companyID, from, to, facts, billing.ServiceIDs(active))
}
