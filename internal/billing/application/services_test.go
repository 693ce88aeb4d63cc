package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "energy-billing/internal/billing/domain"
	billingmemory "energy-billing/internal/billing/infrastructure/memory"
	"energy-billing/internal/eventbus"
	masterdata "energy-billing/internal/masterdata/domain"
	mdmemory "energy-billing/internal/masterdata/infrastructure/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store         *billingmemory.Store
	companies     *mdmemory.CompanyRepository
	usage         *UsageService
	subscriptions *SubscriptionService
	payments      *PaymentService
	summary       *SummaryService

	mu     sync.Mutex
	events []PaymentsRecalculated
}

// now is 2024-03-10 16:00 UTC, which is 2024-03-11 01:00 in Seoul.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: billingmemory.NewStore(),
		companies: mdmemory.NewCompanyRepository(masterdata.Company{
			ID: "c1", TenantID: "t1", Name: "Acme", Type: masterdata.CompanyTypeCommercial,
			CountryID: "KR", Timezone: "Asia/Seoul",
		}),
	}
	rates := billing.DefaultRates()
	rates.ServiceRates = map[string]decimal.Decimal{"analytics": decimal.NewFromInt(10)}
	composer, err := billing.NewComposer(rates)
	require.NoError(t, err)
	clock := fixedClock{now: time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC)}
	recalc, err := NewRecalculator(f.store, f.companies, composer, clock, nil)
	require.NoError(t, err)

	bus := eventbus.NewInMemoryBus()
	eventbus.Handle(bus, func(_ context.Context, evt PaymentsRecalculated) error {
		f.mu.Lock()
		f.events = append(f.events, evt)
		f.mu.Unlock()
		return nil
	})

	deps := Deps{Store: f.store, Companies: f.companies, Composer: composer, Recalculator: recalc, Bus: bus, Clock: clock}
	f.usage, err = NewUsageService(deps)
	require.NoError(t, err)
	f.subscriptions, err = NewSubscriptionService(deps)
	require.NoError(t, err)
	f.payments, err = NewPaymentService(deps)
	require.NoError(t, err)
	f.summary, err = NewSummaryService(deps)
	require.NoError(t, err)
	return f
}

func (f *fixture) seedFact(t *testing.T, id string, date time.Time) {
	t.Helper()
	require.NoError(t, f.store.Facts().Save(context.Background(), &billing.MeteredUsageFact{
		ID: id, CompanyID: "c1", UsageDate: date, APICallCount: 5000, IoTInstallationCount: 3,
	}))
}

func (f *fixture) amount(t *testing.T, paymentID string) decimal.Decimal {
	t.Helper()
	p, err := f.payments.Get(context.Background(), paymentID)
	require.NoError(t, err)
	return p.Amount
}

func TestCancelSubscriptionRecalculatesPayments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedFact(t, "f-10", day(2024, 3, 10))
	f.seedFact(t, "f-11", day(2024, 3, 11))

	sub, _, err := f.subscriptions.Create(ctx, billing.Subscription{CompanyID: "c1", ServiceID: "analytics", StartDate: day(2024, 3, 1)})
	require.NoError(t, err)

	p10, err := f.payments.Create(ctx, NewPayment{ID: "p-10", MeteredUsageID: "f-10"})
	require.NoError(t, err)
	p11, err := f.payments.Create(ctx, NewPayment{ID: "p-11", MeteredUsageID: "f-11"})
	require.NoError(t, err)
	assert.True(t, p10.Amount.Equal(decimal.NewFromInt(18)))
	assert.True(t, p11.Amount.Equal(decimal.NewFromInt(18)))
	assert.Equal(t, []string{"analytics"}, p11.SubscriptionServiceIDs)

	cancelled, report, err := f.subscriptions.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, cancelled.EndDate)
	assert.Equal(t, day(2024, 3, 11), *cancelled.EndDate)
	assert.ElementsMatch(t, []string{"p-10", "p-11"}, report.Updated)
	assert.Empty(t, report.Failed)

	// Seoul's today is the 11th, so the 10th stays billed.
	assert.True(t, f.amount(t, "p-10").Equal(decimal.NewFromInt(18)))
	assert.True(t, f.amount(t, "p-11").Equal(decimal.NewFromInt(8)))

	p, err := f.payments.Get(ctx, "p-11")
	require.NoError(t, err)
	assert.Empty(t, p.SubscriptionServiceIDs)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.events)
	last := f.events[len(f.events)-1]
	assert.Equal(t, TriggerSubscription, last.Trigger)
	assert.Equal(t, sub.ID, last.SourceID)
}

func TestCancelBeforeStartYieldsEmptyWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sub, _, err := f.subscriptions.Create(ctx, billing.Subscription{CompanyID: "c1", ServiceID: "analytics", StartDate: day(2024, 4, 1)})
	require.NoError(t, err)

	cancelled, _, err := f.subscriptions.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, cancelled.EndDate)
	assert.Equal(t, day(2024, 4, 1), *cancelled.EndDate)
	assert.False(t, cancelled.ActiveOn(day(2024, 4, 1)))
}

func TestUpdateSubscriptionUsesUnionWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedFact(t, "f-5", day(2024, 3, 5))
	sub, _, err := f.subscriptions.Create(ctx, billing.Subscription{CompanyID: "c1", ServiceID: "analytics", StartDate: day(2024, 3, 1)})
	require.NoError(t, err)
	_, err = f.payments.Create(ctx, NewPayment{ID: "p-5", MeteredUsageID: "f-5"})
	require.NoError(t, err)

	// Moving the start past the payment date drops the charge.
	_, report, err := f.subscriptions.Update(ctx, sub.ID, SubscriptionChange{StartDate: day(2024, 3, 20)})
	require.NoError(t, err)
	assert.Equal(t, []string{"p-5"}, report.Updated)
	assert.True(t, f.amount(t, "p-5").Equal(decimal.NewFromInt(8)))
}

func TestUpdateWithoutEndDateKeepsCancellation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedFact(t, "f-20", day(2024, 3, 20))
	sub, _, err := f.subscriptions.Create(ctx, billing.Subscription{CompanyID: "c1", ServiceID: "analytics", StartDate: day(2024, 3, 1)})
	require.NoError(t, err)
	_, err = f.payments.Create(ctx, NewPayment{ID: "p-20", MeteredUsageID: "f-20"})
	require.NoError(t, err)

	_, _, err = f.subscriptions.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, f.amount(t, "p-20").Equal(decimal.NewFromInt(8)))

	updated, _, err := f.subscriptions.Update(ctx, sub.ID, SubscriptionChange{ServiceID: "analytics"})
	require.NoError(t, err)
	require.NotNil(t, updated.EndDate)
	assert.Equal(t, day(2024, 3, 11), *updated.EndDate)
	assert.True(t, f.amount(t, "p-20").Equal(decimal.NewFromInt(8)))

	reopened, _, err := f.subscriptions.Update(ctx, sub.ID, SubscriptionChange{ClearEndDate: true})
	require.NoError(t, err)
	assert.Nil(t, reopened.EndDate)
	assert.True(t, f.amount(t, "p-20").Equal(decimal.NewFromInt(18)))

	end := day(2024, 3, 25)
	_, _, err = f.subscriptions.Update(ctx, sub.ID, SubscriptionChange{EndDate: &end, ClearEndDate: true})
	assert.ErrorIs(t, err, billing.ErrConflictingEndDate)
}

func TestOverlappingSameServiceSubscriptionsAreEachCharged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedFact(t, "f-5", day(2024, 3, 5))
	for _, start := range []time.Time{day(2024, 3, 1), day(2024, 3, 3)} {
		_, _, err := f.subscriptions.Create(ctx, billing.Subscription{CompanyID: "c1", ServiceID: "analytics", StartDate: start})
		require.NoError(t, err)
	}

	p, err := f.payments.Create(ctx, NewPayment{ID: "p-5", MeteredUsageID: "f-5"})
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(28)))
	assert.Equal(t, []string{"analytics", "analytics"}, p.SubscriptionServiceIDs)

	summary, err := f.summary.SummarizePeriod(ctx, "c1", day(2024, 3, 1), day(2024, 3, 5))
	require.NoError(t, err)
	assert.True(t, summary.SubscriptionAmount.Equal(decimal.NewFromInt(20)))
}

func TestUpdateMeteredUsageRecalculates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedFact(t, "f-10", day(2024, 3, 10))
	_, err := f.payments.Create(ctx, NewPayment{ID: "p-10", MeteredUsageID: "f-10"})
	require.NoError(t, err)
	assert.True(t, f.amount(t, "p-10").Equal(decimal.NewFromInt(8)))

	report, err := f.usage.UpdateMeteredUsage(ctx, billing.MeteredUsageFact{
		ID: "f-10", CompanyID: "c1", UsageDate: day(2024, 3, 10), APICallCount: 10000, IoTInstallationCount: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, TriggerMeteredUsage, report.Trigger)
	assert.Equal(t, []string{"p-10"}, report.Updated)
	assert.True(t, f.amount(t, "p-10").Equal(decimal.NewFromInt(13)))
}

func TestRecalculationIsolatesFailingRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedFact(t, "f-a", day(2024, 3, 10))
	f.seedFact(t, "f-b", day(2024, 3, 10))
	_, err := f.payments.Create(ctx, NewPayment{ID: "p-a", MeteredUsageID: "f-a"})
	require.NoError(t, err)
	_, err = f.payments.Create(ctx, NewPayment{ID: "p-b", MeteredUsageID: "f-b"})
	require.NoError(t, err)
	f.store.DeleteFact("f-b")

	_, report, err := f.subscriptions.Create(ctx, billing.Subscription{CompanyID: "c1", ServiceID: "analytics", StartDate: day(2024, 3, 1)})
	require.NoError(t, err)

	assert.Equal(t, []string{"p-a"}, report.Updated)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "p-b", report.Failed[0].PaymentID)
	assert.ErrorIs(t, report.Failed[0], billing.ErrUsageFactNotFound)
	assert.ErrorIs(t, report.Err(), billing.ErrUsageFactNotFound)

	assert.True(t, f.amount(t, "p-a").Equal(decimal.NewFromInt(18)))
	assert.True(t, f.amount(t, "p-b").Equal(decimal.NewFromInt(8)))
}

func TestRecalculationMissingCompany(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedFact(t, "f-10", day(2024, 3, 10))
	_, err := f.payments.Create(ctx, NewPayment{ID: "p-10", MeteredUsageID: "f-10"})
	require.NoError(t, err)
	f.companies.Delete("c1")

	report, err := f.payments.RecalculatePayments(ctx, []string{"p-10", "missing"})
	require.NoError(t, err)
	assert.Empty(t, report.Updated)
	require.Len(t, report.Failed, 2)
	assert.ErrorIs(t, report.Failed[0], masterdata.ErrCompanyNotFound)
	assert.ErrorIs(t, report.Failed[1], billing.ErrPaymentNotFound)
}

func TestCreateSubscriptionUnknownService(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.subscriptions.Create(context.Background(), billing.Subscription{CompanyID: "c1", ServiceID: "nope", StartDate: day(2024, 3, 1)})
	assert.ErrorIs(t, err, billing.ErrUnknownService)
}

func TestSummarizePeriod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.Facts().Save(ctx, &billing.MeteredUsageFact{ID: "a", CompanyID: "c1", UsageDate: day(2024, 3, 1), APICallCount: 1000, IoTInstallationCount: 9}))
	require.NoError(t, f.store.Facts().Save(ctx, &billing.MeteredUsageFact{ID: "b", CompanyID: "c1", UsageDate: day(2024, 3, 2), APICallCount: 2000, IoTInstallationCount: 2}))
	require.NoError(t, f.store.Facts().Save(ctx, &billing.MeteredUsageFact{ID: "z", CompanyID: "c1", UsageDate: day(2024, 4, 1), APICallCount: 99999}))
	_, _, err := f.subscriptions.Create(ctx, billing.Subscription{CompanyID: "c1", ServiceID: "analytics", StartDate: day(2024, 3, 2)})
	require.NoError(t, err)

	s, err := f.summary.SummarizePeriod(ctx, "c1", day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), s.APICallCount)
	assert.Equal(t, int64(2), s.IoTInstallationCount)
	assert.True(t, s.Amount.Equal(decimal.NewFromInt(15)))

	_, err = f.summary.SummarizePeriod(ctx, "c1", day(2024, 3, 31), day(2024, 3, 1))
	assert.ErrorIs(t, err, billing.ErrInvalidWindow)
	_, err = f.summary.SummarizePeriod(ctx, "missing", day(2024, 3, 1), day(2024, 3, 2))
	assert.ErrorIs(t, err, masterdata.ErrCompanyNotFound)
}
