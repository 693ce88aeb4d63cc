package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"energy-billing/internal/money"
)

// Breakdown is the four charge lines of an invoice and their total.
type Breakdown struct {
	APICallAmount         decimal.Decimal
	IoTInstallationAmount decimal.Decimal
	StorageAmount         decimal.Decimal
	SubscriptionAmount    decimal.Decimal
	Amount                decimal.Decimal
}

// Composer prices metered usage and subscriptions against a rate card.
type Composer struct {
	rates Rates
}

// NewComposer validates rates and returns a composer.
func NewComposer(rates Rates) (*Composer, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	if rates.ServiceRates == nil {
		rates.ServiceRates = map[string]decimal.Decimal{}
	}
	return &Composer{rates: rates}, nil
}

// Rates returns the composer's rate card.
func (c *Composer) Rates() Rates {
	return c.rates
}

// APICallAmount is count × unit rate.
func (c *Composer) APICallAmount(count int64) decimal.Decimal {
	return money.RoundAmount(decimal.NewFromInt(count).Mul(c.rates.APICallUnitRate))
}

// IoTInstallationAmount is count × unit rate.
func (c *Composer) IoTInstallationAmount(count int64) decimal.Decimal {
	return money.RoundAmount(decimal.NewFromInt(count).Mul(c.rates.IoTUnitRate))
}

// StorageAmount charges only the GiB above the free allowance.
func (c *Composer) StorageAmount(bytes int64) decimal.Decimal {
	excess := money.ExcessGiB(bytes, c.rates.FreeStorageGiB)
	return money.RoundAmount(excess.Mul(c.rates.StoragePerGBRate))
}

// SubscriptionAmount sums the flat rate of every service id.
func (c *Composer) SubscriptionAmount(serviceIDs []string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, id := range serviceIDs {
		rate, err := c.rates.FlatRate(id)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(rate)
	}
	return money.RoundAmount(total), nil
}

// Compose prices the four components independently and sums them.
func (c *Composer) Compose(apiCalls, iotInstallations, storageBytes int64, serviceIDs []string) (Breakdown, error) {
	if apiCalls < 0 || iotInstallations < 0 || storageBytes < 0 {
		return Breakdown{}, ErrNegativeQuantity
	}
	subscriptions, err := c.SubscriptionAmount(serviceIDs)
	if err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{
		APICallAmount:         c.APICallAmount(apiCalls),
		IoTInstallationAmount: c.IoTInstallationAmount(iotInstallations),
		StorageAmount:         c.StorageAmount(storageBytes),
		SubscriptionAmount:    subscriptions,
	}
	b.Amount = money.Sum(b.APICallAmount, b.IoTInstallationAmount, b.StorageAmount, b.SubscriptionAmount)
	return b, nil
}

// RecalculateAmount prices one payment from its usage fact, the services
// active on its usage date and its own storage usage.
func (c *Composer) RecalculateAmount(fact MeteredUsageFact, serviceIDs []string, storageBytes int64) (decimal.Decimal, error) {
	b, err := c.Compose(fact.APICallCount, fact.IoTInstallationCount, storageBytes, serviceIDs)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Amount, nil
}

// PeriodSummary is a billing period's breakdown plus the inputs it was priced from.
type PeriodSummary struct {
	CompanyID            string
	From                 time.Time
	To                   time.Time
	APICallCount         int64
	IoTInstallationCount int64
	DatabaseStorageBytes int64
	ServiceIDs           []string
	Breakdown
}

// Summarize prices a period. API calls are summed over facts; the installation
// count and storage come from the latest-dated fact only.
func (c *Composer) Summarize(companyID string, from, to time.Time, facts []MeteredUsageFact, serviceIDs []string) (PeriodSummary, error) {
	summary := PeriodSummary{CompanyID: companyID, From: Day(from), To: Day(to), ServiceIDs: serviceIDs}
	if summary.ServiceIDs == nil {
		summary.ServiceIDs = []string{}
	}

	var latest *MeteredUsageFact
	for i := range facts {
		f := &facts[i]
		if f.APICallCount < 0 || f.IoTInstallationCount < 0 || f.DatabaseStorageBytes < 0 {
			return PeriodSummary{}, ErrNegativeQuantity
		}
		summary.APICallCount += f.APICallCount
		if latest == nil || !Day(f.UsageDate).Before(Day(latest.UsageDate)) {
			latest = f
		}
	}
	if latest != nil {
		summary.IoTInstallationCount = latest.IoTInstallationCount
		summary.DatabaseStorageBytes = latest.DatabaseStorageBytes
	}

	b, err := c.Compose(summary.APICallCount, summary.IoTInstallationCount, summary.DatabaseStorageBytes, summary.ServiceIDs)
	if err != nil {
		return PeriodSummary{}, err
	}
	summary.Breakdown = b
	return summary, nil
}
