package energy

import (
	"time"

	"github.com/shopspring/decimal"

	"energy-billing/internal/money"
	tariff "energy-billing/internal/tariff/domain"
)

// Totals are the reconciled figures of one bucket.
// Differences are actual minus forecast.
type Totals struct {
	Usage            decimal.Decimal
	ForecastUsage    decimal.Decimal
	UsageDifference  decimal.Decimal
	Cost             decimal.Decimal
	ForecastCost     decimal.Decimal
	CostDifference   decimal.Decimal
	DeviationRate    decimal.Decimal
	ForecastAccuracy decimal.Decimal
}

// NewTotals derives differences and ratios from the four summed quantities.
func NewTotals(usage, forecastUsage, cost, forecastCost decimal.Decimal) Totals {
	deviation, accuracy := money.Deviation(usage, forecastUsage)
	return Totals{
		Usage:            usage,
		ForecastUsage:    forecastUsage,
		UsageDifference:  usage.Sub(forecastUsage),
		Cost:             cost,
		ForecastCost:     forecastCost,
		CostDifference:   cost.Sub(forecastCost),
		DeviationRate:    deviation,
		ForecastAccuracy: accuracy,
	}
}

// ZeroTotals is the reconciliation of an empty range.
func ZeroTotals() Totals {
	return NewTotals(decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)
}

type totalsAccumulator struct {
	usage, forecastUsage, cost, forecastCost decimal.Decimal
}

func (a *totalsAccumulator) add(t Totals) {
	a.usage = a.usage.Add(t.Usage)
	a.forecastUsage = a.forecastUsage.Add(t.ForecastUsage)
	a.cost = a.cost.Add(t.Cost)
	a.forecastCost = a.forecastCost.Add(t.ForecastCost)
}

func (a totalsAccumulator) totals() Totals {
	return NewTotals(a.usage, a.forecastUsage, a.cost, a.forecastCost)
}

// HourBucket is one wall-clock hour in the company's zone.
type HourBucket struct {
	PeriodStart time.Time
	Key         TimeKey
	Price       decimal.Decimal
	Band        tariff.Band
	Totals
}

// DayBucket is one calendar day in the company's zone.
type DayBucket struct {
	PeriodStart time.Time
	Key         TimeKey
	Totals
	Hours []HourBucket
}

// MonthBucket is one calendar month in the company's zone.
type MonthBucket struct {
	PeriodStart time.Time
	Key         TimeKey
	Totals
	Days []DayBucket
}

// Summary is the root of a reconciliation tree.
type Summary struct {
	Totals
	Months []MonthBucket
}

// HourCount returns the number of hour buckets in the tree.
func (s Summary) HourCount() int {
	n := 0
	for _, m := range s.Months {
		for _, d := range m.Days {
			n += len(d.Hours)
		}
	}
	return n
}
