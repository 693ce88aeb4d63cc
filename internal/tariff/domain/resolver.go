package tariff

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"energy-billing/internal/money"
)

// HourRate is the effective unit price for one hour-of-day.
type HourRate struct {
	Hour  int             `json:"hour"`
	Price decimal.Decimal `json:"price"`
	Band  Band            `json:"band"`
}

// BaseRate returns the industrial rate for industrial companies and the commercial rate otherwise.
func (p Profile) BaseRate(industrial bool) decimal.Decimal {
	if industrial {
		return p.IndustrialRate
	}
	return p.CommercialRate
}

// Classify returns the first band whose hour set contains hour, checking
// peak, then mid-peak, then off-peak. Uncovered hours are BandUnknown.
func (p Profile) Classify(hour int) (Band, decimal.Decimal) {
	for _, set := range p.bandSets() {
		if slices.Contains(set.hours, hour) {
			return set.band, set.multiplier
		}
	}
	return BandUnknown, decimal.NewFromInt(1)
}

// Rate resolves the rounded unit price for hour.
func (p Profile) Rate(industrial bool, hour int) (HourRate, error) {
	if hour < 0 || hour > 23 {
		return HourRate{}, fmt.Errorf("%w: %d", ErrInvalidHour, hour)
	}
	band, multiplier := p.Classify(hour)
	price := money.RoundPrice(p.BaseRate(industrial).Mul(multiplier))
	return HourRate{Hour: hour, Price: price, Band: band}, nil
}

// DayRates is the 24-entry price table of a profile for one base rate.
type DayRates [24]HourRate

// Rates resolves every hour of the day.
func (p Profile) Rates(industrial bool) DayRates {
	var out DayRates
	for h := 0; h < 24; h++ {
		out[h], _ = p.Rate(industrial, h)
	}
	return out
}
