package money

import "github.com/shopspring/decimal"

const (
	// PriceScale is the number of fractional digits kept on unit prices.
	PriceScale int32 = 4
	// AmountScale is the number of fractional digits kept on billed amounts.
	AmountScale int32 = 2
	// PercentScale is the number of fractional digits kept on percentages.
	PercentScale int32 = 2

	divisionPrecision int32 = 16
)

var (
	hundred = decimal.NewFromInt(100)
	// GiB is 2^30 bytes.
	GiB = decimal.NewFromInt(1 << 30)
)

// RoundPrice rounds a unit price to PriceScale digits, half-up.
func RoundPrice(v decimal.Decimal) decimal.Decimal {
	return roundHalfUp(v, PriceScale)
}

// RoundAmount rounds a money amount to AmountScale digits, half-up.
func RoundAmount(v decimal.Decimal) decimal.Decimal {
	return roundHalfUp(v, AmountScale)
}

// roundHalfUp rounds away from zero on ties. Inputs here are non-negative,
// so this is the same as half-up.
func roundHalfUp(v decimal.Decimal, places int32) decimal.Decimal {
	return v.Round(places)
}

// Deviation returns |a-f| / max(a,f) * 100 and its complement 100 - deviation.
// Both are zero when a and f are zero.
func Deviation(actual, forecast decimal.Decimal) (deviationPct, accuracyPct decimal.Decimal) {
	denominator := decimal.Max(actual, forecast)
	if denominator.Sign() <= 0 {
		return decimal.Zero, decimal.Zero
	}
	ratio := actual.Sub(forecast).Abs().DivRound(denominator, divisionPrecision)
	deviationPct = roundHalfUp(ratio.Mul(hundred), PercentScale)
	if deviationPct.GreaterThan(hundred) {
		deviationPct = hundred
	}
	return deviationPct, hundred.Sub(deviationPct)
}

// Sum adds values exactly.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// ExcessGiB returns max(0, bytes - freeGiB*2^30) expressed in GiB.
func ExcessGiB(bytes int64, freeGiB decimal.Decimal) decimal.Decimal {
	excess := decimal.NewFromInt(bytes).Sub(freeGiB.Mul(GiB))
	if excess.Sign() <= 0 {
		return decimal.Zero
	}
	return excess.DivRound(GiB, divisionPrecision)
}
