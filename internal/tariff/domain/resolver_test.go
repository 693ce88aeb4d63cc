package tariff

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleProfile() Profile {
	return Profile{
		CountryID:         "KR",
		IndustrialRate:    d("0.5000"),
		CommercialRate:    d("0.6319"),
		PeakMultiplier:    d("1.5"),
		MidPeakMultiplier: d("1.2"),
		OffPeakMultiplier: d("0.8"),
		PeakHours:         []int{17, 18, 19},
		MidPeakHours:      []int{9, 10, 11, 12},
		OffPeakHours:      []int{0, 1, 2, 3, 4, 5},
	}
}

func TestRateCommercialPeak(t *testing.T) {
	rate, err := sampleProfile().Rate(false, 18)
	require.NoError(t, err)
	assert.Equal(t, BandPeak, rate.Band)
	assert.Equal(t, "0.9479", rate.Price.String())
}

func TestRateIndustrialUsesIndustrialBase(t *testing.T) {
	rate, err := sampleProfile().Rate(true, 10)
	require.NoError(t, err)
	assert.Equal(t, BandMidPeak, rate.Band)
	assert.True(t, rate.Price.Equal(d("0.6")))
}

func TestRateUncoveredHourUsesBaseRate(t *testing.T) {
	rate, err := sampleProfile().Rate(false, 14)
	require.NoError(t, err)
	assert.Equal(t, BandUnknown, rate.Band)
	assert.True(t, rate.Price.Equal(d("0.6319")))
}

func TestRatePeakWinsOnOverlap(t *testing.T) {
	p := sampleProfile()
	// Same hour stored in every band, off-peak listed first in storage order.
	p.OffPeakHours = []int{18, 0}
	p.MidPeakHours = []int{18}
	p.PeakHours = []int{19, 18}

	rate, err := p.Rate(false, 18)
	require.NoError(t, err)
	assert.Equal(t, BandPeak, rate.Band)
	assert.Equal(t, "0.9479", rate.Price.String())

	assert.ErrorIs(t, p.ValidateDisjoint(), ErrOverlappingHours)
	assert.NoError(t, p.Validate())

	p.PeakHours = nil
	rate, err = p.Rate(false, 18)
	require.NoError(t, err)
	assert.Equal(t, BandMidPeak, rate.Band)
}

func TestRateRejectsInvalidHour(t *testing.T) {
	_, err := sampleProfile().Rate(false, 24)
	assert.ErrorIs(t, err, ErrInvalidHour)
	_, err = sampleProfile().Rate(false, -1)
	assert.ErrorIs(t, err, ErrInvalidHour)
}

func TestRatesCoversAllHours(t *testing.T) {
	rates := sampleProfile().Rates(false)
	for h, r := range rates {
		assert.Equal(t, h, r.Hour)
		assert.True(t, r.Band.Valid())
		assert.True(t, r.Price.IsPositive())
	}
	assert.Equal(t, BandOffPeak, rates[3].Band)
	assert.Equal(t, "0.5055", rates[3].Price.String())
}

func TestValidate(t *testing.T) {
	p := sampleProfile()
	p.PeakMultiplier = decimal.Zero
	assert.ErrorIs(t, p.Validate(), ErrNonPositiveRate)

	p = sampleProfile()
	p.CountryID = ""
	assert.ErrorIs(t, p.Validate(), ErrEmptyCountryID)

	p = sampleProfile()
	p.OffPeakHours = []int{25}
	assert.ErrorIs(t, p.Validate(), ErrInvalidHour)

	assert.NoError(t, sampleProfile().ValidateDisjoint())
}
