package tariff

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	// ErrTariffNotFound is returned when no profile exists for a country.
	ErrTariffNotFound = errors.New("tariff: profile not found")
	// ErrEmptyCountryID is returned when a profile has no country.
	ErrEmptyCountryID = errors.New("tariff: empty country id")
	// ErrNonPositiveRate is returned when a base rate or multiplier is not positive.
	ErrNonPositiveRate = errors.New("tariff: rate must be positive")
	// ErrInvalidHour is returned when an hour falls outside 0..23.
	ErrInvalidHour = errors.New("tariff: hour out of range")
	// ErrOverlappingHours is returned when an hour is assigned to more than one band.
	ErrOverlappingHours = errors.New("tariff: overlapping band hours")
)

// Profile holds one country's base rates, band multipliers and band hours.
type Profile struct {
	CountryID         string
	IndustrialRate    decimal.Decimal
	CommercialRate    decimal.Decimal
	PeakMultiplier    decimal.Decimal
	MidPeakMultiplier decimal.Decimal
	OffPeakMultiplier decimal.Decimal
	PeakHours         []int
	MidPeakHours      []int
	OffPeakHours      []int
}

// Validate checks field ranges. Overlapping hour sets are tolerated here;
// use ValidateDisjoint on administrative writes.
func (p Profile) Validate() error {
	if p.CountryID == "" {
		return ErrEmptyCountryID
	}
	for name, v := range map[string]decimal.Decimal{
		"industrial rate":     p.IndustrialRate,
		"commercial rate":     p.CommercialRate,
		"peak multiplier":     p.PeakMultiplier,
		"mid-peak multiplier": p.MidPeakMultiplier,
		"off-peak multiplier": p.OffPeakMultiplier,
	} {
		if !v.IsPositive() {
			return fmt.Errorf("%w: %s", ErrNonPositiveRate, name)
		}
	}
	for _, hours := range [][]int{p.PeakHours, p.MidPeakHours, p.OffPeakHours} {
		for _, h := range hours {
			if h < 0 || h > 23 {
				return fmt.Errorf("%w: %d", ErrInvalidHour, h)
			}
		}
	}
	return nil
}

// ValidateDisjoint checks Validate plus pairwise disjoint band hours.
func (p Profile) ValidateDisjoint() error {
	if err := p.Validate(); err != nil {
		return err
	}
	seen := make(map[int]Band, 24)
	for _, set := range p.bandSets() {
		for _, h := range set.hours {
			if prev, ok := seen[h]; ok && prev != set.band {
				return fmt.Errorf("%w: hour %d in %s and %s", ErrOverlappingHours, h, prev, set.band)
			}
			seen[h] = set.band
		}
	}
	return nil
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	out := p
	out.PeakHours = normalizeHours(p.PeakHours)
	out.MidPeakHours = normalizeHours(p.MidPeakHours)
	out.OffPeakHours = normalizeHours(p.OffPeakHours)
	return out
}

type bandSet struct {
	band       Band
	hours      []int
	multiplier decimal.Decimal
}

// bandSets lists bands in classification priority order.
func (p Profile) bandSets() []bandSet {
	return []bandSet{
		{band: BandPeak, hours: p.PeakHours, multiplier: p.PeakMultiplier},
		{band: BandMidPeak, hours: p.MidPeakHours, multiplier: p.MidPeakMultiplier},
		{band: BandOffPeak, hours: p.OffPeakHours, multiplier: p.OffPeakMultiplier},
	}
}

func normalizeHours(hours []int) []int {
	if len(hours) == 0 {
		return nil
	}
	set := make(map[int]struct{}, len(hours))
	out := make([]int, 0, len(hours))
	for _, h := range hours {
		if _, ok := set[h]; ok {
			continue
		}
		set[h] = struct{}{}
		out = append(out, h)
	}
	sort.Ints(out)
	return out
}

// ProfileRepository reads and writes tariff profiles keyed by country.
// Get returns (nil, nil) when the country has no profile.
type ProfileRepository interface {
	Get(ctx context.Context, countryID string) (*Profile, error)
	Save(ctx context.Context, profile *Profile) error
}
