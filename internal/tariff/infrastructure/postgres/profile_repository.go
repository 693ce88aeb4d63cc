package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tariff "energy-billing/internal/tariff/domain"
)

const defaultProfilesTable = "tariff_profiles"

// ProfileRepository stores one tariff profile per country.
type ProfileRepository struct {
	db    *sql.DB
	table string
}

// ProfileOption configures the repository.
type ProfileOption func(*ProfileRepository)

// WithProfilesTable overrides the profiles table name.
func WithProfilesTable(table string) ProfileOption {
	return func(r *ProfileRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewProfileRepository constructs a repository.
func NewProfileRepository(db *sql.DB, opts ...ProfileOption) *ProfileRepository {
	r := &ProfileRepository{db: db, table: defaultProfilesTable}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get loads the profile of a country. A missing row yields (nil, nil).
func (r *ProfileRepository) Get(ctx context.Context, countryID string) (*tariff.Profile, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tariff repo: nil db")
	}
	if countryID == "" {
		return nil, tariff.ErrEmptyCountryID
	}
	query := fmt.Sprintf(`
SELECT country_id, industrial_rate, commercial_rate,
	peak_multiplier, mid_peak_multiplier, off_peak_multiplier,
	peak_hours, mid_peak_hours, off_peak_hours
FROM %s
WHERE country_id = $1
LIMIT 1`, r.table)

	var profile tariff.Profile
	var peak, midPeak, offPeak string
	if err := r.db.QueryRowContext(ctx, query, countryID).Scan(
		&profile.CountryID,
		&profile.IndustrialRate,
		&profile.CommercialRate,
		&profile.PeakMultiplier,
		&profile.MidPeakMultiplier,
		&profile.OffPeakMultiplier,
		&peak,
		&midPeak,
		&offPeak,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var err error
	if profile.PeakHours, err = parseHours(peak); err != nil {
		return nil, err
	}
	if profile.MidPeakHours, err = parseHours(midPeak); err != nil {
		return nil, err
	}
	if profile.OffPeakHours, err = parseHours(offPeak); err != nil {
		return nil, err
	}
	return &profile, nil
}

// Save upserts a profile, replacing the previous one of the country.
func (r *ProfileRepository) Save(ctx context.Context, profile *tariff.Profile) error {
	if r == nil || r.db == nil {
		return errors.New("tariff repo: nil db")
	}
	if profile == nil {
		return errors.New("tariff repo: nil profile")
	}
	if err := profile.ValidateDisjoint(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	country_id, industrial_rate, commercial_rate,
	peak_multiplier, mid_peak_multiplier, off_peak_multiplier,
	peak_hours, mid_peak_hours, off_peak_hours, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, NOW()
)
ON CONFLICT (country_id)
DO UPDATE SET
	industrial_rate = EXCLUDED.industrial_rate,
	commercial_rate = EXCLUDED.commercial_rate,
	peak_multiplier = EXCLUDED.peak_multiplier,
	mid_peak_multiplier = EXCLUDED.mid_peak_multiplier,
	off_peak_multiplier = EXCLUDED.off_peak_multiplier,
	peak_hours = EXCLUDED.peak_hours,
	mid_peak_hours = EXCLUDED.mid_peak_hours,
	off_peak_hours = EXCLUDED.off_peak_hours,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		profile.CountryID,
		profile.IndustrialRate,
		profile.CommercialRate,
		profile.PeakMultiplier,
		profile.MidPeakMultiplier,
		profile.OffPeakMultiplier,
		formatHours(profile.PeakHours),
		formatHours(profile.MidPeakHours),
		formatHours(profile.OffPeakHours),
	)
	return err
}

func formatHours(hours []int) string {
	parts := make([]string, 0, len(hours))
	for _, h := range hours {
		parts = append(parts, strconv.Itoa(h))
	}
	return strings.Join(parts, ",")
}

func parseHours(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	hours := make([]int, 0, len(parts))
	for _, part := range parts {
		h, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("tariff repo: invalid hour %q: %w", part, err)
		}
		hours = append(hours, h)
	}
	return hours, nil
}
