package memory

import (
	"context"
	"errors"
	"sync"

	tariff "energy-billing/internal/tariff/domain"
)

// ProfileRepository keeps tariff profiles in memory.
type ProfileRepository struct {
	mu   sync.RWMutex
	data map[string]tariff.Profile
}

// NewProfileRepository constructs a repository seeded with profiles.
func NewProfileRepository(profiles ...tariff.Profile) *ProfileRepository {
	r := &ProfileRepository{data: make(map[string]tariff.Profile, len(profiles))}
	for _, p := range profiles {
		r.data[p.CountryID] = p.Clone()
	}
	return r
}

// Get returns a copy of the country's profile or (nil, nil).
func (r *ProfileRepository) Get(ctx context.Context, countryID string) (*tariff.Profile, error) {
	_ = ctx
	r.mu.RLock()
	p, ok := r.data[countryID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

// Save replaces the country's profile.
func (r *ProfileRepository) Save(ctx context.Context, profile *tariff.Profile) error {
	_ = ctx
	if profile == nil {
		return errors.New("tariff repo: nil profile")
	}
	if err := profile.ValidateDisjoint(); err != nil {
		return err
	}
	r.mu.Lock()
	r.data[profile.CountryID] = profile.Clone()
	r.mu.Unlock()
	return nil
}
