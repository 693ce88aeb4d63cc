package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	masterdata "energy-billing/internal/masterdata/domain"
)

// CompanyRepository is an in-memory company registry.
type CompanyRepository struct {
	mu   sync.RWMutex
	data map[string]masterdata.Company
}

// NewCompanyRepository constructs a registry seeded with companies.
func NewCompanyRepository(companies ...masterdata.Company) *CompanyRepository {
	repo := &CompanyRepository{data: make(map[string]masterdata.Company, len(companies))}
	for _, company := range companies {
		repo.data[company.ID] = company
	}
	return repo
}

// Get loads a company by id.
func (r *CompanyRepository) Get(ctx context.Context, id string) (*masterdata.Company, error) {
	_ = ctx
	r.mu.RLock()
	company, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &company, nil
}

// List returns companies ordered by id.
func (r *CompanyRepository) List(ctx context.Context) ([]masterdata.Company, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]masterdata.Company, 0, len(r.data))
	for _, company := range r.data {
		result = append(result, company)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Save stores a copy of the company.
func (r *CompanyRepository) Save(ctx context.Context, company *masterdata.Company) error {
	_ = ctx
	if company == nil {
		return errors.New("company repo: nil company")
	}
	if err := company.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.data[company.ID] = *company
	r.mu.Unlock()
	return nil
}

// Delete removes a company.
func (r *CompanyRepository) Delete(id string) {
	r.mu.Lock()
	delete(r.data, id)
	r.mu.Unlock()
}
