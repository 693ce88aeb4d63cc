package auth

import (
	"context"

	masterdata "energy-billing/internal/masterdata/domain"
)

// CompanyTenantChecker validates company tenant ownership.
type CompanyTenantChecker interface {
	EnsureCompanyTenant(ctx context.Context, tenantID, companyID string) error
}

// CompanyLookup loads a company by id, returning (nil, nil) when missing.
type CompanyLookup interface {
	Get(ctx context.Context, id string) (*masterdata.Company, error)
}

// CompanyChecker checks company ownership against the company registry.
type CompanyChecker struct {
	companies CompanyLookup
}

// NewCompanyChecker constructs a CompanyChecker.
func NewCompanyChecker(companies CompanyLookup) *CompanyChecker {
	if companies == nil {
		return nil
	}
	return &CompanyChecker{companies: companies}
}

// EnsureCompanyTenant verifies the company belongs to the tenant.
func (c *CompanyChecker) EnsureCompanyTenant(ctx context.Context, tenantID, companyID string) error {
	if c == nil || c.companies == nil {
		return nil
	}
	if tenantID == "" || companyID == "" {
		return nil
	}
	company, err := c.companies.Get(ctx, companyID)
	if err != nil {
		return err
	}
	if company == nil {
		return ErrNotFound
	}
	if company.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
