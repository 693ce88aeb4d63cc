package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CompanyType selects the tariff base rate.
type CompanyType string

const (
	CompanyTypeIndustrial CompanyType = "industrial"
	CompanyTypeCommercial CompanyType = "commercial"
)

// ErrCompanyNotFound is returned when a company id is unknown to the registry.
var ErrCompanyNotFound = errors.New("company: not found")

// Company is the eagerly resolved read model for a tenant company.
type Company struct {
	ID        string
	TenantID  string
	Name      string
	Type      CompanyType
	CountryID string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks company invariants.
func (c Company) Validate() error {
	if c.ID == "" {
		return errors.New("company: empty id")
	}
	if c.TenantID == "" {
		return errors.New("company: empty tenant id")
	}
	if c.CountryID == "" {
		return errors.New("company: empty country id")
	}
	if c.Timezone == "" {
		return errors.New("company: empty timezone")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("company: invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// IsIndustrial reports whether the company is billed at the industrial base rate.
func (c Company) IsIndustrial() bool {
	return c.Type == CompanyTypeIndustrial
}

// Location loads the company's IANA zone.
func (c Company) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return nil, errors.New("company: empty timezone")
	}
	return time.LoadLocation(c.Timezone)
}

// Today returns the civil date of now in the company's zone, as midnight in that zone.
func (c Company) Today(now time.Time) (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc), nil
}

// CompanyRepository manages company persistence.
type CompanyRepository interface {
	Get(ctx context.Context, id string) (*Company, error)
	List(ctx context.Context) ([]Company, error)
	Save(ctx context.Context, company *Company) error
}
