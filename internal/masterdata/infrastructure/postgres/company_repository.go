package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "energy-billing/internal/masterdata/domain"
)

const defaultCompaniesTable = "companies"

// CompanyRepository is a Postgres implementation for companies.
type CompanyRepository struct {
	db    DBTX
	table string
}

// CompanyOption configures the repository.
type CompanyOption func(*CompanyRepository)

// WithCompanyTable overrides the default table name.
func WithCompanyTable(table string) CompanyOption {
	return func(repo *CompanyRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewCompanyRepository constructs a repository.
func NewCompanyRepository(db DBTX, opts ...CompanyOption) *CompanyRepository {
	repo := &CompanyRepository{db: db, table: defaultCompaniesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Get loads a company by id. A missing row yields (nil, nil).
func (r *CompanyRepository) Get(ctx context.Context, id string) (*masterdata.Company, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("company repo: nil db")
	}
	if id == "" {
		return nil, errors.New("company repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, tenant_id, name, company_type, country_id, timezone, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	company, err := scanCompany(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return company, err
}

// List returns every company ordered by id.
func (r *CompanyRepository) List(ctx context.Context) ([]masterdata.Company, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("company repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, tenant_id, name, company_type, country_id, timezone, created_at, updated_at
FROM %s
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *company)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a company.
func (r *CompanyRepository) Save(ctx context.Context, company *masterdata.Company) error {
	if r == nil || r.db == nil {
		return errors.New("company repo: nil db")
	}
	if company == nil {
		return errors.New("company repo: nil company")
	}
	if err := company.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	tenant_id,
	name,
	company_type,
	country_id,
	timezone
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (id)
DO UPDATE SET
	tenant_id = EXCLUDED.tenant_id,
	name = EXCLUDED.name,
	company_type = EXCLUDED.company_type,
	country_id = EXCLUDED.country_id,
	timezone = EXCLUDED.timezone,
	updated_at = NOW()`, r.table)

	if _, err := r.db.ExecContext(ctx, query,
		company.ID,
		company.TenantID,
		company.Name,
		string(company.Type),
		company.CountryID,
		company.Timezone,
	); err != nil {
		return err
	}
	now := time.Now().UTC()
	if company.CreatedAt.IsZero() {
		company.CreatedAt = now
	}
	company.UpdatedAt = now
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (*masterdata.Company, error) {
	var company masterdata.Company
	var companyType string
	if err := row.Scan(
		&company.ID,
		&company.TenantID,
		&company.Name,
		&companyType,
		&company.CountryID,
		&company.Timezone,
		&company.CreatedAt,
		&company.UpdatedAt,
	); err != nil {
		return nil, err
	}
	company.Type = masterdata.CompanyType(companyType)
	company.CreatedAt = company.CreatedAt.UTC()
	company.UpdatedAt = company.UpdatedAt.UTC()
	return &company, nil
}
