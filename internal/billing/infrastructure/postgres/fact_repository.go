package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	billing "energy-billing/internal/billing/domain"
)

// FactRepository persists metered usage facts.
type FactRepository struct {
	db    DBTX
	table string
}

// Get loads a fact. A missing row yields (nil, nil).
func (r *FactRepository) Get(ctx context.Context, id string) (*billing.MeteredUsageFact, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("fact repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, company_id, usage_date, api_call_count, iot_installation_count, database_storage_bytes, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	fact, err := scanFact(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return fact, err
}

// Save upserts a fact.
func (r *FactRepository) Save(ctx context.Context, fact *billing.MeteredUsageFact) error {
	if r == nil || r.db == nil {
		return errors.New("fact repo: nil db")
	}
	if fact == nil {
		return billing.ErrNilEntity
	}
	if err := fact.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, company_id, usage_date, api_call_count, iot_installation_count, database_storage_bytes, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (id)
DO UPDATE SET
	company_id = EXCLUDED.company_id,
	usage_date = EXCLUDED.usage_date,
	api_call_count = EXCLUDED.api_call_count,
	iot_installation_count = EXCLUDED.iot_installation_count,
	database_storage_bytes = EXCLUDED.database_storage_bytes,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		fact.ID, fact.CompanyID, billing.Day(fact.UsageDate),
		fact.APICallCount, fact.IoTInstallationCount, fact.DatabaseStorageBytes,
	)
	return err
}

// ListByCompanyBetween lists facts with from <= usage_date <= to.
func (r *FactRepository) ListByCompanyBetween(ctx context.Context, companyID string, from, to time.Time) ([]billing.MeteredUsageFact, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("fact repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, company_id, usage_date, api_call_count, iot_installation_count, database_storage_bytes, updated_at
FROM %s
WHERE company_id = $1 AND usage_date >= $2 AND usage_date <= $3
ORDER BY usage_date ASC, id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, companyID, billing.Day(from), billing.Day(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.MeteredUsageFact
	for rows.Next() {
		fact, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *fact)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFact(row rowScanner) (*billing.MeteredUsageFact, error) {
	var fact billing.MeteredUsageFact
	if err := row.Scan(
		&fact.ID,
		&fact.CompanyID,
		&fact.UsageDate,
		&fact.APICallCount,
		&fact.IoTInstallationCount,
		&fact.DatabaseStorageBytes,
		&fact.UpdatedAt,
	); err != nil {
		return nil, err
	}
	fact.UsageDate = billing.Day(fact.UsageDate)
	fact.UpdatedAt = fact.UpdatedAt.UTC()
	return &fact, nil
}
