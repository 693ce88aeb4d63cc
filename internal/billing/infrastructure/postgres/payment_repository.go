package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	billing "energy-billing/internal/billing/domain"
)

const paymentColumns = `id, company_id, metered_usage_id, subscription_service_ids, storage_usage_bytes,
	amount, status, usage_date, scheduled_payment_date, created_at, updated_at`

// PaymentRepository persists payments.
type PaymentRepository struct {
	db    DBTX
	table string
}

// Get loads a payment. A missing row yields (nil, nil).
func (r *PaymentRepository) Get(ctx context.Context, id string) (*billing.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 LIMIT 1`, paymentColumns, r.table)
	p, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// Save upserts a payment.
func (r *PaymentRepository) Save(ctx context.Context, p *billing.Payment) error {
	if r == nil || r.db == nil {
		return errors.New("payment repo: nil db")
	}
	if p == nil {
		return billing.ErrNilEntity
	}
	if err := p.Validate(); err != nil {
		return err
	}
	ids := p.SubscriptionServiceIDs
	if ids == nil {
		ids = []string{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	var scheduled any
	if !p.ScheduledPaymentDate.IsZero() {
		scheduled = billing.Day(p.ScheduledPaymentDate)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id, company_id, metered_usage_id, subscription_service_ids, storage_usage_bytes,
	amount, status, usage_date, scheduled_payment_date, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
ON CONFLICT (id)
DO UPDATE SET
	metered_usage_id = EXCLUDED.metered_usage_id,
	subscription_service_ids = EXCLUDED.subscription_service_ids,
	storage_usage_bytes = EXCLUDED.storage_usage_bytes,
	amount = EXCLUDED.amount,
	status = EXCLUDED.status,
	usage_date = EXCLUDED.usage_date,
	scheduled_payment_date = EXCLUDED.scheduled_payment_date,
	updated_at = NOW()`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.CompanyID, p.MeteredUsageID, string(encoded), p.StorageUsageBytes,
		p.Amount, string(p.Status), billing.Day(p.UsageDate), scheduled,
	)
	return err
}

// ListByUsageFact lists payments that reference a usage fact.
func (r *PaymentRepository) ListByUsageFact(ctx context.Context, usageFactID string) ([]billing.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE metered_usage_id = $1 ORDER BY id ASC`, paymentColumns, r.table)
	return r.list(ctx, query, usageFactID)
}

// ListByCompanyWindow lists a company's payments whose usage date lies in window.
func (r *PaymentRepository) ListByCompanyWindow(ctx context.Context, companyID string, window billing.Window) ([]billing.Payment, error) {
	if window.To == nil {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE company_id = $1 AND usage_date >= $2 ORDER BY id ASC`, paymentColumns, r.table)
		return r.list(ctx, query, companyID, window.From)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE company_id = $1 AND usage_date >= $2 AND usage_date < $3 ORDER BY id ASC`, paymentColumns, r.table)
	return r.list(ctx, query, companyID, window.From, *window.To)
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...any) ([]billing.Payment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("payment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func scanPayment(row rowScanner) (*billing.Payment, error) {
	var p billing.Payment
	var ids []byte
	var status string
	var scheduled sql.NullTime
	if err := row.Scan(
		&p.ID,
		&p.CompanyID,
		&p.MeteredUsageID,
		&ids,
		&p.StorageUsageBytes,
		&p.Amount,
		&status,
		&p.UsageDate,
		&scheduled,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		if err := json.Unmarshal(ids, &p.SubscriptionServiceIDs); err != nil {
			return nil, fmt.Errorf("payment repo: decode service ids: %w", err)
		}
	}
	p.Status = billing.PaymentStatus(status)
	p.UsageDate = billing.Day(p.UsageDate)
	if scheduled.Valid {
		p.ScheduledPaymentDate = billing.Day(scheduled.Time)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
