package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	billing "energy-billing/internal/billing/domain"
)

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository struct {
	db    DBTX
	table string
}

// Get loads a subscription. A missing row yields (nil, nil).
func (r *SubscriptionRepository) Get(ctx context.Context, id string) (*billing.Subscription, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("subscription repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, company_id, service_id, start_date, end_date, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	sub, err := scanSubscription(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sub, err
}

// Save upserts a subscription.
func (r *SubscriptionRepository) Save(ctx context.Context, sub *billing.Subscription) error {
	if r == nil || r.db == nil {
		return errors.New("subscription repo: nil db")
	}
	if sub == nil {
		return billing.ErrNilEntity
	}
	if err := sub.Validate(); err != nil {
		return err
	}
	var end any
	if sub.EndDate != nil {
		end = billing.Day(*sub.EndDate)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, company_id, service_id, start_date, end_date, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (id)
DO UPDATE SET
	company_id = EXCLUDED.company_id,
	service_id = EXCLUDED.service_id,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query, sub.ID, sub.CompanyID, sub.ServiceID, billing.Day(sub.StartDate), end)
	return err
}

// ListActiveOn lists subscriptions with start_date <= date < end_date.
func (r *SubscriptionRepository) ListActiveOn(ctx context.Context, companyID string, date time.Time) ([]billing.Subscription, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("subscription repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, company_id, service_id, start_date, end_date, updated_at
FROM %s
WHERE company_id = $1 AND start_date <= $2 AND (end_date IS NULL OR end_date > $2)
ORDER BY id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, companyID, billing.Day(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sub)
	}
	return result, rows.Err()
}

func scanSubscription(row rowScanner) (*billing.Subscription, error) {
	var sub billing.Subscription
	var end sql.NullTime
	if err := row.Scan(&sub.ID, &sub.CompanyID, &sub.ServiceID, &sub.StartDate, &end, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	sub.StartDate = billing.Day(sub.StartDate)
	if end.Valid {
		e := billing.Day(end.Time)
		sub.EndDate = &e
	}
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return &sub, nil
}
