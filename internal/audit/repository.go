package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository stores audit entries in the audit_logs table.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository returns nil without a database so callers fall back to the log sink.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db, now: time.Now}
}

// Log inserts the entry. Failed payment ids go to a text[] column.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit: repository has no database")
	}
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	failed := entry.FailedPaymentIDs
	if failed == nil {
		failed = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO audit_logs (
	id, tenant_id, actor, role, action, resource_type, resource_id, company_id,
	recalculation_trigger, updated_count, failed_payment_ids, import_digest,
	ip, user_agent, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		entry.ID, entry.TenantID, entry.Actor, entry.Role, entry.Action,
		entry.ResourceType, entry.ResourceID, entry.CompanyID,
		entry.Trigger, entry.UpdatedCount, failed, entry.ImportDigest,
		entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}
