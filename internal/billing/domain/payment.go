package billing

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Payment is a persisted invoice whose Amount is derived from its usage fact,
// its active services and its storage usage.
type Payment struct {
	ID                     string
	CompanyID              string
	MeteredUsageID         string
	SubscriptionServiceIDs []string
	StorageUsageBytes      int64
	Amount                 decimal.Decimal
	Status                 PaymentStatus
	UsageDate              time.Time
	ScheduledPaymentDate   time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Validate checks payment invariants.
func (p Payment) Validate() error {
	if p.ID == "" || p.MeteredUsageID == "" {
		return ErrEmptyID
	}
	if p.CompanyID == "" {
		return ErrEmptyCompanyID
	}
	if p.UsageDate.IsZero() {
		return ErrInvalidDate
	}
	if p.StorageUsageBytes < 0 || p.Amount.IsNegative() {
		return ErrNegativeQuantity
	}
	return nil
}

// Clone returns a deep copy.
func (p Payment) Clone() Payment {
	out := p
	out.SubscriptionServiceIDs = slices.Clone(p.SubscriptionServiceIDs)
	return out
}

// PaymentRepository stores payments. Get returns (nil, nil) when missing.
type PaymentRepository interface {
	Get(ctx context.Context, id string) (*Payment, error)
	Save(ctx context.Context, payment *Payment) error
	ListByUsageFact(ctx context.Context, usageFactID string) ([]Payment, error)
	// ListByCompanyWindow returns payments whose usage date lies in the window.
	ListByCompanyWindow(ctx context.Context, companyID string, window Window) ([]Payment, error)
}

// Store groups the billing repositories and runs work in a transaction.
type Store interface {
	Facts() UsageFactRepository
	Subscriptions() SubscriptionRepository
	Payments() PaymentRepository
	// InTx runs fn against a transaction-scoped store. An error rolls back
	// everything fn wrote.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
