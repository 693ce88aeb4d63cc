package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	billing "energy-billing/internal/billing/domain"
)

const (
	defaultFactsTable         = "billing_usage_facts"
	defaultSubscriptionsTable = "billing_subscriptions"
	defaultPaymentsTable      = "billing_payments"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type tables struct {
	facts         string
	subscriptions string
	payments      string
}

// Store is the Postgres billing store.
type Store struct {
	db     *sql.DB
	q      DBTX
	tables tables
}

// Option configures the store.
type Option func(*Store)

// WithFactsTable overrides the usage facts table name.
func WithFactsTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.tables.facts = table
		}
	}
}

// WithSubscriptionsTable overrides the subscriptions table name.
func WithSubscriptionsTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.tables.subscriptions = table
		}
	}
}

// WithPaymentsTable overrides the payments table name.
func WithPaymentsTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.tables.payments = table
		}
	}
}

// NewStore constructs a store on db.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db: db,
		q:  db,
		tables: tables{
			facts:         defaultFactsTable,
			subscriptions: defaultSubscriptionsTable,
			payments:      defaultPaymentsTable,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Facts() billing.UsageFactRepository {
	return &FactRepository{db: s.q, table: s.tables.facts}
}

func (s *Store) Subscriptions() billing.SubscriptionRepository {
	return &SubscriptionRepository{db: s.q, table: s.tables.subscriptions}
}

func (s *Store) Payments() billing.PaymentRepository {
	return &PaymentRepository{db: s.q, table: s.tables.payments}
}

// InTx runs fn inside a database transaction. Nested calls reuse the
// outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx billing.Store) error) error {
	if s == nil || s.db == nil {
		return errors.New("billing store: nil db")
	}
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("billing store: begin: %w", err)
	}
	scoped := &Store{db: s.db, q: tx, tables: s.tables}
	if err := fn(scoped); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
