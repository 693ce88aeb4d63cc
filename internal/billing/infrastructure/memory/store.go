package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	billing "energy-billing/internal/billing/domain"
)

// Store is an in-memory billing store. InTx serializes transactions and, when
// fn fails, restores only the rows the transaction wrote.
type Store struct {
	txMu sync.Mutex
	st   *state
}

type state struct {
	mu            sync.RWMutex
	facts         map[string]billing.MeteredUsageFact
	subscriptions map[string]billing.Subscription
	payments      map[string]billing.Payment
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{st: &state{
		facts:         map[string]billing.MeteredUsageFact{},
		subscriptions: map[string]billing.Subscription{},
		payments:      map[string]billing.Payment{},
	}}
}

func (s *Store) Facts() billing.UsageFactRepository { return factRepo{st: s.st} }
func (s *Store) Subscriptions() billing.SubscriptionRepository {
	return subscriptionRepo{st: s.st}
}
func (s *Store) Payments() billing.PaymentRepository { return paymentRepo{st: s.st} }

// InTx runs fn with all-or-nothing semantics.
func (s *Store) InTx(_ context.Context, fn func(tx billing.Store) error) error {
	if fn == nil {
		return errors.New("billing memory store: nil tx func")
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := newUndoLog()
	if err := fn(txStore{st: s.st, undo: undo}); err != nil {
		s.st.mu.Lock()
		undo.apply(s.st)
		s.st.mu.Unlock()
		return err
	}
	return nil
}

// DeleteFact removes a usage fact outside any transaction.
func (s *Store) DeleteFact(id string) {
	s.st.mu.Lock()
	delete(s.st.facts, id)
	s.st.mu.Unlock()
}

// txStore is the store handed to InTx callbacks; nested InTx runs inline.
type txStore struct {
	st   *state
	undo *undoLog
}

func (t txStore) Facts() billing.UsageFactRepository { return factRepo{st: t.st, undo: t.undo} }
func (t txStore) Subscriptions() billing.SubscriptionRepository {
	return subscriptionRepo{st: t.st, undo: t.undo}
}
func (t txStore) Payments() billing.PaymentRepository { return paymentRepo{st: t.st, undo: t.undo} }
func (t txStore) InTx(_ context.Context, fn func(tx billing.Store) error) error {
	return fn(t)
}

// prior is a row as it was before the transaction first wrote it.
type prior[T any] struct {
	value   T
	existed bool
}

// undoLog records the first pre-image of every key written inside InTx.
// A nil *undoLog means the write is outside a transaction.
type undoLog struct {
	facts         map[string]prior[billing.MeteredUsageFact]
	subscriptions map[string]prior[billing.Subscription]
	payments      map[string]prior[billing.Payment]
}

func newUndoLog() *undoLog {
	return &undoLog{
		facts:         map[string]prior[billing.MeteredUsageFact]{},
		subscriptions: map[string]prior[billing.Subscription]{},
		payments:      map[string]prior[billing.Payment]{},
	}
}

// remember must be called with st.mu held.
func remember[T any](log map[string]prior[T], rows map[string]T, id string) {
	if _, seen := log[id]; seen {
		return
	}
	v, ok := rows[id]
	log[id] = prior[T]{value: v, existed: ok}
}

func restore[T any](log map[string]prior[T], rows map[string]T) {
	for id, p := range log {
		if p.existed {
			rows[id] = p.value
		} else {
			delete(rows, id)
		}
	}
}

func (u *undoLog) apply(st *state) {
	restore(u.facts, st.facts)
	restore(u.subscriptions, st.subscriptions)
	restore(u.payments, st.payments)
}

type factRepo struct {
	st   *state
	undo *undoLog
}

func (r factRepo) Get(_ context.Context, id string) (*billing.MeteredUsageFact, error) {
	r.st.mu.RLock()
	fact, ok := r.st.facts[id]
	r.st.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &fact, nil
}

func (r factRepo) Save(_ context.Context, fact *billing.MeteredUsageFact) error {
	if fact == nil {
		return billing.ErrNilEntity
	}
	if err := fact.Validate(); err != nil {
		return err
	}
	r.st.mu.Lock()
	if r.undo != nil {
		remember(r.undo.facts, r.st.facts, fact.ID)
	}
	r.st.facts[fact.ID] = *fact
	r.st.mu.Unlock()
	return nil
}

func (r factRepo) ListByCompanyBetween(_ context.Context, companyID string, from, to time.Time) ([]billing.MeteredUsageFact, error) {
	from, to = billing.Day(from), billing.Day(to)
	r.st.mu.RLock()
	var result []billing.MeteredUsageFact
	for _, f := range r.st.facts {
		day := billing.Day(f.UsageDate)
		if f.CompanyID == companyID && !day.Before(from) && !day.After(to) {
			result = append(result, f)
		}
	}
	r.st.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UsageDate.Equal(result[j].UsageDate) {
			return result[i].UsageDate.Before(result[j].UsageDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type subscriptionRepo struct {
	st   *state
	undo *undoLog
}

func (r subscriptionRepo) Get(_ context.Context, id string) (*billing.Subscription, error) {
	r.st.mu.RLock()
	sub, ok := r.st.subscriptions[id]
	r.st.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	out := sub.Clone()
	return &out, nil
}

func (r subscriptionRepo) Save(_ context.Context, sub *billing.Subscription) error {
	if sub == nil {
		return billing.ErrNilEntity
	}
	if err := sub.Validate(); err != nil {
		return err
	}
	r.st.mu.Lock()
	if r.undo != nil {
		remember(r.undo.subscriptions, r.st.subscriptions, sub.ID)
	}
	r.st.subscriptions[sub.ID] = sub.Clone()
	r.st.mu.Unlock()
	return nil
}

func (r subscriptionRepo) ListActiveOn(_ context.Context, companyID string, date time.Time) ([]billing.Subscription, error) {
	r.st.mu.RLock()
	var result []billing.Subscription
	for _, s := range r.st.subscriptions {
		if s.CompanyID == companyID && s.ActiveOn(date) {
			result = append(result, s.Clone())
		}
	}
	r.st.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type paymentRepo struct {
	st   *state
	undo *undoLog
}

func (r paymentRepo) Get(_ context.Context, id string) (*billing.Payment, error) {
	r.st.mu.RLock()
	p, ok := r.st.payments[id]
	r.st.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	out := p.Clone()
	return &out, nil
}

func (r paymentRepo) Save(_ context.Context, p *billing.Payment) error {
	if p == nil {
		return billing.ErrNilEntity
	}
	if err := p.Validate(); err != nil {
		return err
	}
	r.st.mu.Lock()
	if r.undo != nil {
		remember(r.undo.payments, r.st.payments, p.ID)
	}
	r.st.payments[p.ID] = p.Clone()
	r.st.mu.Unlock()
	return nil
}

func (r paymentRepo) ListByUsageFact(_ context.Context, usageFactID string) ([]billing.Payment, error) {
	return r.filter(func(p billing.Payment) bool { return p.MeteredUsageID == usageFactID }), nil
}

func (r paymentRepo) ListByCompanyWindow(_ context.Context, companyID string, window billing.Window) ([]billing.Payment, error) {
	return r.filter(func(p billing.Payment) bool {
		return p.CompanyID == companyID && window.Contains(p.UsageDate)
	}), nil
}

func (r paymentRepo) filter(keep func(billing.Payment) bool) []billing.Payment {
	r.st.mu.RLock()
	var result []billing.Payment
	for _, p := range r.st.payments {
		if keep(p) {
			result = append(result, p.Clone())
		}
	}
	r.st.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
