package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/ports"
)

// Registry is the authoritative in-memory view of the ledger. Every mutation
// is applied to a copy, persisted, and only then made visible.
type Registry struct {
	mu             sync.Mutex
	store          ports.LedgerStore
	snapshot       domain.Snapshot
	privileged     domain.Identity
	defaultBalance int64
}

type RegistryOption func(*Registry)

func WithDefaultBalance(balance int64) RegistryOption {
	return func(r *Registry) {
		r.defaultBalance = balance
	}
}

func NewRegistry(store ports.LedgerStore, snapshot domain.Snapshot, privileged domain.Identity, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:          store,
		snapshot:       snapshot.Clone(),
		privileged:     privileged,
		defaultBalance: domain.DefaultBalance,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Registry) Privileged() domain.Identity {
	return r.privileged
}

func (r *Registry) IsPrivileged(id domain.Identity) bool {
	return id == r.privileged
}

func (r *Registry) Exists(id domain.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.snapshot.Accounts[id]
	return ok
}

func (r *Registry) Get(id domain.Identity) (domain.AccountRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.snapshot.Accounts[id]
	if !ok {
		return domain.AccountRecord{}, fmt.Errorf("get account %s: %w", id, domain.ErrAccountNotFound)
	}

	return account, nil
}

// Ensure creates the account with the default balance when it is missing.
// Existing accounts are returned untouched; created reports which case ran.
func (r *Registry) Ensure(ctx context.Context, id domain.Identity, displayName, handle string) (domain.AccountRecord, bool, error) {
	var (
		account domain.AccountRecord
		created bool
	)

	err := r.mutate(ctx, func(next *domain.Snapshot) (bool, error) {
		if existing, ok := next.Accounts[id]; ok {
			account = existing
			return false, nil
		}

		account = domain.AccountRecord{
			ID:          id,
			Balance:     r.defaultBalance,
			DisplayName: displayName,
			Handle:      handle,
		}
		next.Accounts[id] = account
		created = true
		return true, nil
	})
	if err != nil {
		return domain.AccountRecord{}, false, fmt.Errorf("ensure account %s: %w", id, err)
	}

	return account, created, nil
}

// SetDirective stores the account's system directive; an empty text restores
// the default.
func (r *Registry) SetDirective(ctx context.Context, id domain.Identity, text string) (domain.AccountRecord, error) {
	var account domain.AccountRecord

	err := r.mutate(ctx, func(next *domain.Snapshot) (bool, error) {
		existing, ok := next.Accounts[id]
		if !ok {
			return false, domain.ErrAccountNotFound
		}

		existing.SystemDirective = text
		next.Accounts[id] = existing
		account = existing
		return true, nil
	})
	if err != nil {
		return domain.AccountRecord{}, fmt.Errorf("set directive for %s: %w", id, err)
	}

	return account, nil
}

// RecordUsage books one completed request. The privileged account keeps its
// balance; everyone else is charged even if that drives the balance below zero.
func (r *Registry) RecordUsage(ctx context.Context, id domain.Identity, units int64, at time.Time) (domain.AccountRecord, domain.AggregateRecord, error) {
	if units < 0 {
		return domain.AccountRecord{}, domain.AggregateRecord{}, fmt.Errorf("record usage for %s: %w: %d", id, domain.ErrInvalidUnits, units)
	}

	var (
		account   domain.AccountRecord
		aggregate domain.AggregateRecord
	)

	err := r.mutate(ctx, func(next *domain.Snapshot) (bool, error) {
		existing, ok := next.Accounts[id]
		if !ok {
			return false, domain.ErrAccountNotFound
		}

		existing.RequestCount++
		existing.UnitsConsumed += units
		existing.LastActivity = at.UTC().Truncate(time.Second)
		if id != r.privileged {
			existing.Balance -= units
		}
		next.Accounts[id] = existing

		next.Aggregate.TotalRequests++
		next.Aggregate.TotalUnits += units

		account = existing
		aggregate = next.Aggregate
		return true, nil
	})
	if err != nil {
		return domain.AccountRecord{}, domain.AggregateRecord{}, fmt.Errorf("record usage for %s: %w", id, err)
	}

	return account, aggregate, nil
}

// Credit adjusts a balance by delta units. A negative delta is an explicit
// debit and may leave the balance below zero.
func (r *Registry) Credit(ctx context.Context, id domain.Identity, delta int64) (domain.AccountRecord, error) {
	if delta == 0 {
		return domain.AccountRecord{}, fmt.Errorf("credit %s: %w: zero delta", id, domain.ErrInvalidUnits)
	}

	var account domain.AccountRecord

	err := r.mutate(ctx, func(next *domain.Snapshot) (bool, error) {
		existing, ok := next.Accounts[id]
		if !ok {
			return false, domain.ErrAccountNotFound
		}

		existing.Balance += delta
		next.Accounts[id] = existing
		account = existing
		return true, nil
	})
	if err != nil {
		return domain.AccountRecord{}, fmt.Errorf("credit %s: %w", id, err)
	}

	return account, nil
}

func (r *Registry) Aggregate() domain.AggregateRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshot.Aggregate
}

// Accounts returns every account ordered by identity.
func (r *Registry) Accounts() []domain.AccountRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshot.SortedAccounts()
}

func (r *Registry) Snapshot() domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshot.Clone()
}

// mutate runs apply on a copy of the snapshot. When apply reports a change the
// copy is persisted and swapped in; a failed persist leaves the current view
// unchanged.
func (r *Registry) mutate(ctx context.Context, apply func(next *domain.Snapshot) (bool, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.snapshot.Clone()
	changed, err := apply(&next)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := r.store.Persist(ctx, next); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}

	r.snapshot = next
	return nil
}
