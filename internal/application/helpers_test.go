package application

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bnema/gptmeter/internal/domain"
)

const (
	testAdmin domain.Identity = 1001
	testUser  domain.Identity = 42
)

// memStore is an in-memory LedgerStore that counts persists.
type memStore struct {
	mu        sync.Mutex
	snapshot  domain.Snapshot
	found     bool
	persisted int
	err       error
}

func (m *memStore) Load(context.Context) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.found {
		return domain.Snapshot{}, domain.ErrLedgerNotFound
	}
	return m.snapshot.Clone(), nil
}

func (m *memStore) Persist(_ context.Context, snapshot domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.snapshot = snapshot.Clone()
	m.found = true
	m.persisted++
	return nil
}

func (m *memStore) persistCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.persisted
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var testNow = time.Date(2026, 10, 14, 9, 30, 15, 0, time.UTC)

func newTestRegistry(accounts ...domain.AccountRecord) (*Registry, *memStore) {
	snapshot := domain.NewSeedSnapshot(testAdmin, domain.DefaultAdminBalance)
	for _, account := range accounts {
		snapshot.Accounts[account.ID] = account
	}

	store := &memStore{snapshot: snapshot.Clone(), found: true}
	return NewRegistry(store, snapshot, testAdmin), store
}

func mockAnyContext() interface{} {
	return mock.Anything
}
