package domain

import (
	"sort"
	"time"
)

const (
	DefaultBalance      int64 = 30_000
	DefaultAdminBalance int64 = 777_777
)

// TimestampLayout is the wire format of LastActivity (DD.MM.YYYY HH:MM:SS, UTC).
const TimestampLayout = "02.01.2006 15:04:05"

type AccountRecord struct {
	ID            Identity
	RequestCount  int64
	UnitsConsumed int64
	Balance       int64
	DisplayName   string
	// Handle is an external contact label, never used for access control.
	Handle       string
	LastActivity time.Time
	// SystemDirective overrides the default directive when non-empty.
	SystemDirective string
}

func (a AccountRecord) HasDirective() bool {
	return a.SystemDirective != ""
}

type AggregateRecord struct {
	TotalRequests int64
	TotalUnits    int64
}

// Snapshot is the complete persisted ledger state.
type Snapshot struct {
	Aggregate AggregateRecord
	Accounts  map[Identity]AccountRecord
}

// NewSeedSnapshot returns the first-run ledger: one privileged account and an
// empty aggregate.
func NewSeedSnapshot(admin Identity, adminBalance int64) Snapshot {
	return Snapshot{
		Accounts: map[Identity]AccountRecord{
			admin: {ID: admin, Balance: adminBalance},
		},
	}
}

func (s Snapshot) Clone() Snapshot {
	accounts := make(map[Identity]AccountRecord, len(s.Accounts))
	for id, account := range s.Accounts {
		accounts[id] = account
	}

	return Snapshot{Aggregate: s.Aggregate, Accounts: accounts}
}

// SortedAccounts returns the accounts ordered by identity.
func (s Snapshot) SortedAccounts() []AccountRecord {
	accounts := make([]AccountRecord, 0, len(s.Accounts))
	for _, account := range s.Accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})

	return accounts
}
