package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/ports"
)

// OpenLedger loads the persisted snapshot. On first run it seeds a ledger that
// holds only the privileged account and persists it before returning; the
// returned bool reports whether seeding happened.
func OpenLedger(ctx context.Context, store ports.LedgerStore, admin domain.Identity, adminBalance int64) (domain.Snapshot, bool, error) {
	snapshot, err := store.Load(ctx)
	if err == nil {
		if snapshot.Accounts == nil {
			snapshot.Accounts = map[domain.Identity]domain.AccountRecord{}
		}
		return snapshot, false, nil
	}
	if !errors.Is(err, domain.ErrLedgerNotFound) {
		return domain.Snapshot{}, false, fmt.Errorf("load ledger: %w", err)
	}

	seed := domain.NewSeedSnapshot(admin, adminBalance)
	if err := store.Persist(ctx, seed); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("persist seed ledger: %w", err)
	}

	return seed, true, nil
}
