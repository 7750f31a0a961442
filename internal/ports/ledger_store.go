package ports

import (
	"context"

	"github.com/bnema/gptmeter/internal/domain"
)

// LedgerStore persists the full ledger snapshot.
//
// Load returns domain.ErrLedgerNotFound when nothing has been persisted yet and
// an error wrapping domain.ErrCorruptLedger when the stored document cannot be
// decoded. Persist replaces the stored snapshot atomically.
type LedgerStore interface {
	Load(ctx context.Context) (domain.Snapshot, error)
	Persist(ctx context.Context, snapshot domain.Snapshot) error
}
