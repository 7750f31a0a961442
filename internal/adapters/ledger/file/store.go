package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/gptmeter/internal/adapters/ledger/codec"
	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/ports"
)

const (
	ledgerFileMode  = 0o600
	ledgerDirMode   = 0o700
	tempFilePattern = ".ledger-*.tmp"
)

// Store keeps the ledger in a single document that is rewritten in full on
// every Persist through a temp file and a rename.
type Store struct {
	path   string
	format codec.Format
	mu     *sync.Mutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.Mutex{}
)

var _ ports.LedgerStore = (*Store)(nil)

func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("ledger path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve ledger path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Store{
		path:   absPath,
		format: codec.FormatForPath(absPath),
		mu:     lockForPath(absPath),
	}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Snapshot{}, domain.ErrLedgerNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("read ledger file: %w", err)
	}

	snapshot, err := codec.Decode(s.format, data)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load ledger %s: %w", s.path, err)
	}

	return snapshot, nil
}

func (s *Store) Persist(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := codec.Encode(s.format, snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeAtomically(data)
}

func lockForPath(path string) *sync.Mutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.Mutex{}
	pathLockMap[path] = mu
	return mu
}

func (s *Store) writeAtomically(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, ledgerDirMode); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp ledger file: %w", err)
	}

	if err := tempFile.Chmod(ledgerFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp ledger file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp ledger file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp ledger file: %w", err)
	}

	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}

	cleanup = false
	syncDir(dir)

	return nil
}

// syncDir flushes the rename itself; not every platform supports it.
func syncDir(dir string) {
	handle, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = handle.Sync()
	_ = handle.Close()
}
