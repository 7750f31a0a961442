// Package redis keeps the ledger document under a single Redis key. One bot
// process owns the key; concurrent writers from other processes overwrite each
// other.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bnema/gptmeter/internal/adapters/ledger/codec"
	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/ports"
)

const DefaultKey = "gptmeter:ledger"

// Store is a Redis-backed LedgerStore. The whole document is written with a
// single SET, so readers never observe a partial write.
type Store struct {
	client goredis.Cmdable
	key    string
	mu     sync.Mutex
}

var _ ports.LedgerStore = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithKey sets the Redis key holding the document (default "gptmeter:ledger").
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// New creates a Store. The client must be a connected *goredis.Client or
// *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		key:    DefaultKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Key() string {
	return s.key
}

func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.Snapshot{}, domain.ErrLedgerNotFound
		}
		return domain.Snapshot{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	snapshot, err := codec.Decode(codec.FormatJSON, data)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load ledger %s: %w", s.key, err)
	}
	return snapshot, nil
}

func (s *Store) Persist(ctx context.Context, snapshot domain.Snapshot) error {
	data, err := codec.Encode(codec.FormatJSON, snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}
