//go:build integration

package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerredis "github.com/bnema/gptmeter/internal/adapters/ledger/redis"
	"github.com/bnema/gptmeter/internal/domain"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestStore(t *testing.T, client *goredis.Client) *ledgerredis.Store {
	t.Helper()
	key := "test:" + t.Name() + ":ledger"
	t.Cleanup(func() { client.Del(context.Background(), key) })
	return ledgerredis.New(client, ledgerredis.WithKey(key))
}

func TestLoadMissingKey(t *testing.T) {
	store := newTestStore(t, newTestClient(t))

	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrLedgerNotFound)
}

func TestPersistLoadRoundTrip(t *testing.T) {
	store := newTestStore(t, newTestClient(t))
	ctx := context.Background()

	want := domain.NewSeedSnapshot(1001, domain.DefaultAdminBalance)
	want.Accounts[42] = domain.AccountRecord{
		ID:            42,
		RequestCount:  3,
		UnitsConsumed: 120,
		Balance:       29_880,
		DisplayName:   "Ada",
		Handle:        "ada",
		LastActivity:  time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC),
	}
	want.Aggregate = domain.AggregateRecord{TotalRequests: 3, TotalUnits: 120}

	require.NoError(t, store.Persist(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadCorruptDocument(t *testing.T) {
	client := newTestClient(t)
	store := newTestStore(t, client)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, store.Key(), "{broken", 0).Err())

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, domain.ErrCorruptLedger)
}
