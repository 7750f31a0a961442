package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/gptmeter/internal/ports"
	portmocks "github.com/bnema/gptmeter/internal/ports/mocks"
)

const testKey = "openai/api_key"

func newChain(t *testing.T) (*Store, *portmocks.MockSecretStore, *portmocks.MockSecretStore) {
	t.Helper()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store, err := NewStore(Backend{Name: "pass", Store: primary}, Backend{Name: "file", Store: fallback})
	require.NoError(t, err)

	return store, primary, fallback
}

func notFound(name string) error {
	return fmt.Errorf("%s: %w", name, ports.ErrSecretNotFound)
}

func TestNewStoreValidatesBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStore()
	require.ErrorIs(t, err, errNoBackends)

	_, err = NewStore(Backend{Name: "pass"})
	require.EqualError(t, err, `secret backend "pass" is nil`)
}

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	store, primary, _ := newChain(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", errors.New("pass unavailable")).Once()
	fallback.EXPECT().Get(mock.Anything, testKey).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetReportsNotFoundWhenNoBackendHasKey(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", notFound("pass")).Once()
	fallback.EXPECT().Get(mock.Anything, testKey).Return("", notFound("file")).Once()

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func TestStoreGetCombinesErrorsWhenBackendsFail(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", errors.New("pass failed")).Once()
	fallback.EXPECT().Get(mock.Anything, testKey).Return("", notFound("file")).Once()

	_, err := store.Get(context.Background(), testKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass backend get failed: pass failed")
	assert.ErrorContains(t, err, "file backend get failed")
}

func TestStoreGetStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	store, primary, _ := newChain(t)
	primary.EXPECT().Get(mock.Anything, testKey).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStorePutSkipsReadOnlyAndFailingBackends(t *testing.T) {
	t.Parallel()

	readOnly := portmocks.NewMockSecretStore(t)
	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store, err := NewStore(
		Backend{Name: "env", Store: readOnly},
		Backend{Name: "pass", Store: primary},
		Backend{Name: "file", Store: fallback},
	)
	require.NoError(t, err)

	readOnly.EXPECT().Put(mock.Anything, testKey, "secret").Return(ports.ErrSecretReadOnly).Once()
	primary.EXPECT().Put(mock.Anything, testKey, "secret").Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Put(mock.Anything, testKey, "secret").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), testKey, "secret"))
}

func TestStorePutDoesNotCallFallbackWhenPrimarySucceeds(t *testing.T) {
	t.Parallel()

	store, primary, _ := newChain(t)
	primary.EXPECT().Put(mock.Anything, testKey, "secret").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), testKey, "secret"))
}

func TestStorePutFailsWhenEveryBackendFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.EXPECT().Put(mock.Anything, testKey, "secret").Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Put(mock.Anything, testKey, "secret").Return(errors.New("file failed")).Once()

	err := store.Put(context.Background(), testKey, "secret")
	assert.ErrorContains(t, err, "pass failed")
	assert.ErrorContains(t, err, "file failed")
}

func TestStoreDeleteReachesEveryBackend(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), testKey))
}

func TestStoreDeleteSucceedsWhenOneBackendDeletes(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newChain(t)
	primary.EXPECT().Delete(mock.Anything, testKey).Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), testKey))
}

func TestStoreDeleteOnReadOnlyChain(t *testing.T) {
	t.Parallel()

	readOnly := portmocks.NewMockSecretStore(t)
	store, err := NewStore(Backend{Name: "env", Store: readOnly})
	require.NoError(t, err)
	readOnly.EXPECT().Delete(mock.Anything, testKey).Return(ports.ErrSecretReadOnly).Once()

	require.ErrorIs(t, store.Delete(context.Background(), testKey), ports.ErrSecretReadOnly)
}
