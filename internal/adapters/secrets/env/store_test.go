package env

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/gptmeter/internal/ports"
)

func TestStoreVariableName(t *testing.T) {
	t.Parallel()

	store := NewStore()
	assert.Equal(t, "GPTMETER_SECRET_OPENAI_API_KEY", store.VariableName("openai/api_key"))
	assert.Equal(t, "GPTMETER_SECRET_TELEGRAM_TOKEN", store.VariableName(" telegram.token "))
}

func TestStoreGet(t *testing.T) {
	t.Parallel()

	store := &Store{prefix: DefaultPrefix, lookup: func(name string) (string, bool) {
		if name == "GPTMETER_SECRET_OPENAI_API_KEY" {
			return "sk-test", true
		}
		if name == "GPTMETER_SECRET_EMPTY" {
			return "", true
		}
		return "", false
	}}

	value, err := store.Get(context.Background(), "openai/api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", value)

	_, err = store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ports.ErrSecretNotFound)

	_, err = store.Get(context.Background(), "empty")
	require.ErrorIs(t, err, ports.ErrSecretNotFound)
}

func TestStoreIsReadOnly(t *testing.T) {
	t.Parallel()

	store := NewStore()
	require.ErrorIs(t, store.Put(context.Background(), "k", "v"), ports.ErrSecretReadOnly)
	require.ErrorIs(t, store.Delete(context.Background(), "k"), ports.ErrSecretReadOnly)
}
