package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/ports"
	"github.com/bnema/gptmeter/internal/ports/mocks"
)

var managedEnv = []string{
	"OPENAI_API_KEY", "TELEGRAM_API_KEY", "ADMIN_ID",
	"GPTMETER_OPENAI_API_KEY", "GPTMETER_TELEGRAM_TOKEN", "GPTMETER_ADMIN_ID",
	"GPTMETER_LEDGER_BACKEND", "GPTMETER_LEDGER_PATH", "GPTMETER_OPENAI_MODEL",
}

// isolateEnv unsets every variable the loader reads and points the user
// config directory at an empty temp dir. Original values return on cleanup.
func isolateEnv(t *testing.T) {
	t.Helper()

	for _, name := range managedEnv {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ADMIN_ID", "1001")

	v, err := NewViper("", "")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, domain.Identity(1001), cfg.Admin)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.Model)
	assert.Equal(t, 3000, cfg.OpenAI.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, LedgerConfig{Backend: BackendFile, Path: "data.json"}, cfg.Ledger)
	assert.Equal(t, QuotaConfig{DefaultBalance: 30_000, AdminBalance: 777_777}, cfg.Quota)
	assert.InDelta(t, 0.0002, cfg.Pricing.CentsPerUnit, 1e-12)
	assert.Equal(t, "You are a helpful assistant.", cfg.Directive)
	assert.Equal(t, "prod", cfg.Log.Env)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadRequiresAdminID(t *testing.T) {
	isolateEnv(t)

	v, err := NewViper("", "")
	require.NoError(t, err)

	_, err = Load(v)
	require.ErrorIs(t, err, ErrMissingSetting)
	assert.ErrorContains(t, err, "ADMIN_ID")
}

func TestLoadRejectsNonNumericAdminID(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ADMIN_ID", "@admin")

	v, err := NewViper("", "")
	require.NoError(t, err)

	_, err = Load(v)
	require.ErrorContains(t, err, "parse ADMIN_ID")
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ADMIN_ID", "1")
	t.Setenv("GPTMETER_ADMIN_ID", "2")
	t.Setenv("GPTMETER_OPENAI_MODEL", "gpt-4o-mini")

	v, err := NewViper("", "")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, domain.Identity(2), cfg.Admin)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
}

func TestLoadConfigFile(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "gptmeter.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
admin_id = 77

[openai]
api_key_ref = "openai/api_key"
timeout = "5s"

[ledger]
backend = "redis"

[redis]
addr = "redis:6379"
key = "bots:ledger"

[metrics]
addr = ":9090"
`), 0o600))

	v, err := NewViper(path, "")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, domain.Identity(77), cfg.Admin)
	assert.Equal(t, "openai/api_key", cfg.OpenAI.APIKeyRef)
	assert.Equal(t, 5*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, BackendRedis, cfg.Ledger.Backend)
	assert.Equal(t, RedisConfig{Addr: "redis:6379", Key: "bots:ledger"}, cfg.Redis)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestNewViperFailsOnMissingExplicitConfigFile(t *testing.T) {
	isolateEnv(t)

	_, err := NewViper(filepath.Join(t.TempDir(), "absent.toml"), "")
	require.ErrorContains(t, err, "read config file")
}

func TestNewViperLoadsDotEnvWithoutOverriding(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TELEGRAM_API_KEY", "from-env")

	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("OPENAI_API_KEY=sk-dotenv\nTELEGRAM_API_KEY=from-file\nADMIN_ID=5\n"), 0o600))

	v, err := NewViper("", dotenv)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "sk-dotenv", cfg.OpenAI.APIKey)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, domain.Identity(5), cfg.Admin)
}

func TestNewViperIgnoresMissingDotEnv(t *testing.T) {
	isolateEnv(t)

	_, err := NewViper("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
}

func TestLoadValidation(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ADMIN_ID", "1")
	t.Setenv("GPTMETER_LEDGER_BACKEND", "sqlite")

	v, err := NewViper("", "")
	require.NoError(t, err)
	v.Set(keyOpenAIMaxTokens, 0)
	v.Set(keyCentsPerUnit, -1)

	_, err = Load(v)
	require.Error(t, err)
	assert.ErrorContains(t, err, `unsupported ledger.backend "sqlite"`)
	assert.ErrorContains(t, err, "openai.max_tokens must be positive")
	assert.ErrorContains(t, err, "pricing.cents_per_unit must be positive")
}

func TestResolveCredentialsUsesDirectValues(t *testing.T) {
	cfg := Config{
		OpenAI:   OpenAIConfig{APIKey: "sk"},
		Telegram: TelegramConfig{Token: "tg"},
	}

	require.NoError(t, cfg.ResolveCredentials(context.Background(), nil))
	assert.Equal(t, "sk", cfg.OpenAI.APIKey)
	assert.Equal(t, "tg", cfg.Telegram.Token)
}

func TestResolveCredentialsFromSecretStore(t *testing.T) {
	secrets := mocks.NewMockSecretStore(t)
	secrets.EXPECT().Get(mock.Anything, "openai/api_key").Return("sk-stored\n", nil).Once()
	secrets.EXPECT().Get(mock.Anything, "telegram/token").Return("tg-stored", nil).Once()

	cfg := Config{
		OpenAI:   OpenAIConfig{APIKeyRef: "openai/api_key"},
		Telegram: TelegramConfig{TokenRef: "telegram/token"},
	}

	require.NoError(t, cfg.ResolveCredentials(context.Background(), secrets))
	assert.Equal(t, "sk-stored", cfg.OpenAI.APIKey)
	assert.Equal(t, "tg-stored", cfg.Telegram.Token)
}

func TestResolveCredentialsReportsEveryMissingSetting(t *testing.T) {
	secrets := mocks.NewMockSecretStore(t)
	secrets.EXPECT().Get(mock.Anything, "openai/api_key").Return("", ports.ErrSecretNotFound).Once()

	cfg := Config{OpenAI: OpenAIConfig{APIKeyRef: "openai/api_key"}}

	err := cfg.ResolveCredentials(context.Background(), secrets)
	require.ErrorIs(t, err, ErrMissingSetting)
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
	assert.ErrorContains(t, err, "TELEGRAM_API_KEY")
}

func TestResolveCredentialsPropagatesStoreFailure(t *testing.T) {
	storeErr := errors.New("gpg locked")
	secrets := mocks.NewMockSecretStore(t)
	secrets.EXPECT().Get(mock.Anything, "openai/api_key").Return("", storeErr).Once()

	cfg := Config{
		OpenAI:   OpenAIConfig{APIKeyRef: "openai/api_key"},
		Telegram: TelegramConfig{Token: "tg"},
	}

	require.ErrorIs(t, cfg.ResolveCredentials(context.Background(), secrets), storeErr)
}
