package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/ports"
)

var ErrMissingSetting = errors.New("missing required setting")

const (
	envPrefix  = "GPTMETER"
	configName = "config"
	configType = "toml"
	configDir  = "gptmeter"

	BackendFile  = "file"
	BackendRedis = "redis"
)

const (
	keyOpenAIAPIKey    = "openai.api_key"
	keyOpenAIAPIKeyRef = "openai.api_key_ref"
	keyOpenAIBaseURL   = "openai.base_url"
	keyOpenAIModel     = "openai.model"
	keyOpenAIMaxTokens = "openai.max_tokens"
	keyOpenAITimeout   = "openai.timeout"
	keyTelegramToken   = "telegram.token"
	keyTelegramRef     = "telegram.token_ref"
	keyAdminID         = "admin_id"
	keyLedgerBackend   = "ledger.backend"
	keyLedgerPath      = "ledger.path"
	keyRedisAddr       = "redis.addr"
	keyRedisPassword   = "redis.password"
	keyRedisDB         = "redis.db"
	keyRedisKey        = "redis.key"
	keyDefaultBalance  = "quota.default_balance"
	keyAdminBalance    = "quota.admin_balance"
	keyCentsPerUnit    = "pricing.cents_per_unit"
	keyDirective       = "directive.default"
	keyLogEnv          = "log.env"
	keyLogLevel        = "log.level"
	keyMetricsAddr     = "metrics.addr"
)

type Config struct {
	OpenAI    OpenAIConfig
	Telegram  TelegramConfig
	Admin     domain.Identity
	Ledger    LedgerConfig
	Redis     RedisConfig
	Quota     QuotaConfig
	Pricing   PricingConfig
	Directive string
	Log       LogConfig
	Metrics   MetricsConfig
}

type OpenAIConfig struct {
	APIKey    string
	APIKeyRef string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type TelegramConfig struct {
	Token    string
	TokenRef string
}

type LedgerConfig struct {
	Backend string
	Path    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

type QuotaConfig struct {
	DefaultBalance int64
	AdminBalance   int64
}

type PricingConfig struct {
	CentsPerUnit float64
}

type LogConfig struct {
	Env   string
	Level string
}

type MetricsConfig struct {
	// Addr is empty when the metrics listener is disabled.
	Addr string
}

// NewViper prepares the settings source: defaults, GPTMETER_* environment
// variables, the unprefixed OPENAI_API_KEY, TELEGRAM_API_KEY and ADMIN_ID, an optional
// dotenv file and a TOML config file. An explicit configFile must exist; the
// default ~/.config/gptmeter/config.toml is optional.
func NewViper(configFile, dotEnvPath string) (*viper.Viper, error) {
	if dotEnvPath != "" {
		if err := loadDotEnv(dotEnvPath); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		keyOpenAIAPIKey:  "OPENAI_API_KEY",
		keyTelegramToken: "TELEGRAM_API_KEY",
		keyAdminID:       "ADMIN_ID",
	} {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		return v, nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, configDir))
	}
	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyOpenAIModel, "gpt-3.5-turbo")
	v.SetDefault(keyOpenAIMaxTokens, 3000)
	v.SetDefault(keyOpenAITimeout, "60s")
	v.SetDefault(keyLedgerBackend, BackendFile)
	v.SetDefault(keyLedgerPath, "data.json")
	v.SetDefault(keyRedisAddr, "localhost:6379")
	v.SetDefault(keyRedisKey, "gptmeter:ledger")
	v.SetDefault(keyDefaultBalance, domain.DefaultBalance)
	v.SetDefault(keyAdminBalance, domain.DefaultAdminBalance)
	v.SetDefault(keyCentsPerUnit, 0.0002)
	v.SetDefault(keyDirective, "You are a helpful assistant.")
	v.SetDefault(keyLogEnv, "prod")
}

// loadDotEnv exports the variables of a dotenv file that are not already set
// in the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat dotenv file: %w", err)
	}

	dotenv := viper.New()
	dotenv.SetConfigFile(path)
	dotenv.SetConfigType("env")
	if err := dotenv.ReadInConfig(); err != nil {
		return fmt.Errorf("read dotenv file: %w", err)
	}

	for _, key := range dotenv.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, dotenv.GetString(key)); err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
	}

	return nil
}

// Load reads every setting except the credentials, which ResolveCredentials
// fills in. The admin identity is required.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		OpenAI: OpenAIConfig{
			APIKey:    strings.TrimSpace(v.GetString(keyOpenAIAPIKey)),
			APIKeyRef: strings.TrimSpace(v.GetString(keyOpenAIAPIKeyRef)),
			BaseURL:   v.GetString(keyOpenAIBaseURL),
			Model:     v.GetString(keyOpenAIModel),
			MaxTokens: v.GetInt(keyOpenAIMaxTokens),
			Timeout:   v.GetDuration(keyOpenAITimeout),
		},
		Telegram: TelegramConfig{
			Token:    strings.TrimSpace(v.GetString(keyTelegramToken)),
			TokenRef: strings.TrimSpace(v.GetString(keyTelegramRef)),
		},
		Ledger: LedgerConfig{
			Backend: strings.ToLower(v.GetString(keyLedgerBackend)),
			Path:    v.GetString(keyLedgerPath),
		},
		Redis: RedisConfig{
			Addr:     v.GetString(keyRedisAddr),
			Password: v.GetString(keyRedisPassword),
			DB:       v.GetInt(keyRedisDB),
			Key:      v.GetString(keyRedisKey),
		},
		Quota: QuotaConfig{
			DefaultBalance: v.GetInt64(keyDefaultBalance),
			AdminBalance:   v.GetInt64(keyAdminBalance),
		},
		Pricing:   PricingConfig{CentsPerUnit: v.GetFloat64(keyCentsPerUnit)},
		Directive: v.GetString(keyDirective),
		Log: LogConfig{
			Env:   v.GetString(keyLogEnv),
			Level: v.GetString(keyLogLevel),
		},
		Metrics: MetricsConfig{Addr: v.GetString(keyMetricsAddr)},
	}

	rawAdmin := strings.TrimSpace(v.GetString(keyAdminID))
	if rawAdmin == "" {
		return Config{}, fmt.Errorf("%w: ADMIN_ID", ErrMissingSetting)
	}
	admin, err := domain.ParseIdentity(rawAdmin)
	if err != nil {
		return Config{}, fmt.Errorf("parse ADMIN_ID: %w", err)
	}
	cfg.Admin = admin

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	switch c.Ledger.Backend {
	case BackendFile:
		if c.Ledger.Path == "" {
			errs = append(errs, errors.New("ledger.path is empty"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported ledger.backend %q", c.Ledger.Backend))
	}

	if c.OpenAI.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("openai.max_tokens must be positive, got %d", c.OpenAI.MaxTokens))
	}
	if c.OpenAI.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("openai.timeout must be positive, got %s", c.OpenAI.Timeout))
	}
	if c.Quota.DefaultBalance < 0 || c.Quota.AdminBalance < 0 {
		errs = append(errs, errors.New("quota balances must not be negative"))
	}
	if c.Pricing.CentsPerUnit <= 0 {
		errs = append(errs, fmt.Errorf("pricing.cents_per_unit must be positive, got %g", c.Pricing.CentsPerUnit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ResolveCredentials fills the provider and transport credentials, looking up
// *_ref settings in the secret store when the value is not set directly. Every
// missing credential is reported.
func (c *Config) ResolveCredentials(ctx context.Context, secrets ports.SecretStore) error {
	apiKey, err := resolveSecret(ctx, secrets, c.OpenAI.APIKey, c.OpenAI.APIKeyRef, "OPENAI_API_KEY")
	if err != nil {
		return err
	}
	token, tokenErr := resolveSecret(ctx, secrets, c.Telegram.Token, c.Telegram.TokenRef, "TELEGRAM_API_KEY")
	if tokenErr != nil {
		return tokenErr
	}

	var missing []error
	if apiKey == "" {
		missing = append(missing, fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingSetting))
	}
	if token == "" {
		missing = append(missing, fmt.Errorf("%w: TELEGRAM_API_KEY", ErrMissingSetting))
	}
	if len(missing) > 0 {
		return errors.Join(missing...)
	}

	c.OpenAI.APIKey = apiKey
	c.Telegram.Token = token
	return nil
}

func resolveSecret(ctx context.Context, secrets ports.SecretStore, value, ref, name string) (string, error) {
	if value != "" || ref == "" {
		return value, nil
	}
	if secrets == nil {
		return "", fmt.Errorf("resolve %s: no secret store for ref %q", name, ref)
	}

	resolved, err := secrets.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, ports.ErrSecretNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("resolve %s from secret %q: %w", name, ref, err)
	}

	return strings.TrimSpace(resolved), nil
}
