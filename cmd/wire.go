package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	fileledger "github.com/bnema/gptmeter/internal/adapters/ledger/file"
	redisledger "github.com/bnema/gptmeter/internal/adapters/ledger/redis"
	ledgerrender "github.com/bnema/gptmeter/internal/adapters/render/ledger"
	chainstore "github.com/bnema/gptmeter/internal/adapters/secrets/chain"
	"github.com/bnema/gptmeter/internal/config"
	"github.com/bnema/gptmeter/internal/domain"
	"github.com/bnema/gptmeter/internal/logger"
	"github.com/bnema/gptmeter/internal/ports"
)

type app struct {
	cfg            config.Config
	logger         *zap.Logger
	ledger         ports.LedgerStore
	secretStore    ports.SecretStore
	ledgerRenderer func(domain.Snapshot, ledgerrender.RenderOptions) (string, error)
	now            func() time.Time
	closers        []func() error
}

// newSecretStore is replaced in tests to keep them off the user's password store.
var newSecretStore = defaultSecretStore

func wireApp(opts *rootOptions) (*app, error) {
	v, err := config.NewViper(opts.configFile, opts.envFile)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	secretStore, err := newSecretStore()
	if err != nil {
		return nil, fmt.Errorf("wire secret store chain: %w", err)
	}

	a := &app{
		cfg:            cfg,
		logger:         log,
		secretStore:    secretStore,
		ledgerRenderer: ledgerrender.Render,
		now:            time.Now,
		closers:        []func() error{syncLogger(log)},
	}

	store, closeStore, err := wireLedgerStore(cfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("wire ledger store: %w", err)
	}
	a.ledger = store
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	return a, nil
}

func wireLedgerStore(cfg config.Config) (ports.LedgerStore, func() error, error) {
	switch cfg.Ledger.Backend {
	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisledger.New(client, redisledger.WithKey(cfg.Redis.Key)), client.Close, nil
	default:
		store, err := fileledger.NewStore(cfg.Ledger.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}

func defaultSecretStore() (ports.SecretStore, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config directory: %w", err)
	}

	return chainstore.NewDefault(filepath.Join(configDir, "gptmeter", "secrets"))
}

// Close releases the ledger connection and flushes the logger.
func (a *app) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func syncLogger(log *zap.Logger) func() error {
	return func() error {
		// Sync on a console stderr reports EINVAL; nothing is lost.
		_ = log.Sync()
		return nil
	}
}
