package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bnema/gptmeter/internal/adapters/httpserver"
	"github.com/bnema/gptmeter/internal/adapters/transport/telegram"
	openaiupstream "github.com/bnema/gptmeter/internal/adapters/upstream/openai"
	"github.com/bnema/gptmeter/internal/application"
	"github.com/bnema/gptmeter/internal/metrics"
	"github.com/bnema/gptmeter/internal/ports"
)

const stopNotifyTimeout = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot until interrupted or stopped by the admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := wireApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			return runServe(ctx, app)
		},
	}
}

func runServe(ctx context.Context, app *app) error {
	cfg := app.cfg
	log := app.logger

	if err := cfg.ResolveCredentials(ctx, app.secretStore); err != nil {
		return fmt.Errorf("resolve credentials: %w", err)
	}

	metrics.Register()

	snapshot, seeded, err := application.OpenLedger(ctx, app.ledger, cfg.Admin, cfg.Quota.AdminBalance)
	if err != nil {
		return err
	}
	if seeded {
		log.Info("Seeded new ledger", zap.Int64("admin", int64(cfg.Admin)))
	}

	client, err := telegram.Dial(cfg.Telegram.Token, cfg.Admin)
	if err != nil {
		return err
	}

	completer := openaiupstream.NewCompleter(openaiupstream.Config{
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.Model,
		MaxTokens: cfg.OpenAI.MaxTokens,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := application.NewRegistry(app.ledger, snapshot, cfg.Admin,
		application.WithDefaultBalance(cfg.Quota.DefaultBalance))
	bot := application.NewBot(
		registry,
		application.NewQuotaEnforcer(registry),
		application.NewDispatcher(completer, application.WithDispatchTimeout(cfg.OpenAI.Timeout)),
		application.NewUsageAccountant(registry, ports.SystemClock{}, cfg.Pricing.CentsPerUnit),
		client,
		application.WithBotLogger(log),
		application.WithDefaultDirective(cfg.Directive),
		application.WithStopFunc(cancel),
	)

	metricsDone := make(chan struct{})
	if cfg.Metrics.Addr != "" {
		server := httpserver.New(cfg.Metrics.Addr, log)
		go func() {
			defer close(metricsDone)
			if err := server.Run(ctx); err != nil {
				log.Error("Metrics server failed", zap.Error(err))
			}
		}()
	} else {
		close(metricsDone)
	}

	log.Info("Bot started",
		zap.String("bot", client.Username()),
		zap.Int("accounts", len(snapshot.Accounts)),
		zap.String("model", cfg.OpenAI.Model),
	)
	if err := bot.NotifyStarted(ctx); err != nil {
		log.Warn("Notify admin of start failed", zap.Error(err))
	}

	runErr := client.Run(ctx, bot.HandleEvent)
	cancel()

	notifyCtx, cancelNotify := context.WithTimeout(context.WithoutCancel(ctx), stopNotifyTimeout)
	defer cancelNotify()
	if err := bot.NotifyStopped(notifyCtx); err != nil {
		log.Warn("Notify admin of stop failed", zap.Error(err))
	}

	<-metricsDone

	aggregate := registry.Aggregate()
	log.Info("Bot stopped",
		zap.Int64("total_requests", aggregate.TotalRequests),
		zap.Int64("total_units", aggregate.TotalUnits),
	)

	return runErr
}
