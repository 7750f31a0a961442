package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/gptmeter/internal/adapters/transport/telegram"
	openaiupstream "github.com/bnema/gptmeter/internal/adapters/upstream/openai"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the OpenAI and Telegram credentials without spending units",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if err := app.cfg.ResolveCredentials(cmd.Context(), app.secretStore); err != nil {
				return fmt.Errorf("resolve credentials: %w", err)
			}

			var botName string
			err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Checking credentials...", func(ctx context.Context) error {
				completer := openaiupstream.NewCompleter(openaiupstream.Config{
					APIKey:  app.cfg.OpenAI.APIKey,
					BaseURL: app.cfg.OpenAI.BaseURL,
				})
				if err := completer.HealthCheck(ctx); err != nil {
					return fmt.Errorf("openai: %w", err)
				}

				client, err := telegram.Dial(app.cfg.Telegram.Token, app.cfg.Admin)
				if err != nil {
					return fmt.Errorf("telegram: %w", err)
				}
				botName = client.Username()
				return nil
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "openai: ok\ntelegram: ok (@%s)\n", botName)
			return err
		},
	}
}
