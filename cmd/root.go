package cmd

import "github.com/spf13/cobra"

type rootOptions struct {
	configFile string
	envFile    string
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "gptmeter",
		Short:         "gptmeter: metered chat completions over Telegram",
		Long:          "gptmeter runs a Telegram bot that forwards messages to an OpenAI-compatible chat completion API, charging every answer against a per-user unit balance kept in a ledger.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/gptmeter/config.toml)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file exported before settings are read (missing is fine)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(opts),
		newCheckCmd(opts),
		newLedgerCmd(opts),
		newSecretCmd(),
	)

	return rootCmd
}
