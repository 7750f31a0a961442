package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage credentials referenced by *_ref settings",
	}

	cmd.AddCommand(newSecretSetCmd(), newSecretDeleteCmd())

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret in pass, or in a file when pass is unavailable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newSecretStore()
			if err != nil {
				return fmt.Errorf("wire secret store chain: %w", err)
			}

			return store.Put(cmd.Context(), args[0], value)
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Secret value")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret from every writable backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := newSecretStore()
			if err != nil {
				return fmt.Errorf("wire secret store chain: %w", err)
			}

			return store.Delete(cmd.Context(), args[0])
		},
	}
}
