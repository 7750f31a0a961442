package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	fileledger "github.com/bnema/gptmeter/internal/adapters/ledger/file"
	ledgerrender "github.com/bnema/gptmeter/internal/adapters/render/ledger"
	"github.com/bnema/gptmeter/internal/application"
	"github.com/bnema/gptmeter/internal/domain"
)

var errLedgerExists = errors.New("target ledger already exists")

func newLedgerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and edit the account ledger",
		Long:  "Inspect and edit the account ledger. A running bot keeps its own copy in memory and overwrites offline edits on its next request, so stop it before crediting or importing.",
	}

	cmd.AddCommand(
		newLedgerShowCmd(opts),
		newLedgerCreditCmd(opts),
		newLedgerImportCmd(opts),
	)

	return cmd
}

type ledgerOutput struct {
	Aggregate domain.AggregateRecord
	Accounts  []domain.AccountRecord
}

func newLedgerShowCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show balances and usage of every account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			snapshot, err := app.ledger.Load(cmd.Context())
			if err != nil && !errors.Is(err, domain.ErrLedgerNotFound) {
				return fmt.Errorf("load ledger: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ledgerOutput{
					Aggregate: snapshot.Aggregate,
					Accounts:  snapshot.SortedAccounts(),
				})
			}

			rendered, err := app.ledgerRenderer(snapshot, ledgerrender.RenderOptions{
				Now:          app.now(),
				Privileged:   app.cfg.Admin,
				CentsPerUnit: app.cfg.Pricing.CentsPerUnit,
			})
			if err != nil {
				return fmt.Errorf("render ledger: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the ledger as JSON")

	return cmd
}

func newLedgerCreditCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "credit <id> <units>",
		Short: "Add units to an account balance (negative units debit)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseIdentity(args[0])
			if err != nil {
				return err
			}
			delta, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("units %q is not an integer: %w", args[1], err)
			}

			app, err := wireApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			snapshot, _, err := application.OpenLedger(cmd.Context(), app.ledger, app.cfg.Admin, app.cfg.Quota.AdminBalance)
			if err != nil {
				return err
			}

			registry := application.NewRegistry(app.ledger, snapshot, app.cfg.Admin,
				application.WithDefaultBalance(app.cfg.Quota.DefaultBalance))
			account, err := registry.Credit(cmd.Context(), id, delta)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Balance of %s is now %d units\n", account.ID, account.Balance)
			return err
		},
	}
}

func newLedgerImportCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Copy a ledger file (current or legacy data.json format) into the configured ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := fileledger.NewStore(args[0])
			if err != nil {
				return err
			}
			snapshot, err := source.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			app, err := wireApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			if !force {
				_, err := app.ledger.Load(cmd.Context())
				switch {
				case err == nil:
					return fmt.Errorf("%w; pass --force to replace it", errLedgerExists)
				case !errors.Is(err, domain.ErrLedgerNotFound):
					return fmt.Errorf("load target ledger: %w", err)
				}
			}

			if err := app.ledger.Persist(cmd.Context(), snapshot); err != nil {
				return fmt.Errorf("persist ledger: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts, %d requests, %d units\n",
				len(snapshot.Accounts), snapshot.Aggregate.TotalRequests, snapshot.Aggregate.TotalUnits)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing ledger")

	return cmd
}
