package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/contagion/internal/builder"
	"github.com/papapumpkin/contagion/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [interactions.csv]",
	Short: "Append interactions and accounts to the store",
	Long: `Loads an interactions CSV (source_id,target_id,type[,count]) and/or an
accounts CSV (id,username[,activity]) into the SQLite store, so that later
builds can run over the accumulated history with "contagion build --from-db".

Accounts are upserted: a known id keeps its activity unless the new file
supplies one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("accounts", "", "accounts CSV to upsert")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	sess, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	accountsPath, _ := cmd.Flags().GetString("accounts")
	if len(args) == 0 && accountsPath == "" {
		return fmt.Errorf("nothing to ingest: pass an interactions CSV and/or --accounts")
	}

	ctx := cmd.Context()
	s, err := store.Open(ctx, sess.cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if accountsPath != "" {
		accounts, activity, err := readAccountsFile(accountsPath)
		if err != nil {
			return err
		}
		if err := s.AddAccounts(ctx, accounts, activity); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "accounts: %d upserted\n", len(accounts))
	}

	if len(args) == 1 {
		interactions, err := readFile(args[0], builder.ReadInteractions)
		if err != nil {
			return err
		}
		n, err := s.AddInteractions(ctx, interactions)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "interactions: %d stored\n", n)
	}

	sess.logger.Debug("ingest complete", zap.String("db", sess.cfg.DBPath))
	return nil
}
