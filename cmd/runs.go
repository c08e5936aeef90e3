package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/contagion/internal/report"
	"github.com/papapumpkin/contagion/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List and inspect saved scoring runs",
	Long: `Lists the scoring runs recorded with "contagion compute --save", newest first.
Use "runs show <id>" to print a run's scores and "runs delete <id>" to
remove it.`,
	Args: cobra.NoArgs,
	RunE: runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the scores of a saved run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved run and its scores",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsDelete,
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum runs to list (0 = all)")
	runsShowCmd.Flags().Int("top", 0, "show only the N highest scores")
	runsCmd.AddCommand(runsShowCmd, runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

// withStore runs fn against the configured store.
func withStore(cmd *cobra.Command, fn func(*store.SQLiteStore) error) error {
	sess, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := store.Open(cmd.Context(), sess.cfg.DBPath)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	return withStore(cmd, func(s *store.SQLiteStore) error {
		runs, err := s.Runs(cmd.Context(), limit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "no saved runs")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %s  nodes=%d edges=%d order=%d beta=%s  %s\n",
				r.ID, r.CreatedAt.Local().Format(time.DateTime),
				r.Nodes, r.Edges, r.Order, report.FormatScore(r.Beta), r.Graph)
		}
		return nil
	})
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	top, _ := cmd.Flags().GetInt("top")
	return withStore(cmd, func(s *store.SQLiteStore) error {
		run, err := s.Run(cmd.Context(), args[0])
		if err != nil {
			return runLookupError(args[0], err)
		}
		scores, err := s.Scores(cmd.Context(), run.ID)
		if err != nil {
			return err
		}
		rows := make([]report.Row, len(scores))
		for i, sc := range scores {
			rows[i] = report.Row{Label: sc.Label, Score: sc.Score}
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "run %s (%s, order %d, beta %s)\n",
			run.ID, run.Graph, run.Order, report.FormatScore(run.Beta))
		fmt.Fprintln(w, report.Table(rows, top))
		return nil
	})
}

func runRunsDelete(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(s *store.SQLiteStore) error {
		if err := s.DeleteRun(cmd.Context(), args[0]); err != nil {
			return runLookupError(args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted run %s\n", args[0])
		return nil
	})
}

func runLookupError(id string, err error) error {
	if errors.Is(err, store.ErrRunNotFound) {
		return fmt.Errorf("no saved run %q", id)
	}
	return err
}
