package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/contagion/internal/builder"
	"github.com/papapumpkin/contagion/internal/graph"
	"github.com/papapumpkin/contagion/internal/interchange"
	"github.com/papapumpkin/contagion/internal/metrics"
	"github.com/papapumpkin/contagion/internal/store"
	"github.com/papapumpkin/contagion/internal/telemetry"
)

var buildCmd = &cobra.Command{
	Use:   "build [interactions.csv]",
	Short: "Build an influence graph from interactions",
	Long: `Aggregates pairwise interactions into a weighted influence graph.

Interactions come from a CSV file (source_id,target_id,type[,count]) or,
with --from-db, from the SQLite store filled by "contagion ingest". The
graph is written to --output in the format implied by its extension
(.json or .edgelist).

Weighting defaults to --weighting; --profile loads a TOML file with a
weighting function per interaction channel instead.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd.Flags(), builderFlags)
	},
	RunE: runBuild,
}

var builderFlags = map[string]string{
	"weighting":    "weighting",
	"rate":         "rate",
	"probability":  "probability",
	"min-activity": "min_activity",
	"profile":      "profile",
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "graph file to write (.json or .edgelist)")
	buildCmd.Flags().String("accounts", "", "accounts CSV (id,username[,activity]) restricting and labelling the network")
	buildCmd.Flags().Bool("from-db", false, "read interactions and accounts from the store instead of a CSV file")
	buildCmd.Flags().Duration("since", 0, "with --from-db, only use interactions from this far back (e.g. 168h)")
	buildCmd.Flags().String("weighting", "ratio", "weighting function: ratio, exponential or constant")
	buildCmd.Flags().Float64("rate", 1.0, "rate of the exponential weighting")
	buildCmd.Flags().Float64("probability", 0.5, "probability of the constant weighting")
	buildCmd.Flags().Int("min-activity", 0, "suppress edges from accounts with less total activity")
	buildCmd.Flags().String("profile", "", "TOML weighting profile (overrides --weighting)")
	_ = buildCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	sess, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	output, _ := cmd.Flags().GetString("output")
	fromDB, _ := cmd.Flags().GetBool("from-db")
	accountsPath, _ := cmd.Flags().GetString("accounts")
	since, _ := cmd.Flags().GetDuration("since")

	if fromDB == (len(args) == 1) {
		return fmt.Errorf("pass either an interactions CSV or --from-db")
	}
	if _, err := interchange.DetectFormat(output); err != nil {
		return err
	}

	var (
		interactions []builder.RawInteraction
		accounts     []builder.Account
		activity     map[string]int
	)
	if fromDB {
		interactions, accounts, activity, err = loadFromStore(cmd.Context(), sess.cfg.DBPath, since)
	} else {
		interactions, err = readFile(args[0], builder.ReadInteractions)
	}
	if err != nil {
		return err
	}
	if accountsPath != "" {
		accounts, activity, err = readAccountsFile(accountsPath)
		if err != nil {
			return err
		}
	}

	opts, err := sess.builderOptions(accounts, activity, nil)
	if err != nil {
		return err
	}
	g, report, err := builder.New(opts...).Build(interactions)
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}
	if err := interchange.WriteFile(output, g); err != nil {
		return err
	}

	printBuildReport(cmd.ErrOrStderr(), report)
	sess.logger.Info("graph written",
		zap.String("path", output),
		zap.Int("nodes", g.Len()),
		zap.Int("edges", g.EdgeCount()))
	sess.emit(telemetry.Event{
		Kind:  telemetry.KindBuildDone,
		Graph: output,
		Data: map[string]any{
			"interactions": report.Interactions,
			"accepted":     report.Accepted,
			"dropped":      report.DroppedTotal(),
			"suppressed":   report.Suppressed,
			"nodes":        report.Nodes,
			"edges":        report.Edges,
		},
	})
	return nil
}

// builderOptions turns the resolved configuration into builder options. A
// profile file, when configured, replaces the single weighting function.
func (sess *session) builderOptions(accounts []builder.Account, activity map[string]int, m *metrics.Collector) ([]builder.Option, error) {
	var opts []builder.Option
	if sess.cfg.Profile != "" {
		profile, err := builder.LoadProfile(sess.cfg.Profile)
		if err != nil {
			return nil, err
		}
		if opts, err = profile.Options(); err != nil {
			return nil, fmt.Errorf("weighting profile %s: %w", sess.cfg.Profile, err)
		}
	} else {
		spec := builder.FunctionSpec{Function: sess.cfg.Weighting, Rate: sess.cfg.Rate, P: sess.cfg.Probability}
		f, err := spec.Func()
		if err != nil {
			return nil, err
		}
		opts = append(opts, builder.WithWeighting(f))
	}

	opts = append(opts,
		builder.WithMinActivity(sess.cfg.MinActivity),
		builder.WithLogger(sess.logger),
		builder.WithMetrics(m),
	)
	if len(accounts) > 0 {
		opts = append(opts, builder.WithRoster(accounts))
	}
	if activity != nil {
		opts = append(opts, builder.WithActivity(activity))
	}
	return opts, nil
}

func loadFromStore(ctx context.Context, dbPath string, since time.Duration) ([]builder.RawInteraction, []builder.Account, map[string]int, error) {
	s, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, nil, nil, err
	}
	defer s.Close()

	var from time.Time
	if since > 0 {
		from = time.Now().Add(-since)
	}
	interactions, err := s.Interactions(ctx, from)
	if err != nil {
		return nil, nil, nil, err
	}
	accounts, activity, err := s.Accounts(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return interactions, accounts, activity, nil
}

// readFile opens path and decodes it with read, naming the file in errors.
func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func readAccountsFile(path string) ([]builder.Account, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	accounts, activity, err := builder.ReadAccounts(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return accounts, activity, nil
}

func printBuildReport(w io.Writer, r builder.Report) {
	fmt.Fprintf(w, "interactions: %d read, %d accepted\n", r.Interactions, r.Accepted)
	if n := r.DroppedTotal(); n > 0 {
		reasons := make([]string, 0, len(r.Dropped))
		for reason := range r.Dropped {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		fmt.Fprintf(w, "dropped: %d\n", n)
		for _, reason := range reasons {
			fmt.Fprintf(w, "  %-16s %d\n", reason, r.Dropped[builder.DropReason(reason)])
		}
	}
	if r.Suppressed > 0 {
		fmt.Fprintf(w, "suppressed pairs (below min activity): %d\n", r.Suppressed)
	}
	fmt.Fprintf(w, "graph: %d nodes, %d edges\n", r.Nodes, r.Edges)
}

// loadGraph reads a graph file, logging its shape.
func (sess *session) loadGraph(path string) (*graph.Graph, error) {
	g, err := interchange.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sess.logger.Debug("graph loaded",
		zap.String("path", path),
		zap.Int("nodes", g.Len()),
		zap.Int("edges", g.EdgeCount()))
	return g, nil
}
