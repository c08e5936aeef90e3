package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/contagion/internal/builder"
	"github.com/papapumpkin/contagion/internal/interchange"
	"github.com/papapumpkin/contagion/internal/metrics"
	"github.com/papapumpkin/contagion/internal/report"
	"github.com/papapumpkin/contagion/internal/telemetry"
	"github.com/papapumpkin/contagion/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <graph>",
	Short: "Recompute scores whenever the graph changes",
	Long: `Computes viral centrality for a graph file, prints the ranking, and
recomputes whenever the file changes on disk.

With --from, the graph is instead rebuilt from an interactions CSV each time
that CSV changes, and then rescored. --metrics-addr serves Prometheus metrics
for builds and runs at /metrics.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := bindFlags(cmd.Flags(), engineFlags); err != nil {
			return err
		}
		if err := bindFlags(cmd.Flags(), builderFlags); err != nil {
			return err
		}
		return bindFlags(cmd.Flags(), map[string]string{"metrics-addr": "metrics_addr"})
	},
	RunE: runWatch,
}

func init() {
	addEngineFlags(watchCmd)
	watchCmd.Flags().String("from", "", "interactions CSV to rebuild the graph from on change")
	watchCmd.Flags().String("accounts", "", "with --from, accounts CSV restricting the network")
	watchCmd.Flags().String("weighting", "ratio", "with --from, weighting function: ratio, exponential or constant")
	watchCmd.Flags().Float64("rate", 1.0, "rate of the exponential weighting")
	watchCmd.Flags().Float64("probability", 0.5, "probability of the constant weighting")
	watchCmd.Flags().Int("min-activity", 0, "suppress edges from accounts with less total activity")
	watchCmd.Flags().String("profile", "", "TOML weighting profile (overrides --weighting)")
	watchCmd.Flags().Int("top", 10, "rows of the ranking to print (0 = all)")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a change is acted on")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.AddCommand(watchCmd)
}

// watchSession holds the state of one watch invocation.
type watchSession struct {
	sess     *session
	cmd      *cobra.Command
	graph    string
	from     string
	accounts string
	top      int
	metrics  *metrics.Collector
}

func runWatch(cmd *cobra.Command, args []string) error {
	sess, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ws := &watchSession{sess: sess, cmd: cmd, graph: args[0], metrics: metrics.New()}
	ws.from, _ = cmd.Flags().GetString("from")
	ws.accounts, _ = cmd.Flags().GetString("accounts")
	ws.top, _ = cmd.Flags().GetInt("top")
	debounce, _ := cmd.Flags().GetDuration("debounce")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sess.cfg.MetricsAddr != "" {
		srv, err := ws.serveMetrics(sess.cfg.MetricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	watched := ws.graph
	if ws.from != "" {
		watched = ws.from
	}
	w, err := watch.NewWatcher(debounce, watched)
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := w.Start(); err != nil {
		return err
	}

	// A failed first pass is reported but does not end the session; the
	// next change gets another chance.
	if err := ws.refresh(ctx); err != nil {
		sess.logger.Error("initial computation failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			sess.logger.Info("watch stopped")
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			if change.Kind == watch.ChangeRemoved {
				sess.logger.Warn("watched file removed; waiting for it to return", zap.String("file", change.File))
				continue
			}
			sess.emit(telemetry.Event{Kind: telemetry.KindGraphReloaded, Graph: ws.graph,
				Data: map[string]any{"file": change.File}})
			if err := ws.refresh(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				sess.logger.Error("recomputation failed", zap.String("file", change.File), zap.Error(err))
			}
		}
	}
}

// refresh rebuilds the graph when watching interactions, then scores it and
// prints the ranking.
func (ws *watchSession) refresh(ctx context.Context) error {
	if ws.from != "" {
		if err := ws.rebuild(); err != nil {
			return err
		}
	}
	g, err := ws.sess.loadGraph(ws.graph)
	if err != nil {
		return err
	}

	res, err := ws.sess.score(ctx, ws.graph, g, ws.metrics)
	if err != nil {
		return err
	}
	out := ws.cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s (%d nodes, %d edges)\n",
		time.Now().Format(time.TimeOnly), ws.graph, g.Len(), g.EdgeCount())
	fmt.Fprintln(out, report.Table(report.FromRanked(res.Ranked()), ws.top))
	return nil
}

func (ws *watchSession) rebuild() error {
	interactions, err := readFile(ws.from, builder.ReadInteractions)
	if err != nil {
		return err
	}
	var (
		accounts []builder.Account
		activity map[string]int
	)
	if ws.accounts != "" {
		if accounts, activity, err = readAccountsFile(ws.accounts); err != nil {
			return err
		}
	}
	opts, err := ws.sess.builderOptions(accounts, activity, ws.metrics)
	if err != nil {
		return err
	}
	g, rep, err := builder.New(opts...).Build(interactions)
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}
	if err := interchange.WriteFile(ws.graph, g); err != nil {
		return err
	}
	ws.sess.emit(telemetry.Event{Kind: telemetry.KindBuildDone, Graph: ws.graph,
		Data: map[string]any{"nodes": rep.Nodes, "edges": rep.Edges, "dropped": rep.DroppedTotal()}})
	return nil
}

func (ws *watchSession) serveMetrics(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", ws.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ws.sess.logger.Error("metrics server", zap.Error(err))
		}
	}()
	ws.sess.logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return srv, nil
}
