// Package centrality computes viral centrality: for every node, the expected
// number of other nodes eventually activated when an independent cascade
// starts at that node, truncated to a bounded number of propagation rounds.
//
// Each seed is propagated independently over fixed per-node arrays, so the
// cost is O(Order × E) per seed and O(N × Order × E) for a full run. Seeds
// share only the read-only graph and are computed concurrently.
package centrality

import (
	"cmp"
	"context"
	"slices"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papapumpkin/contagion/internal/graph"
	"github.com/papapumpkin/contagion/internal/metrics"
)

// Engine runs viral centrality computations. The zero value is not usable;
// construct one with NewEngine.
type Engine struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewEngine creates an Engine. A nil logger is replaced with a no-op logger;
// a nil collector disables metrics.
func NewEngine(logger *zap.Logger, m *metrics.Collector) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, metrics: m}
}

// Result holds one score per node, indexed like the graph.
type Result struct {
	Graph  *graph.Graph
	Scores []float64
	// Rounds records how many propagation rounds each seed executed. It is
	// Order for every seed unless Tolerance stopped some early.
	Rounds []int
}

// Ranked is one row of a ranked score table.
type Ranked struct {
	Index int
	Label string
	Score float64
}

// Ranked returns all nodes sorted by descending score, ties broken by
// ascending node index.
func (r *Result) Ranked() []Ranked {
	rows := make([]Ranked, len(r.Scores))
	for i, s := range r.Scores {
		rows[i] = Ranked{Index: i, Label: r.Graph.Label(i), Score: s}
	}
	slices.SortFunc(rows, func(a, b Ranked) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return rows
}

// Run computes the viral centrality of every node in g. Invalid options fail
// with a *graph.InvalidParameterError; an empty graph yields an empty result.
// Cancelling ctx stops the run between seeds and returns ctx's error.
func (e *Engine) Run(ctx context.Context, g *graph.Graph, opts Options) (*Result, error) {
	if err := opts.Validate(g); err != nil {
		return nil, err
	}
	n := g.Len()
	res := &Result{Graph: g, Scores: make([]float64, n), Rounds: make([]int, n)}
	if n == 0 {
		return res, nil
	}

	start := time.Now()
	workers := opts.workers(n)
	e.logger.Debug("viral centrality run started",
		zap.Int("nodes", n),
		zap.Int("edges", g.EdgeCount()),
		zap.Int("order", opts.Order),
		zap.Float64("beta", opts.Beta),
		zap.Float64("tolerance", opts.Tolerance),
		zap.Int("workers", workers),
	)

	var next atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	for range workers {
		eg.Go(func() error {
			p := newPropagator(g, opts.Beta)
			for {
				seed := int(next.Add(1) - 1)
				if seed >= n {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				rounds := p.run(seed, opts.Order, opts.Tolerance)
				res.Scores[seed] = p.spread(seed)
				res.Rounds[seed] = rounds
				e.metrics.ObserveSeed(rounds)
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	e.metrics.ObserveRun(n, elapsed)
	e.logger.Debug("viral centrality run finished", zap.Int("nodes", n), zap.Duration("elapsed", elapsed))
	return res, nil
}

// Activation returns, for a single seed, the cumulative probability that
// each node has been activated after the configured rounds. The seed itself
// is 1.
func Activation(g *graph.Graph, seed int, opts Options) ([]float64, error) {
	if err := opts.Validate(g); err != nil {
		return nil, err
	}
	if seed < 0 || seed >= g.Len() {
		return nil, &graph.InvalidParameterError{Name: "seed", Value: seed, Reason: "node index out of range"}
	}
	p := newPropagator(g, opts.Beta)
	p.run(seed, opts.Order, opts.Tolerance)
	return p.activation(), nil
}

// Compute is a convenience wrapper that runs a silent Engine.
func Compute(ctx context.Context, g *graph.Graph, opts Options) (*Result, error) {
	return NewEngine(nil, nil).Run(ctx, g, opts)
}
