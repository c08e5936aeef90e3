// Package metrics exposes Prometheus instruments for graph builds and
// centrality runs. Each Collector owns its registry so tests and multiple
// engines never collide on registration. A nil *Collector is a valid no-op.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "contagion"

// Collector holds the Prometheus metrics for one process.
type Collector struct {
	registry *prometheus.Registry

	SeedsComputed       prometheus.Counter
	RunDuration         prometheus.Histogram
	RoundsPerSeed       prometheus.Histogram
	GraphsBuilt         prometheus.Counter
	InteractionsDropped *prometheus.CounterVec
	LastRunNodes        prometheus.Gauge
}

// New creates a Collector with a fresh registry and all metrics registered.
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		SeedsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "seeds_computed_total",
			Help:      "Total number of seed propagations completed",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full viral centrality run",
			Buckets:   prometheus.DefBuckets,
		}),
		RoundsPerSeed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "rounds_per_seed",
			Help:      "Propagation rounds executed per seed",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
		GraphsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "graphs_built_total",
			Help:      "Total number of influence graphs built from interactions",
		}),
		InteractionsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "interactions_dropped_total",
			Help:      "Interactions skipped during graph builds, by reason",
		}, []string{"reason"}),
		LastRunNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_nodes",
			Help:      "Node count of the most recently scored graph",
		}),
	}

	registry.MustRegister(
		c.SeedsComputed,
		c.RunDuration,
		c.RoundsPerSeed,
		c.GraphsBuilt,
		c.InteractionsDropped,
		c.LastRunNodes,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler returns an HTTP handler serving this collector's metrics.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveSeed records one finished seed propagation.
func (c *Collector) ObserveSeed(rounds int) {
	if c == nil {
		return
	}
	c.SeedsComputed.Inc()
	c.RoundsPerSeed.Observe(float64(rounds))
}

// ObserveRun records a finished centrality run over a graph of n nodes.
func (c *Collector) ObserveRun(n int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RunDuration.Observe(elapsed.Seconds())
	c.LastRunNodes.Set(float64(n))
}

// ObserveBuild records a finished graph build and its dropped interactions.
func (c *Collector) ObserveBuild(dropped map[string]int) {
	if c == nil {
		return
	}
	c.GraphsBuilt.Inc()
	for reason, n := range dropped {
		c.InteractionsDropped.WithLabelValues(reason).Add(float64(n))
	}
}
