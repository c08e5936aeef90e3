// Package builder turns a stream of raw pairwise interactions into an
// influence graph. Repeated interactions between the same ordered pair are
// reduced to per-channel counts, normalized into per-channel probabilities
// by a pluggable weighting function, and combined into a single edge weight
// under an independence assumption.
package builder

import (
	"sort"

	"go.uber.org/zap"

	"github.com/papapumpkin/contagion/internal/graph"
	"github.com/papapumpkin/contagion/internal/metrics"
)

// DropReason explains why an interaction did not contribute to the graph.
type DropReason string

const (
	DropMissingAccount DropReason = "missing_account" // empty source or target id
	DropUnknownAccount DropReason = "unknown_account" // id not on the roster
	DropUnknownType    DropReason = "unknown_type"
	DropNegativeCount  DropReason = "negative_count"
	DropZeroCount      DropReason = "zero_count"
	DropSelfLoop       DropReason = "self_loop"
)

// Report summarizes a build. Dropped records are non-fatal; they are counted
// here so callers can surface a single diagnostic.
type Report struct {
	Interactions int                // records seen
	Accepted     int                // records that contributed counts
	Dropped      map[DropReason]int // skipped records by reason
	// Suppressed counts ordered pairs whose source fell below the minimum
	// activity threshold; their edges were not emitted.
	Suppressed int
	Nodes      int
	Edges      int
}

// DroppedTotal returns the number of skipped records across all reasons.
func (r Report) DroppedTotal() int {
	total := 0
	for _, n := range r.Dropped {
		total += n
	}
	return total
}

// Account is a known member of the network.
type Account struct {
	ID       string
	Username string
}

// Builder aggregates interactions into an influence graph. Configure it with
// Options; the zero configuration weights every channel with Ratio.
type Builder struct {
	fallback    WeightingFunc
	perType     map[InteractionType]WeightingFunc
	roster      []Account
	activity    map[string]int
	minActivity int
	logger      *zap.Logger
	metrics     *metrics.Collector
}

// Option configures a Builder.
type Option func(*Builder)

// WithWeighting sets the weighting used for channels without a specific one.
func WithWeighting(f WeightingFunc) Option {
	return func(b *Builder) { b.fallback = f }
}

// WithTypeWeighting sets the weighting for a single channel.
func WithTypeWeighting(t InteractionType, f WeightingFunc) Option {
	return func(b *Builder) { b.perType[t] = f }
}

// WithRoster restricts the network to the given accounts. Interactions that
// reference any other id are dropped as unknown, and every roster account
// becomes a node even if it never interacts.
func WithRoster(accounts []Account) Option {
	return func(b *Builder) { b.roster = accounts }
}

// WithActivity supplies each account's total activity (for example posts
// authored in the observation window). When set, it replaces the per-channel
// outgoing totals as the weighting denominator, and sources absent from the
// table emit no edges.
func WithActivity(activity map[string]int) Option {
	return func(b *Builder) { b.activity = activity }
}

// WithMinActivity suppresses edges from sources whose total activity is
// below n. Such accounts remain in the graph as nodes.
func WithMinActivity(n int) Option {
	return func(b *Builder) { b.minActivity = n }
}

// WithLogger sets the logger for build diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithMetrics records builds on the given collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(b *Builder) { b.metrics = c }
}

// New creates a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		fallback: Ratio,
		perType:  make(map[InteractionType]WeightingFunc),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type pair struct {
	source, target string
}

type sourceType struct {
	source string
	kind   InteractionType
}

// aggregate is the reduction state: per-pair per-channel counts and
// per-source per-channel totals.
type aggregate struct {
	accounts map[string]string // id → username
	counts   map[pair]map[InteractionType]int
	totals   map[sourceType]int
	report   Report
}

// Build reduces interactions into a graph. Node indices follow the lexical
// order of account ids, so any permutation of the same interactions yields an
// identical graph. A weighting function that produces a value outside [0, 1]
// fails the build with a *graph.ValidationError.
func (b *Builder) Build(interactions []RawInteraction) (*graph.Graph, Report, error) {
	agg := b.newAggregate()
	for _, ri := range interactions {
		b.add(agg, ri)
	}

	g, err := b.emit(agg)
	if err != nil {
		return nil, agg.report, err
	}
	agg.report.Nodes = g.Len()
	agg.report.Edges = g.EdgeCount()

	dropped := make(map[string]int, len(agg.report.Dropped))
	fields := []zap.Field{
		zap.Int("interactions", agg.report.Interactions),
		zap.Int("nodes", agg.report.Nodes),
		zap.Int("edges", agg.report.Edges),
	}
	for reason, n := range agg.report.Dropped {
		dropped[string(reason)] = n
		fields = append(fields, zap.Int("dropped_"+string(reason), n))
	}
	b.metrics.ObserveBuild(dropped)
	if agg.report.DroppedTotal() > 0 {
		b.logger.Warn("skipped malformed interactions", fields...)
	} else {
		b.logger.Debug("built influence graph", fields...)
	}
	return g, agg.report, nil
}

func (b *Builder) newAggregate() *aggregate {
	agg := &aggregate{
		accounts: make(map[string]string),
		counts:   make(map[pair]map[InteractionType]int),
		totals:   make(map[sourceType]int),
		report:   Report{Dropped: make(map[DropReason]int)},
	}
	for _, a := range b.roster {
		if a.ID != "" {
			agg.accounts[a.ID] = a.Username
		}
	}
	return agg
}

func (b *Builder) add(agg *aggregate, ri RawInteraction) {
	agg.report.Interactions++
	drop := func(reason DropReason) { agg.report.Dropped[reason]++ }

	if ri.Source == "" || ri.Target == "" {
		drop(DropMissingAccount)
		return
	}
	if b.roster != nil {
		_, okSrc := agg.accounts[ri.Source]
		_, okDst := agg.accounts[ri.Target]
		if !okSrc || !okDst {
			drop(DropUnknownAccount)
			return
		}
	} else {
		for _, id := range []string{ri.Source, ri.Target} {
			if _, ok := agg.accounts[id]; !ok {
				agg.accounts[id] = ""
			}
		}
	}

	switch {
	case !ri.Type.Valid():
		drop(DropUnknownType)
		return
	case ri.Count < 0:
		drop(DropNegativeCount)
		return
	case ri.Count == 0:
		drop(DropZeroCount)
		return
	case ri.Source == ri.Target:
		drop(DropSelfLoop)
		return
	}

	n := ri.Count
	key := pair{ri.Source, ri.Target}
	perType := agg.counts[key]
	if perType == nil {
		perType = make(map[InteractionType]int, len(Types))
		agg.counts[key] = perType
	}
	perType[ri.Type] += n
	agg.totals[sourceType{ri.Source, ri.Type}] += n
	agg.report.Accepted++
}

func (b *Builder) emit(agg *aggregate) (*graph.Graph, error) {
	ids := make([]string, 0, len(agg.accounts))
	for id := range agg.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := make(map[string]int, len(ids))
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		index[id] = i
		nodes[i] = graph.Node{ID: id, Label: agg.accounts[id]}
	}

	pairs := make([]pair, 0, len(agg.counts))
	for p := range agg.counts {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		si, sj := index[pairs[i].source], index[pairs[j].source]
		if si != sj {
			return si < sj
		}
		return index[pairs[i].target] < index[pairs[j].target]
	})

	edges := make([]graph.Edge, 0, len(pairs))
	probs := make([]float64, 0, len(Types))
	for _, p := range pairs {
		if !b.active(agg, p.source) {
			agg.report.Suppressed++
			continue
		}
		probs = probs[:0]
		for _, t := range Types {
			count := agg.counts[p][t]
			if count == 0 {
				continue
			}
			prob := b.weighting(t)(count, b.denominator(agg, p.source, t))
			if !(prob >= 0 && prob <= 1) {
				return nil, &graph.ValidationError{
					Field: "weighting", Node: index[p.source], Position: -1,
					Reason: "channel " + string(t) + " to " + p.target + " produced probability " + graph.FormatWeight(prob),
				}
			}
			probs = append(probs, prob)
		}
		w := Combine(probs...)
		if w == 0 {
			continue
		}
		edges = append(edges, graph.Edge{Source: index[p.source], Target: index[p.target], Weight: w})
	}
	return graph.FromEdges(nodes, edges)
}

func (b *Builder) weighting(t InteractionType) WeightingFunc {
	if f, ok := b.perType[t]; ok {
		return f
	}
	return b.fallback
}

// denominator is the weighting total for a source on one channel. It is
// always positive for sources that pass active.
func (b *Builder) denominator(agg *aggregate, source string, t InteractionType) int {
	if b.activity != nil {
		return b.activity[source]
	}
	return agg.totals[sourceType{source, t}]
}

// active reports whether a source may emit edges.
func (b *Builder) active(agg *aggregate, source string) bool {
	total := 0
	if b.activity != nil {
		var ok bool
		if total, ok = b.activity[source]; !ok || total <= 0 {
			return false
		}
	} else {
		for _, t := range Types {
			total += agg.totals[sourceType{source, t}]
		}
	}
	return total >= b.minActivity
}
