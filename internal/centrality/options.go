package centrality

import (
	"math"
	"runtime"

	"github.com/papapumpkin/contagion/internal/graph"
)

// Options configures a viral centrality run.
type Options struct {
	// Order is the number of synchronous propagation rounds per seed. It
	// must be positive. With Tolerance set it is the upper bound on rounds.
	Order int

	// Beta multiplies every edge weight during propagation (transmissibility).
	// It must be positive and Beta × max weight must not exceed 1.
	Beta float64

	// Tolerance, when positive, stops a seed's propagation early once no
	// reached node's probability of remaining uninfected drops by more than
	// this relative amount in a round. Zero runs exactly Order rounds.
	Tolerance float64

	// Workers bounds the number of seeds computed concurrently. Zero means
	// GOMAXPROCS.
	Workers int
}

// DefaultOptions returns the research defaults: five rounds, unscaled
// weights, no early stopping, one worker per CPU.
func DefaultOptions() Options {
	return Options{
		Order: 5,
		Beta:  1.0,
	}
}

// Validate checks the options against g. Every failure is a
// *graph.InvalidParameterError.
func (o Options) Validate(g *graph.Graph) error {
	if o.Order <= 0 {
		return &graph.InvalidParameterError{Name: "order", Value: o.Order, Reason: "must be a positive number of rounds"}
	}
	if !(o.Beta > 0) || math.IsInf(o.Beta, 0) {
		return &graph.InvalidParameterError{Name: "beta", Value: o.Beta, Reason: "must be positive"}
	}
	if maxW := g.MaxWeight(); o.Beta*maxW > 1 {
		return &graph.InvalidParameterError{
			Name: "beta", Value: o.Beta,
			Reason: "scaled weight " + graph.FormatWeight(o.Beta*maxW) + " exceeds 1",
		}
	}
	if !(o.Tolerance >= 0) || math.IsInf(o.Tolerance, 0) {
		return &graph.InvalidParameterError{Name: "tolerance", Value: o.Tolerance, Reason: "must be zero or positive"}
	}
	if o.Workers < 0 {
		return &graph.InvalidParameterError{Name: "workers", Value: o.Workers, Reason: "must not be negative"}
	}
	return nil
}

func (o Options) workers(n int) int {
	w := o.Workers
	if w == 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return max(1, min(w, n))
}
