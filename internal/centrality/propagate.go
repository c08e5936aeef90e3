package centrality

import (
	"fmt"

	"github.com/papapumpkin/contagion/internal/graph"
)

// propagator holds the per-node scratch state for one seed at a time. Each
// worker owns one and reuses it across seeds; only nodes reached by the
// previous seed are reset, so a seed with a small reach stays cheap.
type propagator struct {
	g    *graph.Graph
	beta float64

	// uninfected[v] is the probability v has not been activated so far.
	uninfected []float64
	// last[v] is the probability v was newly activated in the previous round.
	last []float64
	// next[v] is the probability v is newly activated in the current round.
	next []float64
	// dist[v] is the BFS ring v belongs to, -1 when not yet reached.
	dist []int
	// queue holds reached nodes in BFS order.
	queue []int
}

func newPropagator(g *graph.Graph, beta float64) *propagator {
	n := g.Len()
	p := &propagator{
		g:          g,
		beta:       beta,
		uninfected: make([]float64, n),
		last:       make([]float64, n),
		next:       make([]float64, n),
		dist:       make([]int, n),
		queue:      make([]int, 0, n),
	}
	for i := range n {
		p.uninfected[i] = 1
		p.dist[i] = -1
	}
	return p
}

func (p *propagator) reset() {
	for _, v := range p.queue {
		p.uninfected[v] = 1
		p.last[v] = 0
		p.next[v] = 0
		p.dist[v] = -1
	}
	p.queue = p.queue[:0]
}

// run propagates a cascade from seed for at most order rounds and returns
// the number of rounds executed. With tol > 0 it stops after the first round
// whose largest relative drop in uninfected probability is at most tol.
func (p *propagator) run(seed, order int, tol float64) int {
	p.reset()
	p.uninfected[seed] = 0
	p.last[seed] = 1
	p.dist[seed] = 0
	p.queue = append(p.queue, seed)

	read := 0
	rounds := 0
	for t := 0; t < order; t++ {
		// Expand the reach by one ring: nodes at distance t+1 can first be
		// activated in this round.
		for end := len(p.queue); read < end; read++ {
			for _, nb := range p.g.Out(p.queue[read]) {
				if p.dist[nb.Node] < 0 {
					p.dist[nb.Node] = t + 1
					p.queue = append(p.queue, nb.Node)
				}
			}
		}

		maxDrop := 0.0
		for _, v := range p.queue {
			stay := 1.0
			for _, nb := range p.g.In(v) {
				stay *= 1 - p.last[nb.Node]*p.beta*nb.Weight
			}
			before := p.uninfected[v]
			after := before * stay
			mustBeProbability("stay", v, stay)
			mustBeProbability("uninfected", v, after)

			p.next[v] = before - after
			p.uninfected[v] = after
			if before > 0 {
				maxDrop = max(maxDrop, (before-after)/before)
			}
		}
		for _, v := range p.queue {
			p.last[v] = p.next[v]
		}
		rounds++

		if tol > 0 && !(maxDrop > tol) {
			break
		}
	}
	return rounds
}

// spread returns the expected number of activated nodes excluding the seed.
func (p *propagator) spread(seed int) float64 {
	total := 0.0
	for _, v := range p.queue {
		if v != seed {
			total += 1 - p.uninfected[v]
		}
	}
	return total
}

// activation copies the cumulative activation probability of every node.
func (p *propagator) activation() []float64 {
	out := make([]float64, len(p.uninfected))
	for v, u := range p.uninfected {
		out[v] = 1 - u
	}
	return out
}

// mustBeProbability panics when x is not a probability. Inputs are validated
// before propagation starts, so reaching this is a defect, not bad data.
func mustBeProbability(what string, node int, x float64) {
	if !(x >= 0 && x <= 1) {
		panic(fmt.Sprintf("centrality: %s probability %v of node %d outside [0,1]", what, x, node))
	}
}
