// Package graph provides the immutable influence graph: a directed,
// weighted network whose edge weights are probabilities that influence
// transmits from source to target. Out-edges and in-edges are stored in
// parallel so that forward (spread) and backward (attribution) traversals
// are both O(degree).
package graph

import (
	"math"
)

// Node is an account in the network.
type Node struct {
	ID    string // opaque account identifier
	Label string // display label (username)
}

// Neighbor is one entry of an adjacency list: the node at the other end of
// the edge and the edge weight.
type Neighbor struct {
	Node   int
	Weight float64
}

// Edge is a directed edge between two node indices.
type Edge struct {
	Source int
	Target int
	Weight float64
}

// Graph is a validated influence graph. It is never mutated after
// construction and is safe for concurrent readers.
type Graph struct {
	nodes []Node
	index map[string]int
	// out maps node index → outgoing neighbors (targets).
	out [][]Neighbor
	// in maps node index → incoming neighbors (sources).
	in    [][]Neighbor
	edges int
}

// New builds a graph from explicit out-adjacency and in-adjacency lists, one
// entry per node. Self-loops are dropped from both sides. It returns a
// *ValidationError for out-of-range indices, weights outside [0, 1], list
// counts that do not match the node count, duplicate node ids, or duplicate
// edges, and a *ConsistencyError when the two adjacency sides do not mirror
// each other exactly. Construction is O(N + E).
func New(nodes []Node, out, in [][]Neighbor) (*Graph, error) {
	g, err := newEmpty(nodes)
	if err != nil {
		return nil, err
	}
	n := len(nodes)
	if len(out) != n {
		return nil, invalid("outList", -1, -1, "has %d entries for %d nodes", len(out), n)
	}
	if len(in) != n {
		return nil, invalid("inList", -1, -1, "has %d entries for %d nodes", len(in), n)
	}

	// pending holds every out-edge not yet matched by an in-edge.
	pending := make(map[[2]int]float64)
	for u, list := range out {
		for p, nb := range list {
			if err := checkNeighbor("outList", u, p, nb, n); err != nil {
				return nil, err
			}
			if nb.Node == u {
				continue
			}
			key := [2]int{u, nb.Node}
			if _, dup := pending[key]; dup {
				return nil, invalid("outList", u, p, "duplicate edge to node %d", nb.Node)
			}
			pending[key] = nb.Weight
			g.out[u] = append(g.out[u], nb)
			g.edges++
		}
	}

	for v, list := range in {
		for p, nb := range list {
			if err := checkNeighbor("inList", v, p, nb, n); err != nil {
				return nil, err
			}
			if nb.Node == v {
				continue
			}
			key := [2]int{nb.Node, v}
			w, ok := pending[key]
			if !ok {
				return nil, &ConsistencyError{Source: nb.Node, Target: v, Reason: "in-edge has no matching out-edge"}
			}
			if w != nb.Weight {
				return nil, &ConsistencyError{
					Source: nb.Node, Target: v,
					Reason: "out-edge weight " + FormatWeight(w) + " != in-edge weight " + FormatWeight(nb.Weight),
				}
			}
			delete(pending, key)
			g.in[v] = append(g.in[v], nb)
		}
	}

	if len(pending) > 0 {
		// Report the first unmatched out-edge in adjacency order.
		for u, list := range g.out {
			for _, nb := range list {
				if _, ok := pending[[2]int{u, nb.Node}]; ok {
					return nil, &ConsistencyError{Source: u, Target: nb.Node, Reason: "out-edge has no matching in-edge"}
				}
			}
		}
	}
	return g, nil
}

// FromEdges builds a graph from a node list and a flat edge list, deriving
// both adjacency sides. Out-lists and in-lists follow edge order. Self-loops
// are dropped; duplicate ordered pairs are a *ValidationError.
func FromEdges(nodes []Node, edges []Edge) (*Graph, error) {
	g, err := newEmpty(nodes)
	if err != nil {
		return nil, err
	}
	n := len(nodes)
	seen := make(map[[2]int]bool, len(edges))
	for i, e := range edges {
		if e.Source < 0 || e.Source >= n {
			return nil, invalid("edge.source", -1, i, "node index %d out of range [0,%d)", e.Source, n)
		}
		if e.Target < 0 || e.Target >= n {
			return nil, invalid("edge.target", -1, i, "node index %d out of range [0,%d)", e.Target, n)
		}
		if !validWeight(e.Weight) {
			return nil, invalid("edge.weight", e.Source, i, "weight %v outside [0,1]", e.Weight)
		}
		if e.Source == e.Target {
			continue
		}
		key := [2]int{e.Source, e.Target}
		if seen[key] {
			return nil, invalid("edge", e.Source, i, "duplicate edge to node %d", e.Target)
		}
		seen[key] = true
		g.out[e.Source] = append(g.out[e.Source], Neighbor{Node: e.Target, Weight: e.Weight})
		g.in[e.Target] = append(g.in[e.Target], Neighbor{Node: e.Source, Weight: e.Weight})
		g.edges++
	}
	return g, nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Node returns the node at index i.
func (g *Graph) Node(i int) Node {
	return g.nodes[i]
}

// Label returns the display label of node i.
func (g *Graph) Label(i int) string {
	return g.nodes[i].Label
}

// Nodes returns a copy of the node list in index order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Index returns the index of the node with the given account id.
func (g *Graph) Index(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Out returns the outgoing neighbors of node i. The returned slice is
// shared with the graph and must not be modified.
func (g *Graph) Out(i int) []Neighbor {
	return g.out[i]
}

// In returns the incoming neighbors of node i. The returned slice is
// shared with the graph and must not be modified.
func (g *Graph) In(i int) []Neighbor {
	return g.in[i]
}

// Edges returns all edges ordered by source index, then out-list order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edges)
	for u, list := range g.out {
		for _, nb := range list {
			edges = append(edges, Edge{Source: u, Target: nb.Node, Weight: nb.Weight})
		}
	}
	return edges
}

// MaxWeight returns the largest edge weight, or 0 for an edgeless graph.
func (g *Graph) MaxWeight() float64 {
	maxW := 0.0
	for _, list := range g.out {
		for _, nb := range list {
			maxW = math.Max(maxW, nb.Weight)
		}
	}
	return maxW
}

// Isolated reports whether node i has neither in-edges nor out-edges.
func (g *Graph) Isolated(i int) bool {
	return len(g.out[i]) == 0 && len(g.in[i]) == 0
}

func newEmpty(nodes []Node) (*Graph, error) {
	n := len(nodes)
	g := &Graph{
		nodes: make([]Node, n),
		index: make(map[string]int, n),
		out:   make([][]Neighbor, n),
		in:    make([][]Neighbor, n),
	}
	for i, node := range nodes {
		if node.ID == "" {
			node.ID = node.Label
		}
		if node.ID == "" {
			return nil, invalid("node", i, -1, "empty id and label")
		}
		if node.Label == "" {
			node.Label = node.ID
		}
		if prev, dup := g.index[node.ID]; dup {
			return nil, invalid("node", i, -1, "duplicate id %q (also node %d)", node.ID, prev)
		}
		g.index[node.ID] = i
		g.nodes[i] = node
	}
	return g, nil
}

func checkNeighbor(field string, node, pos int, nb Neighbor, n int) error {
	if nb.Node < 0 || nb.Node >= n {
		return invalid(field, node, pos, "node index %d out of range [0,%d)", nb.Node, n)
	}
	if !validWeight(nb.Weight) {
		return invalid(field, node, pos, "weight %v outside [0,1]", nb.Weight)
	}
	return nil
}

// validWeight also rejects NaN.
func validWeight(w float64) bool {
	return w >= 0 && w <= 1
}
