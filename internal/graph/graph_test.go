package graph

import (
	"errors"
	"testing"
)

// --- Test fixtures ---

func labels(names ...string) []Node {
	nodes := make([]Node, len(names))
	for i, n := range names {
		nodes[i] = Node{ID: n, Label: n}
	}
	return nodes
}

// buildWorkedExample creates the four-account influence chain
//
//	A ⇄ B → C → D
//
// with A→B 0.9, B→A 0.5, B→C 0.3, C→D 1.0.
func buildWorkedExample(t *testing.T) *Graph {
	t.Helper()
	g, err := FromEdges(labels("A", "B", "C", "D"), []Edge{
		{Source: 0, Target: 1, Weight: 0.9},
		{Source: 1, Target: 0, Weight: 0.5},
		{Source: 1, Target: 2, Weight: 0.3},
		{Source: 2, Target: 3, Weight: 1.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func assertMirrored(t *testing.T, g *Graph) {
	t.Helper()
	for u := 0; u < g.Len(); u++ {
		for _, nb := range g.Out(u) {
			found := 0
			for _, back := range g.In(nb.Node) {
				if back.Node == u {
					found++
					if back.Weight != nb.Weight {
						t.Errorf("edge %d->%d: in weight %v, out weight %v", u, nb.Node, back.Weight, nb.Weight)
					}
				}
			}
			if found != 1 {
				t.Errorf("edge %d->%d mirrored %d times, want 1", u, nb.Node, found)
			}
		}
	}
}

// --- Tests ---

func TestFromEdges_MirrorsAdjacency(t *testing.T) {
	t.Parallel()
	g := buildWorkedExample(t)

	if g.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", g.Len())
	}
	if g.EdgeCount() != 4 {
		t.Fatalf("EdgeCount() = %d, want 4", g.EdgeCount())
	}
	assertMirrored(t, g)

	in := g.In(0)
	if len(in) != 1 || in[0].Node != 1 || in[0].Weight != 0.5 {
		t.Errorf("In(A) = %v, want [{1 0.5}]", in)
	}
	if got := g.MaxWeight(); got != 1.0 {
		t.Errorf("MaxWeight() = %v, want 1", got)
	}
}

func TestFromEdges_DropsSelfLoops(t *testing.T) {
	t.Parallel()
	g, err := FromEdges(labels("A", "B"), []Edge{
		{Source: 0, Target: 0, Weight: 0.4},
		{Source: 0, Target: 1, Weight: 0.2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", g.EdgeCount())
	}
	if len(g.In(0)) != 0 {
		t.Errorf("self-loop survived on node 0: %v", g.In(0))
	}
}

func TestFromEdges_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		edges []Edge
	}{
		{"weight above one", []Edge{{Source: 0, Target: 1, Weight: 1.5}}},
		{"negative weight", []Edge{{Source: 0, Target: 1, Weight: -0.1}}},
		{"source out of range", []Edge{{Source: 2, Target: 1, Weight: 0.1}}},
		{"target out of range", []Edge{{Source: 0, Target: -1, Weight: 0.1}}},
		{"duplicate pair", []Edge{{Source: 0, Target: 1, Weight: 0.1}, {Source: 0, Target: 1, Weight: 0.2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := FromEdges(labels("A", "B"), tt.edges)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("errors.Is(err, ErrValidation) = false")
			}
		})
	}
}

func TestNew_AcceptsMirroredLists(t *testing.T) {
	t.Parallel()
	out := [][]Neighbor{{{Node: 1, Weight: 0.25}}, {{Node: 0, Weight: 1}}, nil}
	in := [][]Neighbor{{{Node: 1, Weight: 1}}, {{Node: 0, Weight: 0.25}}, nil}

	g, err := New(labels("a", "b", "c"), out, in)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	assertMirrored(t, g)
	if !g.Isolated(2) {
		t.Error("node c should be isolated")
	}
}

func TestNew_ConsistencyErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		out, in [][]Neighbor
		src     int
		dst     int
	}{
		{
			name: "missing in-edge",
			out:  [][]Neighbor{{{Node: 1, Weight: 0.5}}, nil},
			in:   [][]Neighbor{nil, nil},
			src:  0, dst: 1,
		},
		{
			name: "missing out-edge",
			out:  [][]Neighbor{nil, nil},
			in:   [][]Neighbor{nil, {{Node: 0, Weight: 0.5}}},
			src:  0, dst: 1,
		},
		{
			name: "weights disagree",
			out:  [][]Neighbor{{{Node: 1, Weight: 0.5}}, nil},
			in:   [][]Neighbor{nil, {{Node: 0, Weight: 0.4}}},
			src:  0, dst: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(labels("a", "b"), tt.out, tt.in)
			var cerr *ConsistencyError
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %v, want *ConsistencyError", err)
			}
			if cerr.Source != tt.src || cerr.Target != tt.dst {
				t.Errorf("edge = %d->%d, want %d->%d", cerr.Source, cerr.Target, tt.src, tt.dst)
			}
			if !errors.Is(err, ErrConsistency) {
				t.Error("errors.Is(err, ErrConsistency) = false")
			}
		})
	}
}

func TestNew_ListCountMismatch(t *testing.T) {
	t.Parallel()
	_, err := New(labels("a", "b"), [][]Neighbor{nil}, [][]Neighbor{nil, nil})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if verr.Field != "outList" {
		t.Errorf("Field = %q, want outList", verr.Field)
	}
}

func TestNew_DuplicateNodeID(t *testing.T) {
	t.Parallel()
	_, err := New(labels("a", "a"), make([][]Neighbor, 2), make([][]Neighbor, 2))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestIndexAndLabels(t *testing.T) {
	t.Parallel()
	g, err := FromEdges([]Node{{ID: "1001", Label: "alice"}, {ID: "1002"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if i, ok := g.Index("1002"); !ok || i != 1 {
		t.Errorf("Index(1002) = %d, %v", i, ok)
	}
	if got := g.Label(0); got != "alice" {
		t.Errorf("Label(0) = %q, want alice", got)
	}
	// Label falls back to the id.
	if got := g.Label(1); got != "1002" {
		t.Errorf("Label(1) = %q, want 1002", got)
	}
}

func TestEdges_Order(t *testing.T) {
	t.Parallel()
	g := buildWorkedExample(t)
	edges := g.Edges()
	want := []Edge{{0, 1, 0.9}, {1, 0, 0.5}, {1, 2, 0.3}, {2, 3, 1.0}}
	if len(edges) != len(want) {
		t.Fatalf("len(Edges()) = %d, want %d", len(edges), len(want))
	}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("Edges()[%d] = %v, want %v", i, edges[i], want[i])
		}
	}
}

func TestErrorMessagesCarryContext(t *testing.T) {
	t.Parallel()
	err := &ValidationError{Field: "inWeight", Node: 2, Position: -1, Reason: "length 1 != inList length 2"}
	want := "validation: inWeight[2]: length 1 != inList length 2"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	ioErr := &IOFormatError{Format: "edgelist", Line: 3, Err: errors.New("bad weight")}
	if !errors.Is(ioErr, ErrIOFormat) {
		t.Error("errors.Is(ioErr, ErrIOFormat) = false")
	}
}
