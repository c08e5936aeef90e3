package interchange

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/papapumpkin/contagion/internal/graph"
)

// nodeDirective prefixes the comment lines that carry the node roster in an
// edge list. Readers that know nothing about it skip them as comments.
const nodeDirective = "#node"

const maxLineBytes = 1 << 20

// WriteEdgeList writes g as one `source target weight` line per edge, ordered
// by source index and then out-list order. The file opens with one
// `#node <label>` comment per node in index order so that a reader can
// restore the node order and isolated nodes; a node whose id differs from its
// label is written as `#node <label> <id>`. A label or id that is empty,
// contains whitespace, or starts with '#' cannot be represented and fails
// with a *graph.ValidationError, as do two nodes sharing a label.
func WriteEdgeList(w io.Writer, g *graph.Graph) error {
	seen := make(map[string]int, g.Len())
	for i := range g.Len() {
		label := g.Label(i)
		if err := checkLabel(label); err != nil {
			return &graph.ValidationError{Field: "label", Node: i, Position: -1, Reason: err.Error()}
		}
		if prev, dup := seen[label]; dup {
			return &graph.ValidationError{
				Field: "label", Node: i, Position: -1,
				Reason: fmt.Sprintf("label %q already used by node %d", label, prev),
			}
		}
		seen[label] = i
		if id := g.Node(i).ID; id != label {
			if err := checkLabel(id); err != nil {
				return &graph.ValidationError{Field: "id", Node: i, Position: -1, Reason: err.Error()}
			}
		}
	}

	bw := bufio.NewWriter(w)
	for i := range g.Len() {
		if id := g.Node(i).ID; id != g.Label(i) {
			fmt.Fprintf(bw, "%s %s %s\n", nodeDirective, g.Label(i), id)
			continue
		}
		fmt.Fprintf(bw, "%s %s\n", nodeDirective, g.Label(i))
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(bw, "%s %s %s\n", g.Label(e.Source), g.Label(e.Target), graph.FormatWeight(e.Weight))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing edge list: %w", err)
	}
	return nil
}

// ReadEdgeList parses an edge list. Blank lines and lines starting with '#'
// are skipped. Node order comes from roster when it is non-nil, otherwise
// from the `#node` lines in the document; labels that appear in edges but in
// neither are appended in order of first appearance. A node's id is the one
// given by its `#node` line, or its label when there is none. Unparseable lines fail
// with a *graph.IOFormatError; out-of-range weights, duplicate edges and
// duplicate roster entries fail with a *graph.ValidationError.
func ReadEdgeList(r io.Reader, roster []string) (*graph.Graph, error) {
	type rawEdge struct {
		source, target string
		weight         float64
	}

	var (
		directives []string
		ids        = make(map[string]string)
		edges      []rawEdge
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if strings.HasPrefix(fields[0], "#") {
			if fields[0] == nodeDirective && (len(fields) == 2 || len(fields) == 3) {
				directives = append(directives, fields[1])
				if len(fields) == 3 {
					ids[fields[1]] = fields[2]
				}
			}
			continue
		}
		if len(fields) != 3 {
			return nil, &graph.IOFormatError{
				Format: "edgelist", Line: line,
				Err: fmt.Errorf("want 3 fields (source target weight), got %d", len(fields)),
			}
		}
		w, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, &graph.IOFormatError{Format: "edgelist", Line: line, Err: fmt.Errorf("weight %q: %w", fields[2], err)}
		}
		edges = append(edges, rawEdge{source: fields[0], target: fields[1], weight: w})
	}
	if err := sc.Err(); err != nil {
		return nil, &graph.IOFormatError{Format: "edgelist", Line: line + 1, Err: err}
	}

	order := roster
	if order == nil {
		order = directives
	}
	node := func(label string) graph.Node {
		if id, ok := ids[label]; ok {
			return graph.Node{ID: id, Label: label}
		}
		return graph.Node{ID: label, Label: label}
	}
	index := make(map[string]int, len(order))
	nodes := make([]graph.Node, 0, len(order))
	for i, label := range order {
		if prev, dup := index[label]; dup {
			return nil, &graph.ValidationError{
				Field: "roster", Node: i, Position: -1,
				Reason: fmt.Sprintf("label %q repeats entry %d", label, prev),
			}
		}
		index[label] = i
		nodes = append(nodes, node(label))
	}
	lookup := func(label string) int {
		if i, ok := index[label]; ok {
			return i
		}
		i := len(nodes)
		index[label] = i
		nodes = append(nodes, node(label))
		return i
	}

	out := make([]graph.Edge, len(edges))
	for i, e := range edges {
		out[i] = graph.Edge{Source: lookup(e.source), Target: lookup(e.target), Weight: e.weight}
	}
	return graph.FromEdges(nodes, out)
}

func checkLabel(label string) error {
	switch {
	case label == "":
		return errors.New("empty label")
	case strings.IndexFunc(label, unicode.IsSpace) >= 0:
		return fmt.Errorf("label %q contains whitespace", label)
	case strings.HasPrefix(label, "#"):
		return fmt.Errorf("label %q starts with '#'", label)
	}
	return nil
}
