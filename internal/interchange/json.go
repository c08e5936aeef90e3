package interchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/papapumpkin/contagion/internal/graph"
)

// Document is the structured list-of-lists encoding of a graph. Entry i of
// every list describes node i; InList[i] and InWeight[i] are parallel, as are
// OutList[i] and OutWeight[i].
type Document struct {
	InList       [][]int     `json:"inList"`
	InWeight     [][]float64 `json:"inWeight"`
	OutList      [][]int     `json:"outList"`
	OutWeight    [][]float64 `json:"outWeight"`
	UsernameList []string    `json:"usernameList"`
	// IDList carries account ids when they differ from the usernames.
	IDList []string `json:"idList,omitempty"`
}

// FromGraph converts g into its Document form, preserving node order and the
// order of every adjacency list.
func FromGraph(g *graph.Graph) *Document {
	n := g.Len()
	doc := &Document{
		InList:       make([][]int, n),
		InWeight:     make([][]float64, n),
		OutList:      make([][]int, n),
		OutWeight:    make([][]float64, n),
		UsernameList: make([]string, n),
	}
	ids := make([]string, n)
	distinctIDs := false
	for i := range n {
		node := g.Node(i)
		doc.UsernameList[i] = node.Label
		ids[i] = node.ID
		if node.ID != node.Label {
			distinctIDs = true
		}
		doc.OutList[i], doc.OutWeight[i] = split(g.Out(i))
		doc.InList[i], doc.InWeight[i] = split(g.In(i))
	}
	if distinctIDs {
		doc.IDList = ids
	}
	return doc
}

// Graph validates the document and builds the graph it describes. Parallel
// lists of different lengths fail with a *graph.ValidationError naming the
// field and node; adjacency that does not mirror fails with a
// *graph.ConsistencyError.
func (d *Document) Graph() (*graph.Graph, error) {
	n := len(d.UsernameList)
	for _, l := range []struct {
		field string
		count int
	}{
		{"inList", len(d.InList)},
		{"inWeight", len(d.InWeight)},
		{"outList", len(d.OutList)},
		{"outWeight", len(d.OutWeight)},
	} {
		if l.count != n {
			return nil, &graph.ValidationError{
				Field: l.field, Node: -1, Position: -1,
				Reason: fmt.Sprintf("has %d entries, usernameList has %d", l.count, n),
			}
		}
	}
	if d.IDList != nil && len(d.IDList) != n {
		return nil, &graph.ValidationError{
			Field: "idList", Node: -1, Position: -1,
			Reason: fmt.Sprintf("has %d entries, usernameList has %d", len(d.IDList), n),
		}
	}

	nodes := make([]graph.Node, n)
	out := make([][]graph.Neighbor, n)
	in := make([][]graph.Neighbor, n)
	for i := range n {
		nodes[i] = graph.Node{ID: d.UsernameList[i], Label: d.UsernameList[i]}
		if d.IDList != nil {
			nodes[i].ID = d.IDList[i]
		}
		var err error
		if out[i], err = zip("outList", "outWeight", i, d.OutList[i], d.OutWeight[i]); err != nil {
			return nil, err
		}
		if in[i], err = zip("inList", "inWeight", i, d.InList[i], d.InWeight[i]); err != nil {
			return nil, err
		}
	}
	return graph.New(nodes, out, in)
}

// WriteJSON encodes g as an indented Document.
func WriteJSON(w io.Writer, g *graph.Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(FromGraph(g)); err != nil {
		return fmt.Errorf("encoding graph document: %w", err)
	}
	return nil
}

// ReadJSON decodes a Document and builds its graph. Besides a bare object it
// accepts a one-element array wrapping the object, the shape used by the
// published research datasets. Syntax and type errors fail with a
// *graph.IOFormatError carrying the line of the offending byte.
func ReadJSON(r io.Reader) (*graph.Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &graph.IOFormatError{Format: "json", Err: err}
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	return doc.Graph()
}

func decodeDocument(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &graph.IOFormatError{Format: "json", Err: errors.New("empty document")}
	}

	if trimmed[0] == '[' {
		var wrapped []Document
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, jsonError(data, err)
		}
		if len(wrapped) != 1 {
			return nil, &graph.IOFormatError{
				Format: "json",
				Err:    fmt.Errorf("array wrapper holds %d documents, want 1", len(wrapped)),
			}
		}
		return &wrapped[0], nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, jsonError(data, err)
	}
	return &doc, nil
}

func jsonError(data []byte, err error) *graph.IOFormatError {
	var offset int64 = -1
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syn):
		offset = syn.Offset
	case errors.As(err, &typ):
		offset = typ.Offset
	}
	line := 0
	if offset >= 0 && offset <= int64(len(data)) {
		line = 1 + bytes.Count(data[:offset], []byte("\n"))
	}
	return &graph.IOFormatError{Format: "json", Line: line, Err: err}
}

func split(nbs []graph.Neighbor) ([]int, []float64) {
	idx := make([]int, len(nbs))
	ws := make([]float64, len(nbs))
	for p, nb := range nbs {
		idx[p] = nb.Node
		ws[p] = nb.Weight
	}
	return idx, ws
}

func zip(listField, weightField string, node int, idx []int, ws []float64) ([]graph.Neighbor, error) {
	if len(idx) != len(ws) {
		return nil, &graph.ValidationError{
			Field: weightField, Node: node, Position: -1,
			Reason: fmt.Sprintf("has %d entries, %s[%d] has %d", len(ws), listField, node, len(idx)),
		}
	}
	nbs := make([]graph.Neighbor, len(idx))
	for p := range idx {
		nbs[p] = graph.Neighbor{Node: idx[p], Weight: ws[p]}
	}
	return nbs, nil
}
