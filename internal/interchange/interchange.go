// Package interchange reads and writes influence graphs in the two external
// formats: whitespace-separated edge-list text and the structured
// list-of-lists JSON document. Both directions preserve node order and
// weights exactly, and decoding applies the same validation as graph
// construction.
package interchange

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/papapumpkin/contagion/internal/graph"
)

// Format identifies an interchange format.
type Format string

// Supported formats.
const (
	FormatJSON     Format = "json"
	FormatEdgeList Format = "edgelist"
)

// DetectFormat picks a format from the file extension: .json is JSON, and
// .edgelist, .edges, .txt and .tsv are edge lists.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".edgelist", ".edges", ".txt", ".tsv":
		return FormatEdgeList, nil
	}
	return "", fmt.Errorf("cannot infer graph format from %q: use .json or .edgelist", path)
}

// ParseFormat accepts a format name as given on the command line.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatEdgeList, "edges", "txt":
		return FormatEdgeList, nil
	}
	return "", fmt.Errorf("unknown graph format %q", s)
}

// Read decodes a graph in the given format.
func Read(r io.Reader, f Format) (*graph.Graph, error) {
	switch f {
	case FormatJSON:
		return ReadJSON(r)
	case FormatEdgeList:
		return ReadEdgeList(r, nil)
	}
	return nil, fmt.Errorf("unknown graph format %q", f)
}

// Write encodes g in the given format.
func Write(w io.Writer, g *graph.Graph, f Format) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, g)
	case FormatEdgeList:
		return WriteEdgeList(w, g)
	}
	return fmt.Errorf("unknown graph format %q", f)
}

// ReadFile loads a graph, choosing the format from the extension.
func ReadFile(path string) (*graph.Graph, error) {
	f, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening graph: %w", err)
	}
	defer file.Close()

	g, err := Read(file, f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return g, nil
}

// WriteFile saves g, choosing the format from the extension and creating
// parent directories as needed. The file is written to a temporary sibling
// and renamed into place so readers never observe a partial graph.
func WriteFile(path string, g *graph.Graph) error {
	f, err := DetectFormat(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}

	if err := Write(tmp, g, f); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
