package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/contagion/internal/graph"
	"github.com/papapumpkin/contagion/internal/interchange"
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Convert a graph between JSON and edge-list formats",
	Long: `Reads a graph and writes it back out, choosing each format from the file
extension (.json, or .edgelist/.edges/.txt/.tsv).

--roster fixes node order when reading an edge list: a file with one label
per line. Labels found only in the edges are appended after it.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("roster", "", "file listing node labels, one per line, for edge-list input")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	sess, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	in, out := args[0], args[1]
	rosterPath, _ := cmd.Flags().GetString("roster")

	var g *graph.Graph
	if rosterPath != "" {
		g, err = readWithRoster(in, rosterPath)
	} else {
		g, err = interchange.ReadFile(in)
	}
	if err != nil {
		return err
	}
	if err := interchange.WriteFile(out, g); err != nil {
		return err
	}
	sess.logger.Info("graph converted",
		zap.String("from", in),
		zap.String("to", out),
		zap.Int("nodes", g.Len()),
		zap.Int("edges", g.EdgeCount()))
	return nil
}

func readWithRoster(in, rosterPath string) (*graph.Graph, error) {
	format, err := interchange.DetectFormat(in)
	if err != nil {
		return nil, err
	}
	if format != interchange.FormatEdgeList {
		return nil, fmt.Errorf("--roster only applies to edge-list input, got %s", in)
	}
	roster, err := readFile(rosterPath, readRoster)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(in)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", in, err)
	}
	defer f.Close()
	g, err := interchange.ReadEdgeList(f, roster)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in, err)
	}
	return g, nil
}

// readRoster reads one label per line, skipping blank lines and # comments.
func readRoster(r io.Reader) ([]string, error) {
	var roster []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		roster = append(roster, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return roster, nil
}
