// Package report renders scores and graph summaries for humans and scripts:
// a tab-separated score table for pipelines and lipgloss-styled tables and
// histograms for terminals.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/papapumpkin/contagion/internal/centrality"
)

// Row is one line of a score table.
type Row struct {
	Label string
	Score float64
}

// FromRanked converts ranked engine output into table rows.
func FromRanked(ranked []centrality.Ranked) []Row {
	rows := make([]Row, len(ranked))
	for i, r := range ranked {
		rows[i] = Row{Label: r.Label, Score: r.Score}
	}
	return rows
}

// FormatScore renders a score as the shortest decimal that parses back to
// the same float64.
func FormatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// WriteTSV writes one `label<TAB>score` line per row, in the given order,
// with no header. A label containing a tab, carriage return or newline would
// break the line format; it fails the call before anything is written.
func WriteTSV(w io.Writer, rows []Row) error {
	for i, r := range rows {
		if strings.ContainsAny(r.Label, "\t\r\n") {
			return fmt.Errorf("writing scores: row %d: label %q contains a tab or line break", i, r.Label)
		}
	}
	bw := bufio.NewWriter(w)
	for _, r := range rows {
		bw.WriteString(r.Label)
		bw.WriteByte('\t')
		bw.WriteString(FormatScore(r.Score))
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing scores: %w", err)
	}
	return nil
}

// Table renders rows as a bordered table with rank, account and score
// columns. A positive limit keeps only the first limit rows; the top three
// rows are highlighted.
func Table(rows []Row, limit int) string {
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers("RANK", "ACCOUNT", "SCORE").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styleHeader
			case col == 2:
				return styleNumber
			case row < 3:
				return styleTopCell
			}
			return styleCell
		})
	for i, r := range rows {
		t.Row(strconv.Itoa(i+1), r.Label, strconv.FormatFloat(r.Score, 'f', 6, 64))
	}
	return t.String()
}
