package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/papapumpkin/contagion/internal/graph"
)

// DefaultBuckets is the number of equal-width weight buckets over [0, 1].
const DefaultBuckets = 10

// Bucket counts the edges whose weight falls in [Low, High). The last bucket
// also includes High.
type Bucket struct {
	Low, High float64
	Count     int
}

// Stats summarizes a graph's size and edge-weight distribution.
type Stats struct {
	Nodes      int
	Edges      int
	Isolated   int
	MaxOut     int
	MaxIn      int
	MinWeight  float64
	MaxWeight  float64
	MeanWeight float64
	Histogram  []Bucket
}

// Summarize computes Stats for g with the given number of histogram buckets.
// A non-positive bucket count uses DefaultBuckets. Weight fields are zero for
// an edgeless graph.
func Summarize(g *graph.Graph, buckets int) Stats {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	s := Stats{
		Nodes:     g.Len(),
		Edges:     g.EdgeCount(),
		Histogram: make([]Bucket, buckets),
	}
	width := 1.0 / float64(buckets)
	for i := range s.Histogram {
		s.Histogram[i] = Bucket{Low: float64(i) * width, High: float64(i+1) * width}
	}
	s.Histogram[buckets-1].High = 1

	sum := 0.0
	s.MinWeight = math.Inf(1)
	for i := range g.Len() {
		if g.Isolated(i) {
			s.Isolated++
		}
		s.MaxOut = max(s.MaxOut, len(g.Out(i)))
		s.MaxIn = max(s.MaxIn, len(g.In(i)))
		for _, nb := range g.Out(i) {
			w := nb.Weight
			sum += w
			s.MinWeight = min(s.MinWeight, w)
			s.MaxWeight = max(s.MaxWeight, w)
			s.Histogram[min(int(w*float64(buckets)), buckets-1)].Count++
		}
	}
	if s.Edges == 0 {
		s.MinWeight = 0
		return s
	}
	s.MeanWeight = sum / float64(s.Edges)
	return s
}

// Render formats the summary with a bar chart of the weight histogram scaled
// to barWidth characters for the largest bucket.
func (s Stats) Render(barWidth int) string {
	if barWidth <= 0 {
		barWidth = 40
	}
	var b strings.Builder
	b.WriteString(styleTitle.Render("graph") + "\n")
	line := func(label, value string) {
		b.WriteString("  " + styleLabel.Render(label) + styleValue.Render(value) + "\n")
	}
	line("nodes", fmt.Sprintf("%d (%d isolated)", s.Nodes, s.Isolated))
	line("edges", fmt.Sprintf("%d", s.Edges))
	line("max out", fmt.Sprintf("%d", s.MaxOut))
	line("max in", fmt.Sprintf("%d", s.MaxIn))

	b.WriteString(styleTitle.Render("weights") + "\n")
	line("min", graph.FormatWeight(s.MinWeight))
	line("max", graph.FormatWeight(s.MaxWeight))
	line("mean", fmt.Sprintf("%.6f", s.MeanWeight))

	peak := 0
	for _, bk := range s.Histogram {
		peak = max(peak, bk.Count)
	}
	for i, bk := range s.Histogram {
		closing := ")"
		if i == len(s.Histogram)-1 {
			closing = "]"
		}
		bar := 0
		if peak > 0 {
			bar = int(math.Round(float64(bk.Count) / float64(peak) * float64(barWidth)))
		}
		fmt.Fprintf(&b, "  [%.2f, %.2f%s %s %d\n", bk.Low, bk.High, closing, styleBar.Render(strings.Repeat("█", bar)), bk.Count)
	}
	return b.String()
}
