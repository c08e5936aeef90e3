package graph

import "strconv"

// FormatWeight renders a weight as the shortest plain decimal fraction that
// parses back to exactly the same float64.
func FormatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}
