package builder

import "math"

// WeightingFunc turns an interaction count and the source account's total
// activity into a transmission probability in [0, 1]. total is always
// positive when the Builder calls it.
type WeightingFunc func(count, total int) float64

// Ratio is the original pipeline's normalization: the share of the source's
// activity that reached the target, saturating at 1 when an activity table
// reports fewer posts than observed interactions.
func Ratio(count, total int) float64 {
	return math.Min(1, float64(count)/float64(total))
}

// Exponential returns a weighting with diminishing returns:
// 1 − exp(−rate · count/total).
func Exponential(rate float64) WeightingFunc {
	return func(count, total int) float64 {
		return -math.Expm1(-rate * float64(count) / float64(total))
	}
}

// Constant returns a weighting that assigns probability p to any observed
// interaction regardless of volume.
func Constant(p float64) WeightingFunc {
	return func(count, total int) float64 {
		if count <= 0 {
			return 0
		}
		return p
	}
}

// Combine merges independent per-channel probabilities into the probability
// that at least one channel transmits: 1 − Π(1 − p). Zero probabilities are
// skipped and a lone nonzero probability is returned unchanged, so a single
// channel keeps its exact weight.
func Combine(probs ...float64) float64 {
	stay := 1.0
	nonzero := 0
	last := 0.0
	for _, p := range probs {
		if p == 0 {
			continue
		}
		nonzero++
		last = p
		stay *= 1 - p
	}
	if nonzero == 1 {
		return last
	}
	return 1 - stay
}
