package scoring

import (
	"math"
)

/*
MinMaxNormalize rescales values into [0, 1].  When every value is equal
(including the single-element case) the result is all zeros, so a flat
channel contributes nothing to a fused score instead of biasing it.
*/
func MinMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))

	if len(values) == 0 {
		return out
	}

	min, max := values[0], values[0]

	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if max == min {
		return out
	}

	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}

	return out
}

/*
CosineSimilarity computes the cosine of the angle between two vectors.
Mismatched lengths or a zero vector yield 0.
*/
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

/*
Clamp bounds v to [lo, hi].
*/
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
