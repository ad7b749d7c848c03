// Package embeddings provides vector math for embeddings: L2 normalization, weighted means, cosine similarity.
package embeddings

import (
	"errors"
	"math"
)

// ErrDimensionMismatch is returned when vectors of different lengths are combined.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Norm returns the Euclidean length of vector.
func Norm(vector []float32) float64 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	return math.Sqrt(sumSquares)
}

// NormalizeL2 scales vector in place to unit length and reports whether it could.
// A zero vector is left unchanged and reported as false.
func NormalizeL2(vector []float32) bool {
	magnitude := Norm(vector)
	if magnitude == 0 || math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return false
	}

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}

	return true
}

// WeightedMean returns the component-wise weighted arithmetic mean of vectors.
// Weights are normalized to sum to one; a non-positive total returns nil.
func WeightedMean(vectors [][]float32, weights []float64) ([]float32, error) {
	if len(vectors) == 0 || len(vectors) != len(weights) {
		return nil, nil
	}

	var total float64
	for _, w := range weights {
		total += w
	}

	if total <= 0 {
		return nil, nil
	}

	dim := len(vectors[0])
	acc := make([]float64, dim)

	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, ErrDimensionMismatch
		}

		w := weights[i] / total
		for j, v := range vec {
			acc[j] += w * float64(v)
		}
	}

	out := make([]float32, dim)
	for j, v := range acc {
		out[j] = float32(v)
	}

	return out, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or zero when either is a zero vector.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}

	if na == 0 || nb == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
