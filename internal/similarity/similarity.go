package similarity

import (
	"fmt"
	"math"
)

const (
	// StrongThreshold is the minimum cosine score for a strong match.
	StrongThreshold = 0.70
	// WeakThreshold is the minimum cosine score for a weak match.
	WeakThreshold = 0.50
)

// Strength classifies a similarity score into a match band.
type Strength string

const (
	StrengthNone   Strength = "none"
	StrengthWeak   Strength = "weak"
	StrengthStrong Strength = "strong"
)

// Cosine returns the cosine similarity of two vectors in [-1, 1].
// Vectors of mismatched length are an error; a zero-magnitude input
// yields 0 rather than NaN. For unit vectors this is the dot product.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, magA, magB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// ClassifyStrength maps a similarity score into a band. Band boundaries
// are inclusive on the lower edge.
func ClassifyStrength(score float64) Strength {
	switch {
	case score >= StrongThreshold:
		return StrengthStrong
	case score >= WeakThreshold:
		return StrengthWeak
	default:
		return StrengthNone
	}
}

func IsMatch(score float64) bool {
	return score >= WeakThreshold
}

func IsStrongMatch(score float64) bool {
	return score >= StrongThreshold
}

// Normalize returns an L2-normalized copy of the vector. Zero vectors
// are returned unchanged.
func Normalize(v []float32) []float32 {
	var mag float64
	for _, x := range v {
		mag += float64(x) * float64(x)
	}
	if mag == 0 {
		return append([]float32(nil), v...)
	}
	norm := math.Sqrt(mag)

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Centroid returns the component-wise mean of the vectors. All inputs
// must share one dimension; vectors that do not are skipped. Returns
// nil when no usable vector remains.
func Centroid(vectors [][]float32) []float32 {
	var sum []float64
	counted := 0
	for _, v := range vectors {
		if len(v) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		if len(v) != len(sum) {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		counted++
	}
	if counted == 0 {
		return nil
	}

	out := make([]float32, len(sum))
	for i, x := range sum {
		out[i] = float32(x / float64(counted))
	}
	return out
}
