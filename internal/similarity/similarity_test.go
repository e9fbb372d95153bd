package similarity

import (
	"math"
	"testing"
)

func TestCosine_IdenticalUnitVector(t *testing.T) {
	t.Parallel()

	v := []float32{0.6, 0.8, 0}
	score, err := Cosine(v, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(score-1.0) > 1e-6 {
		t.Fatalf("expected ~1.0 for identical vectors, got %f", score)
	}
}

func TestCosine_OrthogonalAndOpposite(t *testing.T) {
	t.Parallel()

	orthogonal, err := Cosine([]float32{1, 0, 0}, []float32{0, 1, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(orthogonal) > 1e-6 {
		t.Fatalf("expected ~0.0 for orthogonal vectors, got %f", orthogonal)
	}

	opposite, err := Cosine([]float32{1, 0, 0}, []float32{-1, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(opposite+1.0) > 1e-6 {
		t.Fatalf("expected ~-1.0 for opposite vectors, got %f", opposite)
	}
}

func TestCosine_Symmetric(t *testing.T) {
	t.Parallel()

	a := []float32{0.2, 0.5, 0.3}
	b := []float32{0.9, 0.1, 0.4}

	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ab != ba {
		t.Fatalf("expected symmetric similarity, got %f vs %f", ab, ba)
	}
}

func TestCosine_DimensionMismatch(t *testing.T) {
	t.Parallel()

	if _, err := Cosine([]float32{1, 0}, []float32{1, 0, 0}); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestCosine_ZeroVector(t *testing.T) {
	t.Parallel()

	score, err := Cosine([]float32{0, 0, 0}, []float32{1, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != 0 {
		t.Fatalf("expected 0 for zero-magnitude input, got %f", score)
	}
}

func TestClassifyStrength_Boundaries(t *testing.T) {
	t.Parallel()

	if got := ClassifyStrength(0.70); got != StrengthStrong {
		t.Fatalf("expected 0.70 to be strong, got %s", got)
	}
	if got := ClassifyStrength(0.699); got != StrengthWeak {
		t.Fatalf("expected 0.699 to be weak, got %s", got)
	}
	if got := ClassifyStrength(0.50); got != StrengthWeak {
		t.Fatalf("expected 0.50 to be weak, got %s", got)
	}
	if got := ClassifyStrength(0.499); got != StrengthNone {
		t.Fatalf("expected 0.499 to be none, got %s", got)
	}
}

func TestMatchPredicates(t *testing.T) {
	t.Parallel()

	if !IsMatch(0.55) || IsMatch(0.40) {
		t.Fatalf("IsMatch threshold mismatch")
	}
	if !IsStrongMatch(0.75) || IsStrongMatch(0.65) {
		t.Fatalf("IsStrongMatch threshold mismatch")
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	normalized := Normalize([]float32{3, 4})
	if math.Abs(float64(normalized[0])-0.6) > 1e-6 || math.Abs(float64(normalized[1])-0.8) > 1e-6 {
		t.Fatalf("unexpected normalized vector: %v", normalized)
	}

	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Fatalf("expected zero vector to pass through, got %v", zero)
	}
}

func TestCentroid(t *testing.T) {
	t.Parallel()

	centroid := Centroid([][]float32{
		{1, 0, 0},
		{0.8, 0.6, 0},
	})
	if len(centroid) != 3 {
		t.Fatalf("unexpected centroid dimension: %d", len(centroid))
	}
	if math.Abs(float64(centroid[0])-0.9) > 1e-6 ||
		math.Abs(float64(centroid[1])-0.3) > 1e-6 ||
		math.Abs(float64(centroid[2])) > 1e-6 {
		t.Fatalf("unexpected centroid: %v", centroid)
	}
}

func TestCentroid_EmptyInput(t *testing.T) {
	t.Parallel()

	if centroid := Centroid(nil); centroid != nil {
		t.Fatalf("expected nil centroid for empty input, got %v", centroid)
	}
	if centroid := Centroid([][]float32{nil, {}}); centroid != nil {
		t.Fatalf("expected nil centroid when no member has a vector, got %v", centroid)
	}
}
