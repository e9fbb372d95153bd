package db

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToVectorLiteral renders a vector as a pgvector literal, validating
// dimension and finiteness before anything reaches the database.
func ToVectorLiteral(values []float32) (string, error) {
	if len(values) != EmbeddingDims {
		return "", fmt.Errorf("expected %d dimensions, got %d", EmbeddingDims, len(values))
	}

	var builder strings.Builder
	builder.Grow(len(values) * 8)
	builder.WriteByte('[')
	for i, value := range values {
		f := float64(value)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("vector has non-finite value at index %d", i)
		}
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(f, 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

// ParseVectorLiteral decodes a pgvector literal back into a vector.
// Malformed or wrong-dimension literals are an error so callers can
// treat the row as a cache miss instead of operating on garbage.
func ParseVectorLiteral(literal string) ([]float32, error) {
	trimmed := strings.TrimSpace(literal)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, fmt.Errorf("malformed vector literal")
	}

	body := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if body == "" {
		return nil, fmt.Errorf("empty vector literal")
	}

	parts := strings.Split(body, ",")
	if len(parts) != EmbeddingDims {
		return nil, fmt.Errorf("expected %d dimensions, got %d", EmbeddingDims, len(parts))
	}

	values := make([]float32, len(parts))
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		values[i] = float32(f)
	}
	return values, nil
}
