// Package embedding manages one cached vector per article and model
// version, generating lazily through an injected provider and
// recording failure reasons so callers can degrade instead of crash.
package embedding

import (
	"context"
	"errors"

	"horse.fit/vantage/internal/db"
)

// Provider turns article text into a fixed-dimension vector. The
// provider owns tokenization and length handling; this package only
// classifies its failures.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider failure classes. Anything else is a generic model error.
var (
	ErrOOM         = errors.New("embedding provider out of memory")
	ErrTextTooLong = errors.New("embedding input exceeds model length limit")
)

// ClassifyFailure maps a provider error to its persisted reason tag.
func ClassifyFailure(err error) string {
	switch {
	case errors.Is(err, ErrOOM):
		return db.FailureOOM
	case errors.Is(err, ErrTextTooLong):
		return db.FailureTextTooLong
	default:
		return db.FailureModelError
	}
}
