package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/globaltime"
)

type scriptedProvider struct {
	calls   int
	results []ArticleSummary
	err     error
}

func (p *scriptedProvider) Search(_ context.Context, _ string, _, _ time.Time, _ int) ([]ArticleSummary, error) {
	p.calls++
	return p.results, p.err
}

func TestQuotaLatchBlocksUntilRetryAfter(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	inner := &scriptedProvider{err: &RateLimitError{RetryAfter: 10 * time.Minute}}
	latch := NewQuotaLatch(inner, zerolog.Nop())

	_, err := latch.Search(context.Background(), "q", time.Time{}, time.Time{}, 20)
	var rateLimited *RateLimitError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("want RateLimitError, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}

	// Latched: no inner call inside the window.
	globaltime.SetMockTime(globaltime.Now().Add(5 * time.Minute))
	_, err = latch.Search(context.Background(), "q", time.Time{}, time.Time{}, 20)
	if !errors.As(err, &rateLimited) {
		t.Fatalf("want RateLimitError during latch, got %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d during latch, want 1", inner.calls)
	}

	// Window elapsed: calls resume.
	globaltime.SetMockTime(globaltime.Now().Add(6 * time.Minute))
	inner.err = nil
	inner.results = []ArticleSummary{{URL: "https://example.com/hit"}}
	results, err := latch.Search(context.Background(), "q", time.Time{}, time.Time{}, 20)
	if err != nil {
		t.Fatalf("post-latch search: %v", err)
	}
	if len(results) != 1 || inner.calls != 2 {
		t.Fatalf("results=%d inner calls=%d, want 1 and 2", len(results), inner.calls)
	}
}

func TestQuotaLatchDefaultsMissingRetryAfter(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	inner := &scriptedProvider{err: &RateLimitError{}}
	latch := NewQuotaLatch(inner, zerolog.Nop())

	if _, err := latch.Search(context.Background(), "q", time.Time{}, time.Time{}, 20); err == nil {
		t.Fatal("want error")
	}
	globaltime.SetMockTime(globaltime.Now().Add(time.Minute))
	if _, err := latch.Search(context.Background(), "q", time.Time{}, time.Time{}, 20); err == nil {
		t.Fatal("want latched error with default window")
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	if got := parseRetryAfter("120"); got != 2*time.Minute {
		t.Fatalf("parseRetryAfter(120) = %v", got)
	}
	if got := parseRetryAfter(""); got != defaultRetryAfter {
		t.Fatalf("parseRetryAfter(empty) = %v", got)
	}
	if got := parseRetryAfter("garbage"); got != defaultRetryAfter {
		t.Fatalf("parseRetryAfter(garbage) = %v", got)
	}
}
