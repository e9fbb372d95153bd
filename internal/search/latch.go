package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/globaltime"
)

const defaultRetryAfter = 15 * time.Minute

// QuotaLatch wraps a Provider and stops calling it once the upstream
// rate-limits, until the advertised retry window elapses. Callers see
// the original *RateLimitError during the latched window so they can
// degrade without a network round trip.
type QuotaLatch struct {
	inner  Provider
	logger zerolog.Logger

	mu          sync.Mutex
	latchedTill time.Time
}

func NewQuotaLatch(inner Provider, logger zerolog.Logger) *QuotaLatch {
	return &QuotaLatch{inner: inner, logger: logger}
}

func (q *QuotaLatch) Search(ctx context.Context, query string, from, to time.Time, pageSize int) ([]ArticleSummary, error) {
	now := globaltime.Now()

	q.mu.Lock()
	if now.Before(q.latchedTill) {
		remaining := q.latchedTill.Sub(now)
		q.mu.Unlock()
		return nil, &RateLimitError{RetryAfter: remaining}
	}
	q.mu.Unlock()

	results, err := q.inner.Search(ctx, query, from, to, pageSize)
	var rateLimited *RateLimitError
	if errors.As(err, &rateLimited) {
		retryAfter := rateLimited.RetryAfter
		if retryAfter <= 0 {
			retryAfter = defaultRetryAfter
		}
		q.mu.Lock()
		q.latchedTill = now.Add(retryAfter)
		q.mu.Unlock()
		q.logger.Warn().Dur("retry_after", retryAfter).Msg("search quota exhausted, latching")
	}
	return results, err
}
