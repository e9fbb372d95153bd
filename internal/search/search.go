// Package search wraps an external news-search API and the quota
// bookkeeping around it. Matching never talks to the network directly;
// it goes through a Provider so tests and quota handling stay local.
package search

import (
	"context"
	"fmt"
	"time"
)

// ArticleSummary is one hit from a search provider, carrying just
// enough to canonicalize, rate, and embed the candidate.
type ArticleSummary struct {
	URL         string
	SourceID    string
	SourceName  string
	Title       string
	Description string
	Content     string
	PublishedAt time.Time
}

// Provider executes one bounded search. Implementations return
// *RateLimitError when the upstream signals quota exhaustion.
type Provider interface {
	Search(ctx context.Context, query string, from, to time.Time, pageSize int) ([]ArticleSummary, error)
}

// RateLimitError reports when the upstream will accept requests again.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("search provider rate limited, retry after %s", e.RetryAfter)
}
