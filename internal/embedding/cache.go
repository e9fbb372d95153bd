package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/globaltime"
	"horse.fit/vantage/internal/similarity"
)

const (
	DefaultTTL           = 720 * time.Hour
	DefaultRetryCooldown = time.Hour
)

// Store is the persistence surface the cache needs. *db.Pool satisfies it.
type Store interface {
	GetEmbedding(ctx context.Context, articleKey, modelName, modelVersion string, now time.Time) (*db.ArticleEmbedding, error)
	PutEmbedding(ctx context.Context, row db.ArticleEmbedding) error
}

// Cache resolves one vector per (article, model version), generating at
// most once per article at a time and remembering failed attempts so a
// broken article is not retried before the cooldown elapses.
type Cache struct {
	store    Store
	provider Provider
	logger   zerolog.Logger

	ModelName     string
	ModelVersion  string
	TTL           time.Duration
	RetryCooldown time.Duration

	leases keyLeases
}

func NewCache(store Store, provider Provider, modelName, modelVersion string, logger zerolog.Logger) *Cache {
	return &Cache{
		store:         store,
		provider:      provider,
		logger:        logger,
		ModelName:     modelName,
		ModelVersion:  modelVersion,
		TTL:           DefaultTTL,
		RetryCooldown: DefaultRetryCooldown,
	}
}

// GetOrGenerate returns the unit-length vector for the article, or
// (nil, nil) when no vector can be produced for an expected reason:
// the article has no usable text, a previous attempt failed and the
// cooldown has not elapsed, or this attempt failed in a way attributable
// to the input. Infrastructure errors (store failures, context
// cancellation) are returned as errors.
func (c *Cache) GetOrGenerate(ctx context.Context, article db.Article) ([]float32, error) {
	if c == nil || c.store == nil || c.provider == nil {
		return nil, fmt.Errorf("embedding cache is not initialized")
	}

	release := c.leases.acquire(article.ArticleKey)
	defer release()

	now := globaltime.Now().UTC()

	row, err := c.store.GetEmbedding(ctx, article.ArticleKey, c.ModelName, c.ModelVersion, now)
	if err != nil {
		return nil, err
	}
	if row != nil {
		switch row.Status {
		case db.EmbeddingStatusSuccess:
			if row.Vector != nil {
				vector, parseErr := db.ParseVectorLiteral(*row.Vector)
				if parseErr == nil {
					return vector, nil
				}
				c.logger.Warn().Err(parseErr).Str("article_key", article.ArticleKey).
					Msg("stored embedding unreadable, regenerating")
			}
		case db.EmbeddingStatusFailed:
			if now.Sub(row.LastAttemptAt) < c.RetryCooldown {
				return nil, nil
			}
		}
	}

	text := embeddingInput(article)
	if text == "" {
		if err := c.recordFailure(ctx, article.ArticleKey, db.FailureNoText, now); err != nil {
			return nil, err
		}
		return nil, nil
	}

	vector, embedErr := c.provider.Embed(ctx, text)
	if embedErr != nil {
		if ctx.Err() != nil {
			return nil, embedErr
		}
		reason := ClassifyFailure(embedErr)
		c.logger.Warn().Err(embedErr).
			Str("article_key", article.ArticleKey).
			Str("reason", reason).
			Msg("embedding generation failed")
		if err := c.recordFailure(ctx, article.ArticleKey, reason, now); err != nil {
			return nil, err
		}
		return nil, nil
	}

	vector = similarity.Normalize(vector)
	literal, err := db.ToVectorLiteral(vector)
	if err != nil {
		return nil, fmt.Errorf("encode embedding for %s: %w", article.ArticleKey, err)
	}

	embeddedAt := now
	row = &db.ArticleEmbedding{
		ArticleKey:    article.ArticleKey,
		ModelName:     c.ModelName,
		ModelVersion:  c.ModelVersion,
		Vector:        &literal,
		Status:        db.EmbeddingStatusSuccess,
		EmbeddedAt:    &embeddedAt,
		LastAttemptAt: now,
		ExpiresAt:     now.Add(c.ttl()),
	}
	if err := c.store.PutEmbedding(ctx, *row); err != nil {
		return nil, err
	}
	return vector, nil
}

func (c *Cache) recordFailure(ctx context.Context, articleKey, reason string, now time.Time) error {
	return c.store.PutEmbedding(ctx, db.ArticleEmbedding{
		ArticleKey:    articleKey,
		ModelName:     c.ModelName,
		ModelVersion:  c.ModelVersion,
		Status:        db.EmbeddingStatusFailed,
		FailureReason: &reason,
		LastAttemptAt: now,
		ExpiresAt:     now.Add(c.ttl()),
	})
}

func (c *Cache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultTTL
}

// embeddingInput prefers the full extracted body, then falls back to the
// headline plus description so thin articles still embed.
func embeddingInput(article db.Article) string {
	if article.ExtractedText != nil {
		if text := strings.TrimSpace(*article.ExtractedText); text != "" {
			return text
		}
	}
	parts := make([]string, 0, 2)
	if title := strings.TrimSpace(article.Title); title != "" {
		parts = append(parts, title)
	}
	if article.Description != nil {
		if description := strings.TrimSpace(*article.Description); description != "" {
			parts = append(parts, description)
		}
	}
	return strings.Join(parts, "\n\n")
}

// keyLeases hands out one mutex per in-flight article key so concurrent
// callers for the same article serialize instead of double-generating.
type keyLeases struct {
	mu     sync.Mutex
	leases map[string]*keyLease
}

type keyLease struct {
	mu   sync.Mutex
	refs int
}

func (l *keyLeases) acquire(key string) func() {
	l.mu.Lock()
	if l.leases == nil {
		l.leases = make(map[string]*keyLease)
	}
	lease, ok := l.leases[key]
	if !ok {
		lease = &keyLease{}
		l.leases[key] = lease
	}
	lease.refs++
	l.mu.Unlock()

	lease.mu.Lock()
	return func() {
		lease.mu.Unlock()
		l.mu.Lock()
		lease.refs--
		if lease.refs == 0 {
			delete(l.leases, key)
		}
		l.mu.Unlock()
	}
}
