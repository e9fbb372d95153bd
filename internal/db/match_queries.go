package db

import (
	"context"
	"fmt"
	"time"
)

// GetMatchResult loads the cached match result for a source article.
// Expired and missing rows both return (nil, nil).
func (p *Pool) GetMatchResult(ctx context.Context, sourceArticleKey string, now time.Time) (*MatchResult, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var row MatchResult
	res := p.gdb.WithContext(ctx).
		Where("source_article_key = ? AND expires_at > ?", sourceArticleKey, now).
		Limit(1).
		Find(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("get match result key=%s: %w", sourceArticleKey, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// PutMatchResult replaces the cached match result for a source article.
func (p *Pool) PutMatchResult(ctx context.Context, row MatchResult) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	const q = `
INSERT INTO vantage.match_results (
	source_article_key,
	matches,
	method,
	model_name,
	model_version,
	computed_at,
	expires_at
)
VALUES ($1, $2::jsonb, $3, $4, $5, $6, $7)
ON CONFLICT (source_article_key) DO UPDATE
SET
	matches = EXCLUDED.matches,
	method = EXCLUDED.method,
	model_name = EXCLUDED.model_name,
	model_version = EXCLUDED.model_version,
	computed_at = EXCLUDED.computed_at,
	expires_at = EXCLUDED.expires_at
`

	_, err := p.Exec(
		ctx,
		q,
		row.SourceArticleKey,
		string(row.Matches),
		row.Method,
		row.ModelName,
		row.ModelVersion,
		row.ComputedAt,
		row.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("put match result key=%s: %w", row.SourceArticleKey, err)
	}
	return nil
}

// DeleteExpiredMatchResults removes match-result rows past their TTL.
func (p *Pool) DeleteExpiredMatchResults(ctx context.Context, now time.Time) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}

	const q = `DELETE FROM vantage.match_results WHERE expires_at <= $1`
	tag, err := p.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired match results: %w", err)
	}
	return tag.RowsAffected(), nil
}
