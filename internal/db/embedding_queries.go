package db

import (
	"context"
	"fmt"
	"time"
)

// GetEmbedding loads the embedding row for one (article, model name,
// model version) triple. Expired rows and missing rows both return
// (nil, nil); status interpretation is the caller's concern.
func (p *Pool) GetEmbedding(
	ctx context.Context,
	articleKey string,
	modelName string,
	modelVersion string,
	now time.Time,
) (*ArticleEmbedding, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var row ArticleEmbedding
	res := p.gdb.WithContext(ctx).
		Where(
			"article_key = ? AND model_name = ? AND model_version = ? AND expires_at > ?",
			articleKey, modelName, modelVersion, now,
		).
		Limit(1).
		Find(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("get embedding key=%s: %w", articleKey, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// PutEmbedding writes the outcome of one generation attempt. Success
// and failure rows share the table; a later attempt for the same triple
// replaces the previous row atomically.
func (p *Pool) PutEmbedding(ctx context.Context, row ArticleEmbedding) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	const q = `
INSERT INTO vantage.article_embeddings (
	article_key,
	model_name,
	model_version,
	vector,
	status,
	failure_reason,
	embedded_at,
	last_attempt_at,
	expires_at
)
VALUES ($1, $2, $3, $4::vector, $5, $6, $7, $8, $9)
ON CONFLICT (article_key, model_name, model_version) DO UPDATE
SET
	vector = EXCLUDED.vector,
	status = EXCLUDED.status,
	failure_reason = EXCLUDED.failure_reason,
	embedded_at = EXCLUDED.embedded_at,
	last_attempt_at = EXCLUDED.last_attempt_at,
	expires_at = EXCLUDED.expires_at
`

	_, err := p.Exec(
		ctx,
		q,
		row.ArticleKey,
		row.ModelName,
		row.ModelVersion,
		row.Vector,
		row.Status,
		row.FailureReason,
		row.EmbeddedAt,
		row.LastAttemptAt,
		row.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("put embedding key=%s model=%s/%s: %w", row.ArticleKey, row.ModelName, row.ModelVersion, err)
	}
	return nil
}

// GetEmbeddingsForArticles loads successful, unexpired embedding
// literals for the given keys, keyed by article.
func (p *Pool) GetEmbeddingsForArticles(
	ctx context.Context,
	articleKeys []string,
	modelName string,
	modelVersion string,
	now time.Time,
) (map[string]string, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if len(articleKeys) == 0 {
		return map[string]string{}, nil
	}

	const q = `
SELECT article_key, vector::text
FROM vantage.article_embeddings
WHERE article_key = ANY($1)
  AND model_name = $2
  AND model_version = $3
  AND status = 'success'
  AND expires_at > $4
`

	rows, err := p.Query(ctx, q, articleKeys, modelName, modelVersion, now)
	if err != nil {
		return nil, fmt.Errorf("query embeddings for articles: %w", err)
	}
	defer rows.Close()

	vectors := make(map[string]string, len(articleKeys))
	for rows.Next() {
		var key, literal string
		if err := rows.Scan(&key, &literal); err != nil {
			return nil, fmt.Errorf("scan article embedding: %w", err)
		}
		vectors[key] = literal
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article embeddings: %w", err)
	}
	return vectors, nil
}

// DeleteExpiredEmbeddings removes embedding rows past their TTL.
func (p *Pool) DeleteExpiredEmbeddings(ctx context.Context, now time.Time) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}

	const q = `DELETE FROM vantage.article_embeddings WHERE expires_at <= $1`
	tag, err := p.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired embeddings: %w", err)
	}
	return tag.RowsAffected(), nil
}
