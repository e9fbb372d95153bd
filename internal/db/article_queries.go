package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// UpsertArticle inserts an article on first sight. Existing rows are
// left untouched; articles are immutable after creation except through
// the targeted setters below. Returns true when a new row was created.
func (p *Pool) UpsertArticle(ctx context.Context, article Article) (bool, error) {
	if p == nil || p.gdb == nil {
		return false, fmt.Errorf("database pool is not initialized")
	}
	if strings.TrimSpace(article.ArticleKey) == "" {
		return false, fmt.Errorf("article key is required")
	}

	const q = `
INSERT INTO vantage.articles (
	article_key,
	source_id,
	source_name,
	source_domain,
	title,
	description,
	published_at,
	extracted_text,
	language,
	tracked,
	first_seen_at,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, $11)
ON CONFLICT (article_key) DO NOTHING
`

	tag, err := p.Exec(
		ctx,
		q,
		article.ArticleKey,
		article.SourceID,
		article.SourceName,
		article.SourceDomain,
		article.Title,
		article.Description,
		article.PublishedAt,
		article.ExtractedText,
		nonEmptyOr(article.Language, "und"),
		article.Tracked,
		article.FirstSeenAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert article key=%s: %w", article.ArticleKey, err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetArticle loads one article by its canonical-URL key. A missing row
// returns (nil, nil).
func (p *Pool) GetArticle(ctx context.Context, articleKey string) (*Article, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var article Article
	res := p.gdb.WithContext(ctx).Where("article_key = ?", articleKey).Limit(1).Find(&article)
	if res.Error != nil {
		return nil, fmt.Errorf("get article key=%s: %w", articleKey, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &article, nil
}

// GetArticles loads the subset of the requested keys that still exist,
// keyed for O(1) resolution by the caller.
func (p *Pool) GetArticles(ctx context.Context, articleKeys []string) (map[string]Article, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if len(articleKeys) == 0 {
		return map[string]Article{}, nil
	}

	var rows []Article
	if err := p.gdb.WithContext(ctx).Where("article_key IN ?", articleKeys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get articles: %w", err)
	}

	resolved := make(map[string]Article, len(rows))
	for _, row := range rows {
		resolved[row.ArticleKey] = row
	}
	return resolved, nil
}

// SetArticleText records the extracted full text for an article.
func (p *Pool) SetArticleText(ctx context.Context, articleKey, text string, now time.Time) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	const q = `
UPDATE vantage.articles
SET extracted_text = $2, updated_at = $3
WHERE article_key = $1
`
	if _, err := p.Exec(ctx, q, articleKey, text, now); err != nil {
		return fmt.Errorf("set article text key=%s: %w", articleKey, err)
	}
	return nil
}

// SetArticleTracked flips the retention-exempting tracked flag.
func (p *Pool) SetArticleTracked(ctx context.Context, articleKey string, tracked bool, now time.Time) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	const q = `
UPDATE vantage.articles
SET tracked = $2, updated_at = $3
WHERE article_key = $1
`
	if _, err := p.Exec(ctx, q, articleKey, tracked, now); err != nil {
		return fmt.Errorf("set article tracked key=%s: %w", articleKey, err)
	}
	return nil
}

// EmbeddedArticle pairs an article with its stored embedding literal
// for the in-feed comparison pass.
type EmbeddedArticle struct {
	Article Article
	Vector  string
}

// ListEmbeddedArticles returns cached articles published inside the
// given window that carry a successful, unexpired embedding for the
// given model. The excluded key keeps a source article out of its own
// candidate set.
func (p *Pool) ListEmbeddedArticles(
	ctx context.Context,
	modelName string,
	modelVersion string,
	from time.Time,
	to time.Time,
	excludeKey string,
	now time.Time,
) ([]EmbeddedArticle, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	const q = `
SELECT
	a.article_key,
	a.source_id,
	a.source_name,
	a.source_domain,
	a.title,
	a.description,
	a.published_at,
	a.language,
	ae.vector::text
FROM vantage.articles a
JOIN vantage.article_embeddings ae
	ON ae.article_key = a.article_key
	AND ae.model_name = $1
	AND ae.model_version = $2
	AND ae.status = 'success'
	AND ae.expires_at > $3
WHERE a.article_key <> $4
  AND a.published_at >= $5
  AND a.published_at <= $6
ORDER BY a.published_at DESC
`

	rows, err := p.Query(ctx, q, modelName, modelVersion, now, excludeKey, from, to)
	if err != nil {
		return nil, fmt.Errorf("query embedded articles: %w", err)
	}
	defer rows.Close()

	var results []EmbeddedArticle
	for rows.Next() {
		var item EmbeddedArticle
		if err := rows.Scan(
			&item.Article.ArticleKey,
			&item.Article.SourceID,
			&item.Article.SourceName,
			&item.Article.SourceDomain,
			&item.Article.Title,
			&item.Article.Description,
			&item.Article.PublishedAt,
			&item.Article.Language,
			&item.Vector,
		); err != nil {
			return nil, fmt.Errorf("scan embedded article: %w", err)
		}
		results = append(results, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedded articles: %w", err)
	}
	return results, nil
}

// ListUnassignedArticles returns articles first seen after the cutoff
// that do not yet belong to any story. This is the candidate pool for
// the cluster sweep.
func (p *Pool) ListUnassignedArticles(ctx context.Context, seenAfter time.Time, limit int) ([]Article, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if limit <= 0 {
		limit = 200
	}

	var rows []Article
	err := p.gdb.WithContext(ctx).
		Where("story_id IS NULL AND first_seen_at >= ?", seenAfter).
		Order("first_seen_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list unassigned articles: %w", err)
	}
	return rows, nil
}

// AssignArticleToStory joins an article to a story with its novelty and
// perspective tags. The write is skipped when the article already
// belongs to a story, so concurrent sweeps cannot reassign members.
func (p *Pool) AssignArticleToStory(
	ctx context.Context,
	articleKey string,
	storyID int64,
	isNovel bool,
	hasNewPerspective bool,
	now time.Time,
) (bool, error) {
	if p == nil || p.gdb == nil {
		return false, fmt.Errorf("database pool is not initialized")
	}

	const q = `
UPDATE vantage.articles
SET
	story_id = $2,
	is_novel = $3,
	has_new_perspective = $4,
	story_added_at = $5,
	tracked = TRUE,
	updated_at = $5
WHERE article_key = $1
  AND story_id IS NULL
`

	tag, err := p.Exec(ctx, q, articleKey, storyID, isNovel, hasNewPerspective, now)
	if err != nil {
		return false, fmt.Errorf("assign article key=%s to story_id=%d: %w", articleKey, storyID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteExpiredArticles removes untracked, story-less articles older
// than the retention cutoff.
func (p *Pool) DeleteExpiredArticles(ctx context.Context, firstSeenBefore time.Time) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}

	const q = `
DELETE FROM vantage.articles
WHERE tracked = FALSE
  AND story_id IS NULL
  AND first_seen_at < $1
`
	tag, err := p.Exec(ctx, q, firstSeenBefore)
	if err != nil {
		return 0, fmt.Errorf("delete expired articles: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nonEmptyOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
