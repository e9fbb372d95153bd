package db

import (
	"context"
	"fmt"
	"time"
)

// StorySummary is a read model for list output, with the unread count
// derived from members added after the story was last viewed.
type StorySummary struct {
	StoryID      int64      `json:"story_id"`
	Title        string     `json:"title"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`
	MemberCount  int64      `json:"member_count"`
	UnreadCount  int64      `json:"unread_count"`
}

// CreateStory inserts a new story thread and returns its id.
func (p *Pool) CreateStory(ctx context.Context, title string, now time.Time) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}

	const q = `
INSERT INTO vantage.stories (title, created_at, updated_at)
VALUES ($1, $2, $2)
RETURNING story_id
`
	var storyID int64
	if err := p.QueryRow(ctx, q, title, now).Scan(&storyID); err != nil {
		return 0, fmt.Errorf("insert story: %w", err)
	}
	return storyID, nil
}

// GetStory loads one story. A missing row returns (nil, nil).
func (p *Pool) GetStory(ctx context.Context, storyID int64) (*Story, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var story Story
	res := p.gdb.WithContext(ctx).Where("story_id = ?", storyID).Limit(1).Find(&story)
	if res.Error != nil {
		return nil, fmt.Errorf("get story id=%d: %w", storyID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &story, nil
}

// ListStories returns every tracked story, most recently updated first.
func (p *Pool) ListStories(ctx context.Context, limit int) ([]StorySummary, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	const q = `
SELECT
	s.story_id,
	s.title,
	s.created_at,
	s.updated_at,
	s.last_viewed_at,
	COUNT(a.article_key) AS member_count,
	COUNT(a.article_key) FILTER (
		WHERE s.last_viewed_at IS NULL OR a.story_added_at > s.last_viewed_at
	) AS unread_count
FROM vantage.stories s
LEFT JOIN vantage.articles a ON a.story_id = s.story_id
GROUP BY s.story_id, s.title, s.created_at, s.updated_at, s.last_viewed_at
ORDER BY s.updated_at DESC
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query stories: %w", err)
	}
	defer rows.Close()

	var summaries []StorySummary
	for rows.Next() {
		var summary StorySummary
		if err := rows.Scan(
			&summary.StoryID,
			&summary.Title,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.LastViewedAt,
			&summary.MemberCount,
			&summary.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan story summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate story summaries: %w", err)
	}
	return summaries, nil
}

// ListStoryMembers returns a story's member articles, newest added last.
func (p *Pool) ListStoryMembers(ctx context.Context, storyID int64) ([]Article, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var rows []Article
	err := p.gdb.WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("story_added_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list story members id=%d: %w", storyID, err)
	}
	return rows, nil
}

// ListAllStories returns every story row for the cluster sweep.
func (p *Pool) ListAllStories(ctx context.Context) ([]Story, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var rows []Story
	if err := p.gdb.WithContext(ctx).Order("story_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return rows, nil
}

// TouchStoryUpdated bumps updated_at after a member join.
func (p *Pool) TouchStoryUpdated(ctx context.Context, storyID int64, now time.Time) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	const q = `UPDATE vantage.stories SET updated_at = $2 WHERE story_id = $1`
	if _, err := p.Exec(ctx, q, storyID, now); err != nil {
		return fmt.Errorf("touch story id=%d: %w", storyID, err)
	}
	return nil
}

// MarkStoryViewed bumps last_viewed_at, resetting the unread count.
func (p *Pool) MarkStoryViewed(ctx context.Context, storyID int64, now time.Time) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	const q = `UPDATE vantage.stories SET last_viewed_at = $2 WHERE story_id = $1`
	if _, err := p.Exec(ctx, q, storyID, now); err != nil {
		return fmt.Errorf("mark story viewed id=%d: %w", storyID, err)
	}
	return nil
}

// FollowArticle seeds a story from an article, or returns the story the
// article already belongs to. The seeding member is never novel and
// never a new perspective: it defines the story's baseline.
func (p *Pool) FollowArticle(ctx context.Context, articleKey string, now time.Time) (int64, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}

	article, err := p.GetArticle(ctx, articleKey)
	if err != nil {
		return 0, err
	}
	if article == nil {
		return 0, fmt.Errorf("article %s is not known", articleKey)
	}
	if article.StoryID != nil {
		return *article.StoryID, nil
	}

	storyID, err := p.CreateStory(ctx, article.Title, now)
	if err != nil {
		return 0, err
	}
	assigned, err := p.AssignArticleToStory(ctx, articleKey, storyID, false, false, now)
	if err != nil {
		return 0, err
	}
	if !assigned {
		// Lost a race with a cluster sweep; report where it landed.
		refreshed, refreshErr := p.GetArticle(ctx, articleKey)
		if refreshErr == nil && refreshed != nil && refreshed.StoryID != nil {
			return *refreshed.StoryID, nil
		}
		return 0, fmt.Errorf("article %s could not be assigned", articleKey)
	}
	return storyID, nil
}
