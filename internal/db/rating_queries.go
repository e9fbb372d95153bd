package db

import (
	"context"
	"fmt"
	"strings"
)

// UpsertSourceRating inserts or replaces one outlet rating row.
func (p *Pool) UpsertSourceRating(ctx context.Context, rating SourceRating) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if strings.TrimSpace(rating.SourceKey) == "" {
		return fmt.Errorf("source key is required")
	}

	const q = `
INSERT INTO vantage.source_ratings (
	source_key,
	source_id,
	display_name,
	bias,
	reliability,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (source_key) DO UPDATE
SET
	source_id = EXCLUDED.source_id,
	display_name = EXCLUDED.display_name,
	bias = EXCLUDED.bias,
	reliability = EXCLUDED.reliability,
	updated_at = EXCLUDED.updated_at
`

	_, err := p.Exec(
		ctx,
		q,
		rating.SourceKey,
		rating.SourceID,
		rating.DisplayName,
		rating.Bias,
		rating.Reliability,
		rating.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert source rating key=%s: %w", rating.SourceKey, err)
	}
	return nil
}

// GetRatingByDomain looks up a rating by outlet domain (the row key).
// Missing rows return (nil, nil): unrated is a first-class state.
func (p *Pool) GetRatingByDomain(ctx context.Context, domain string) (*SourceRating, error) {
	return p.findRating(ctx, "source_key = ?", strings.ToLower(strings.TrimSpace(domain)))
}

// GetRatingBySourceID looks up a rating by the outlet's source id.
func (p *Pool) GetRatingBySourceID(ctx context.Context, sourceID string) (*SourceRating, error) {
	return p.findRating(ctx, "source_id = ?", strings.ToLower(strings.TrimSpace(sourceID)))
}

// GetRatingByDisplayName looks up a rating by outlet display name.
func (p *Pool) GetRatingByDisplayName(ctx context.Context, displayName string) (*SourceRating, error) {
	return p.findRating(ctx, "LOWER(display_name) = ?", strings.ToLower(strings.TrimSpace(displayName)))
}

func (p *Pool) findRating(ctx context.Context, condition string, value string) (*SourceRating, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if value == "" {
		return nil, nil
	}

	var rating SourceRating
	res := p.gdb.WithContext(ctx).Where(condition, value).Limit(1).Find(&rating)
	if res.Error != nil {
		return nil, fmt.Errorf("find source rating %q: %w", value, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &rating, nil
}
