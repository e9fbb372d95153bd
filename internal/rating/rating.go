// Package rating resolves editorial-bias ratings for news outlets.
// Lookups run through an explicit ordered list of strategies (domain,
// then source id, then display name); the first non-nil result wins.
package rating

import (
	"context"
	"fmt"
	"strings"

	"horse.fit/vantage/internal/db"
)

// Bias categories derived from an outlet's signed bias score.
type Category string

const (
	CategoryLeft    Category = "left"
	CategoryCenter  Category = "center"
	CategoryRight   Category = "right"
	CategoryUnrated Category = "unrated"
)

// Provider resolves a source rating for an article's outlet. A nil
// rating with nil error means unrated, which is a valid state.
type Provider interface {
	RatingFor(ctx context.Context, domain, sourceID, displayName string) (*db.SourceRating, error)
}

// Store is the subset of rating persistence the resolver needs.
type Store interface {
	GetRatingByDomain(ctx context.Context, domain string) (*db.SourceRating, error)
	GetRatingBySourceID(ctx context.Context, sourceID string) (*db.SourceRating, error)
	GetRatingByDisplayName(ctx context.Context, displayName string) (*db.SourceRating, error)
}

type lookupStrategy func(ctx context.Context, domain, sourceID, displayName string) (*db.SourceRating, error)

// Resolver implements Provider against the rating store.
type Resolver struct {
	strategies []lookupStrategy
}

func NewResolver(store Store) *Resolver {
	return &Resolver{
		strategies: []lookupStrategy{
			func(ctx context.Context, domain, _, _ string) (*db.SourceRating, error) {
				return store.GetRatingByDomain(ctx, domain)
			},
			func(ctx context.Context, _, sourceID, _ string) (*db.SourceRating, error) {
				return store.GetRatingBySourceID(ctx, sourceID)
			},
			func(ctx context.Context, _, _, displayName string) (*db.SourceRating, error) {
				return store.GetRatingByDisplayName(ctx, displayName)
			},
		},
	}
}

// RatingFor tries each lookup strategy in order and returns the first
// hit. All strategies missing is not an error.
func (r *Resolver) RatingFor(ctx context.Context, domain, sourceID, displayName string) (*db.SourceRating, error) {
	if r == nil {
		return nil, fmt.Errorf("rating resolver is not initialized")
	}

	for _, strategy := range r.strategies {
		rating, err := strategy(ctx, domain, sourceID, displayName)
		if err != nil {
			return nil, err
		}
		if rating != nil {
			return rating, nil
		}
	}
	return nil, nil
}

// Categorize maps a resolved rating to its bias bucket: left for
// scores <= -1, right for scores >= +1, center for exactly 0, and
// unrated when no rating exists.
func Categorize(rating *db.SourceRating) Category {
	if rating == nil {
		return CategoryUnrated
	}
	switch {
	case rating.Bias <= -1:
		return CategoryLeft
	case rating.Bias >= 1:
		return CategoryRight
	default:
		return CategoryCenter
	}
}

// NormalizeKey lowercases and trims an outlet identifier for lookup.
func NormalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
