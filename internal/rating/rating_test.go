package rating

import (
	"context"
	"testing"

	"horse.fit/vantage/internal/db"
)

type fakeRatingStore struct {
	byDomain  map[string]*db.SourceRating
	byID      map[string]*db.SourceRating
	byDisplay map[string]*db.SourceRating
}

func (s *fakeRatingStore) GetRatingByDomain(_ context.Context, domain string) (*db.SourceRating, error) {
	return s.byDomain[domain], nil
}

func (s *fakeRatingStore) GetRatingBySourceID(_ context.Context, sourceID string) (*db.SourceRating, error) {
	return s.byID[sourceID], nil
}

func (s *fakeRatingStore) GetRatingByDisplayName(_ context.Context, displayName string) (*db.SourceRating, error) {
	return s.byDisplay[displayName], nil
}

func TestRatingFor_DomainWinsOverLaterStrategies(t *testing.T) {
	t.Parallel()

	store := &fakeRatingStore{
		byDomain:  map[string]*db.SourceRating{"example.com": {SourceKey: "example.com", Bias: -2}},
		byID:      map[string]*db.SourceRating{"example": {SourceKey: "example-id", Bias: 2}},
		byDisplay: map[string]*db.SourceRating{},
	}

	rating, err := NewResolver(store).RatingFor(context.Background(), "example.com", "example", "Example News")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rating == nil || rating.SourceKey != "example.com" {
		t.Fatalf("expected domain lookup to win, got %+v", rating)
	}
}

func TestRatingFor_FallsThroughToDisplayName(t *testing.T) {
	t.Parallel()

	store := &fakeRatingStore{
		byDomain:  map[string]*db.SourceRating{},
		byID:      map[string]*db.SourceRating{},
		byDisplay: map[string]*db.SourceRating{"Example News": {SourceKey: "example.com", Bias: 1}},
	}

	rating, err := NewResolver(store).RatingFor(context.Background(), "other.com", "other", "Example News")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rating == nil || rating.Bias != 1 {
		t.Fatalf("expected display-name fallback hit, got %+v", rating)
	}
}

func TestRatingFor_AllMissesIsNotAnError(t *testing.T) {
	t.Parallel()

	store := &fakeRatingStore{
		byDomain:  map[string]*db.SourceRating{},
		byID:      map[string]*db.SourceRating{},
		byDisplay: map[string]*db.SourceRating{},
	}

	rating, err := NewResolver(store).RatingFor(context.Background(), "unknown.com", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rating != nil {
		t.Fatalf("expected unrated to return nil, got %+v", rating)
	}
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	if got := Categorize(&db.SourceRating{Bias: -2}); got != CategoryLeft {
		t.Fatalf("expected left for bias -2, got %s", got)
	}
	if got := Categorize(&db.SourceRating{Bias: -1}); got != CategoryLeft {
		t.Fatalf("expected left for bias -1, got %s", got)
	}
	if got := Categorize(&db.SourceRating{Bias: 0}); got != CategoryCenter {
		t.Fatalf("expected center for bias 0, got %s", got)
	}
	if got := Categorize(&db.SourceRating{Bias: 1}); got != CategoryRight {
		t.Fatalf("expected right for bias 1, got %s", got)
	}
	if got := Categorize(nil); got != CategoryUnrated {
		t.Fatalf("expected unrated for missing rating, got %s", got)
	}
}
