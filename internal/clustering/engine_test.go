package clustering

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/globaltime"
	"horse.fit/vantage/internal/similarity"
)

type fakeClusterStore struct {
	stories    []db.Story
	members    map[int64][]db.Article
	unassigned []db.Article
	literals   map[string]string

	assigned map[string]int64
	touched  map[int64]int
}

func (s *fakeClusterStore) ListAllStories(_ context.Context) ([]db.Story, error) {
	return s.stories, nil
}

func (s *fakeClusterStore) ListStoryMembers(_ context.Context, storyID int64) ([]db.Article, error) {
	return s.members[storyID], nil
}

func (s *fakeClusterStore) ListUnassignedArticles(_ context.Context, _ time.Time, _ int) ([]db.Article, error) {
	return s.unassigned, nil
}

func (s *fakeClusterStore) GetEmbeddingsForArticles(_ context.Context, keys []string, _, _ string, _ time.Time) (map[string]string, error) {
	out := make(map[string]string)
	for _, key := range keys {
		if literal, ok := s.literals[key]; ok {
			out[key] = literal
		}
	}
	return out, nil
}

func (s *fakeClusterStore) AssignArticleToStory(_ context.Context, articleKey string, storyID int64, _, _ bool, _ time.Time) (bool, error) {
	if s.assigned == nil {
		s.assigned = make(map[string]int64)
	}
	if _, ok := s.assigned[articleKey]; ok {
		return false, nil
	}
	s.assigned[articleKey] = storyID
	return true, nil
}

func (s *fakeClusterStore) TouchStoryUpdated(_ context.Context, storyID int64, _ time.Time) error {
	if s.touched == nil {
		s.touched = make(map[int64]int)
	}
	s.touched[storyID]++
	return nil
}

type fakeClusterEmbedder struct {
	vectors map[string][]float32
}

func (e *fakeClusterEmbedder) GetOrGenerate(_ context.Context, article db.Article) ([]float32, error) {
	return e.vectors[article.ArticleKey], nil
}

type fakeClusterRater struct {
	byDomain map[string]int
}

func (r *fakeClusterRater) RatingFor(_ context.Context, domain, _, _ string) (*db.SourceRating, error) {
	bias, ok := r.byDomain[domain]
	if !ok {
		return nil, nil
	}
	return &db.SourceRating{SourceKey: domain, Bias: bias}, nil
}

func vec384(components ...float32) []float32 {
	v := make([]float32, db.EmbeddingDims)
	copy(v, components)
	return v
}

func literal384(t *testing.T, components ...float32) string {
	t.Helper()
	lit, err := db.ToVectorLiteral(vec384(components...))
	if err != nil {
		t.Fatalf("ToVectorLiteral: %v", err)
	}
	return lit
}

func clusterArticle(key, domain string) db.Article {
	return db.Article{
		ArticleKey:   key,
		SourceName:   domain,
		SourceDomain: domain,
		Title:        "coverage",
		PublishedAt:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newClusterFixture() (*fakeClusterStore, *fakeClusterEmbedder, *Engine) {
	member := clusterArticle("https://member.example/1", "member.example")
	store := &fakeClusterStore{
		stories:  []db.Story{{StoryID: 7, Title: "Budget deal"}},
		members:  map[int64][]db.Article{7: {member}},
		literals: map[string]string{},
	}
	embedder := &fakeClusterEmbedder{vectors: map[string][]float32{}}
	engine := NewEngine(store, embedder, &fakeClusterRater{byDomain: map[string]int{"member.example": 0}}, "all-MiniLM-L6-v2", "v1", zerolog.Nop())
	return store, embedder, engine
}

func TestRunStrongCandidateJoins(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, embedder, engine := newClusterFixture()
	store.literals["https://member.example/1"] = literal384(t, 1)

	candidate := clusterArticle("https://cand.example/1", "cand.example")
	store.unassigned = []db.Article{candidate}
	// cos 0.95 against the e0 centroid: strong, and close enough to
	// not count as novel.
	embedder.vectors[candidate.ArticleKey] = vec384(0.95, 0.3122499)

	evaluations, err := engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(evaluations) != 1 {
		t.Fatalf("evaluations = %d, want 1", len(evaluations))
	}
	ev := evaluations[0]
	if !ev.Joined || ev.Strength != similarity.StrengthStrong {
		t.Fatalf("evaluation = %+v, want joined strong", ev)
	}
	if ev.IsNovel {
		t.Fatalf("score %f above novelty threshold must not be novel", ev.Score)
	}
	if store.assigned[candidate.ArticleKey] != 7 {
		t.Fatal("candidate not assigned to story 7")
	}
	if store.touched[7] == 0 {
		t.Fatal("story updatedAt not bumped")
	}
}

func TestRunStrongButDistantCandidateIsNovel(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, embedder, engine := newClusterFixture()
	store.literals["https://member.example/1"] = literal384(t, 1)

	candidate := clusterArticle("https://cand.example/1", "cand.example")
	store.unassigned = []db.Article{candidate}
	// cos 0.75: strong (>= 0.70) yet below the 0.85 novelty bar.
	embedder.vectors[candidate.ArticleKey] = vec384(0.75, 0.6614378)

	evaluations, err := engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(evaluations) != 1 || !evaluations[0].Joined {
		t.Fatalf("evaluations = %+v, want one joined", evaluations)
	}
	if !evaluations[0].IsNovel {
		t.Fatal("distant strong candidate must be tagged novel")
	}
}

func TestRunWeakCandidateRecordedNotJoined(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, embedder, engine := newClusterFixture()
	store.literals["https://member.example/1"] = literal384(t, 1)

	candidate := clusterArticle("https://cand.example/1", "cand.example")
	store.unassigned = []db.Article{candidate}
	// cos 0.55: weak.
	embedder.vectors[candidate.ArticleKey] = vec384(0.55, 0.8351646)

	evaluations, err := engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(evaluations) != 1 {
		t.Fatalf("evaluations = %d, want 1 weak record", len(evaluations))
	}
	if evaluations[0].Joined || evaluations[0].Strength != similarity.StrengthWeak {
		t.Fatalf("evaluation = %+v, want unjoined weak", evaluations[0])
	}
	if len(store.assigned) != 0 {
		t.Fatal("weak candidate must not be assigned")
	}
}

func TestRunNewPerspectiveTag(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, embedder, engine := newClusterFixture()
	store.literals["https://member.example/1"] = literal384(t, 1)
	engine.rater = &fakeClusterRater{byDomain: map[string]int{
		"member.example": 0,
		"left.example":   -2,
		"center.example": 0,
	}}

	left := clusterArticle("https://left.example/1", "left.example")
	center := clusterArticle("https://center.example/1", "center.example")
	store.unassigned = []db.Article{left, center}
	embedder.vectors[left.ArticleKey] = vec384(0.95, 0.3122499)
	embedder.vectors[center.ArticleKey] = vec384(0.95, 0.3122499)

	evaluations, err := engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(evaluations) != 2 {
		t.Fatalf("evaluations = %d, want 2", len(evaluations))
	}
	byKey := make(map[string]Evaluation)
	for _, ev := range evaluations {
		byKey[ev.ArticleKey] = ev
	}
	if !byKey[left.ArticleKey].HasNewPerspective {
		t.Fatal("left candidate joins a center-only story, want new perspective")
	}
	if byKey[center.ArticleKey].HasNewPerspective {
		t.Fatal("center candidate matches existing member bias, want no new perspective")
	}
}

func TestRunNewPerspectiveDistinguishesAdjacentBiasScores(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, embedder, engine := newClusterFixture()
	store.literals["https://member.example/1"] = literal384(t, 1)
	// Story members all lean left (-1); a hard-left (-2) outlet still
	// brings an unrepresented score.
	engine.rater = &fakeClusterRater{byDomain: map[string]int{
		"member.example":   -1,
		"hardleft.example": -2,
	}}

	candidate := clusterArticle("https://hardleft.example/1", "hardleft.example")
	store.unassigned = []db.Article{candidate}
	embedder.vectors[candidate.ArticleKey] = vec384(0.95, 0.3122499)

	evaluations, err := engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(evaluations) != 1 || !evaluations[0].Joined {
		t.Fatalf("evaluations = %+v, want one joined", evaluations)
	}
	if !evaluations[0].HasNewPerspective {
		t.Fatal("-2 outlet joining a -1-only story must be a new perspective")
	}
}

func TestRunSkipsStoriesWithoutEmbeddedMembers(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, embedder, engine := newClusterFixture()
	// Member has no stored embedding literal.
	candidate := clusterArticle("https://cand.example/1", "cand.example")
	store.unassigned = []db.Article{candidate}
	embedder.vectors[candidate.ArticleKey] = vec384(1)

	evaluations, err := engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(evaluations) != 0 || len(store.assigned) != 0 {
		t.Fatalf("story without member vectors must be skipped, got %+v", evaluations)
	}
}

func TestRunUnembeddableCandidateSkipped(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, _, engine := newClusterFixture()
	store.literals["https://member.example/1"] = literal384(t, 1)
	store.unassigned = []db.Article{clusterArticle("https://cand.example/1", "cand.example")}

	evaluations, err := engine.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(evaluations) != 0 {
		t.Fatalf("evaluations = %+v, want none", evaluations)
	}
}
