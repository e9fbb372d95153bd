package matching

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/globaltime"
	"horse.fit/vantage/internal/search"
)

type fakeMatchStore struct {
	articles   map[string]db.Article
	embedded   []db.EmbeddedArticle
	matchRows  map[string]db.MatchResult
	listCalls  int
	putCalls   int
	upsertKeys []string
}

func (s *fakeMatchStore) GetArticle(_ context.Context, key string) (*db.Article, error) {
	article, ok := s.articles[key]
	if !ok {
		return nil, nil
	}
	copied := article
	return &copied, nil
}

func (s *fakeMatchStore) GetArticles(_ context.Context, keys []string) (map[string]db.Article, error) {
	out := make(map[string]db.Article)
	for _, key := range keys {
		if article, ok := s.articles[key]; ok {
			out[key] = article
		}
	}
	return out, nil
}

func (s *fakeMatchStore) UpsertArticle(_ context.Context, article db.Article) (bool, error) {
	s.upsertKeys = append(s.upsertKeys, article.ArticleKey)
	if s.articles == nil {
		s.articles = make(map[string]db.Article)
	}
	if _, ok := s.articles[article.ArticleKey]; ok {
		return false, nil
	}
	s.articles[article.ArticleKey] = article
	return true, nil
}

func (s *fakeMatchStore) ListEmbeddedArticles(_ context.Context, _, _ string, _, _ time.Time, excludeKey string, _ time.Time) ([]db.EmbeddedArticle, error) {
	s.listCalls++
	out := make([]db.EmbeddedArticle, 0, len(s.embedded))
	for _, item := range s.embedded {
		if item.Article.ArticleKey == excludeKey {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *fakeMatchStore) GetMatchResult(_ context.Context, key string, now time.Time) (*db.MatchResult, error) {
	row, ok := s.matchRows[key]
	if !ok || !row.ExpiresAt.After(now) {
		return nil, nil
	}
	copied := row
	return &copied, nil
}

func (s *fakeMatchStore) PutMatchResult(_ context.Context, row db.MatchResult) error {
	s.putCalls++
	if s.matchRows == nil {
		s.matchRows = make(map[string]db.MatchResult)
	}
	s.matchRows[row.SourceArticleKey] = row
	return nil
}

type fakeMatchEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (e *fakeMatchEmbedder) GetOrGenerate(_ context.Context, article db.Article) ([]float32, error) {
	e.calls++
	return e.vectors[article.ArticleKey], nil
}

type fakeSearcher struct {
	hits  []search.ArticleSummary
	calls int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _, _ time.Time, _ int) ([]search.ArticleSummary, error) {
	f.calls++
	return f.hits, nil
}

type fakeRater struct {
	byDomain map[string]int
}

func (r *fakeRater) RatingFor(_ context.Context, domain, _, _ string) (*db.SourceRating, error) {
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

func matchTestArticle(key, domain, title string, publishedAt time.Time) db.Article {
	return db.Article{
		ArticleKey:   key,
		SourceName:   domain,
		SourceDomain: domain,
		Title:        title,
		PublishedAt:  publishedAt,
		Language:     "en",
	}
}

const sourceKey = "https://news-a.example/story"

func newFixture(t *testing.T) (*fakeMatchStore, *fakeMatchEmbedder, *fakeSearcher, *Orchestrator) {
	t.Helper()
	publishedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeMatchStore{
		articles: map[string]db.Article{
			sourceKey: matchTestArticle(sourceKey, "news-a.example", "Senate Panel approves budget deal", publishedAt),
		},
	}
	embedder := &fakeMatchEmbedder{vectors: map[string][]float32{sourceKey: vec384(1)}}
	searcher := &fakeSearcher{}
	orch := NewOrchestrator(store, embedder, searcher, &fakeRater{}, "all-MiniLM-L6-v2", "v1", zerolog.Nop())
	return store, embedder, searcher, orch
}

func TestFindMatchesCacheHitCallsNoCollaborators(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, embedder, searcher, orch := newFixture(t)
	matched := matchTestArticle("https://news-b.example/story", "news-b.example", "Budget deal clears Senate panel", globaltime.Now().Add(-time.Hour))
	store.articles[matched.ArticleKey] = matched

	payload, _ := json.Marshal([]db.MatchEntry{{ArticleKey: matched.ArticleKey, Score: 0.91}})
	store.matchRows = map[string]db.MatchResult{
		sourceKey: {
			SourceArticleKey: sourceKey,
			Matches:          payload,
			Method:           db.MatchMethodSemantic,
			ModelName:        "all-MiniLM-L6-v2",
			ModelVersion:     "v1",
			ComputedAt:       globaltime.Now().Add(-time.Hour),
			ExpiresAt:        globaltime.Now().Add(time.Hour),
		},
	}

	result, err := orch.FindMatches(context.Background(), sourceKey)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if !result.FromCache {
		t.Fatal("expected a cache hit")
	}
	if result.Total() != 1 {
		t.Fatalf("Total = %d, want 1", result.Total())
	}
	if embedder.calls != 0 || searcher.calls != 0 || store.listCalls != 0 {
		t.Fatalf("collaborators called on cache hit: embed=%d search=%d list=%d", embedder.calls, searcher.calls, store.listCalls)
	}
}

func TestFindMatchesDanglingCachedReferenceIsMiss(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, embedder, _, orch := newFixture(t)
	// The cached row references an article the retention sweep removed.
	payload, _ := json.Marshal([]db.MatchEntry{{ArticleKey: "https://gone.example/swept", Score: 0.91}})
	store.matchRows = map[string]db.MatchResult{
		sourceKey: {
			SourceArticleKey: sourceKey,
			Matches:          payload,
			Method:           db.MatchMethodSemantic,
			ModelName:        "all-MiniLM-L6-v2",
			ModelVersion:     "v1",
			ComputedAt:       globaltime.Now().Add(-time.Hour),
			ExpiresAt:        globaltime.Now().Add(time.Hour),
		},
	}

	result, err := orch.FindMatches(context.Background(), sourceKey)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if result.FromCache {
		t.Fatal("cached result with a dangling reference must recompute")
	}
	if embedder.calls == 0 {
		t.Fatal("expected recomputation to embed the source")
	}
	if store.putCalls != 1 {
		t.Fatalf("putCalls = %d, want the recomputed result persisted", store.putCalls)
	}
}

func TestFindMatchesModelVersionMismatchIsMiss(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, embedder, _, orch := newFixture(t)
	payload, _ := json.Marshal([]db.MatchEntry{})
	store.matchRows = map[string]db.MatchResult{
		sourceKey: {
			SourceArticleKey: sourceKey,
			Matches:          payload,
			Method:           db.MatchMethodSemantic,
			ModelName:        "all-MiniLM-L6-v2",
			ModelVersion:     "v0",
			ExpiresAt:        globaltime.Now().Add(time.Hour),
		},
	}

	result, err := orch.FindMatches(context.Background(), sourceKey)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if result.FromCache {
		t.Fatal("stale model version must recompute")
	}
	if embedder.calls == 0 {
		t.Fatal("expected recomputation to embed the source")
	}
	if stored := store.matchRows[sourceKey]; stored.ModelVersion != "v1" {
		t.Fatalf("stored ModelVersion = %q, want v1", stored.ModelVersion)
	}
}

func TestFindMatchesFeedPassSemantic(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, _, searcher, orch := newFixture(t)
	publishedAt := globaltime.Now().Add(-2 * time.Hour)
	strong := matchTestArticle("https://news-b.example/s", "news-b.example", "Budget deal advances", publishedAt)
	weak := matchTestArticle("https://news-c.example/s", "news-c.example", "Budget talks continue", publishedAt)
	miss := matchTestArticle("https://news-d.example/s", "news-d.example", "Sports roundup", publishedAt)
	for _, a := range []db.Article{strong, weak, miss} {
		store.articles[a.ArticleKey] = a
	}
	store.embedded = []db.EmbeddedArticle{
		{Article: strong, Vector: literal384(t, 0.9, 0.43589)},
		{Article: weak, Vector: literal384(t, 0.6, 0.8)},
		{Article: miss, Vector: literal384(t, 0.3, 0.9539392)},
		{Article: store.articles[sourceKey], Vector: literal384(t, 1)},
	}
	// A third match keeps the tier count at the minimum so search
	// never runs.
	third := matchTestArticle("https://news-e.example/s", "news-e.example", "Panel approves deal", publishedAt)
	store.articles[third.ArticleKey] = third
	store.embedded = append(store.embedded, db.EmbeddedArticle{Article: third, Vector: literal384(t, 0.95, 0.3122499)})

	result, err := orch.FindMatches(context.Background(), sourceKey)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if result.Method != db.MatchMethodSemantic {
		t.Fatalf("Method = %q, want semantic", result.Method)
	}
	if result.Total() != 3 {
		t.Fatalf("Total = %d, want 3 (strong, weak, third)", result.Total())
	}
	if searcher.calls != 0 {
		t.Fatalf("search called %d times with enough feed matches, want 0", searcher.calls)
	}
	if store.putCalls != 1 {
		t.Fatalf("putCalls = %d, want 1", store.putCalls)
	}
}

func TestFindMatchesSearchEscalationAndLexicalFallback(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, embedder, searcher, orch := newFixture(t)
	publishedAt := globaltime.Now().Add(-time.Hour)
	searcher.hits = []search.ArticleSummary{
		{
			URL:         "https://news-f.example/covered",
			SourceName:  "News F",
			Title:       "Senate Panel approves sweeping budget deal",
			PublishedAt: publishedAt,
		},
		{
			URL:         "https://news-g.example/unembeddable",
			SourceName:  "News G",
			Title:       "Senate Panel budget deal approved",
			PublishedAt: publishedAt,
		},
	}
	// First hit embeds and matches semantically; second cannot embed
	// and falls back to the lexical ratio.
	embedder.vectors["https://news-f.example/covered"] = vec384(0.95, 0.3122499)

	result, err := orch.FindMatches(context.Background(), sourceKey)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if searcher.calls != 1 {
		t.Fatalf("search calls = %d, want 1", searcher.calls)
	}
	if result.Method != db.MatchMethodHybrid {
		t.Fatalf("Method = %q, want hybrid", result.Method)
	}
	if result.Total() != 2 {
		t.Fatalf("Total = %d, want 2", result.Total())
	}
	if len(store.upsertKeys) != 2 {
		t.Fatalf("upserted %d candidates, want 2", len(store.upsertKeys))
	}
}

func TestFindMatchesKeywordFallback(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	publishedAt := globaltime.Now().Add(-time.Hour)
	store := &fakeMatchStore{
		articles: map[string]db.Article{
			sourceKey: matchTestArticle(sourceKey, "news-a.example", "S&P 500 falls after AMD earnings", publishedAt),
		},
	}
	// Source has no embedding at all.
	embedder := &fakeMatchEmbedder{vectors: map[string][]float32{}}
	searcher := &fakeSearcher{hits: []search.ArticleSummary{
		{
			URL:         "https://news-h.example/amd",
			SourceName:  "News H",
			Title:       "AMD stock slides as S&P 500 falls",
			PublishedAt: publishedAt,
		},
		{
			URL:         "https://news-i.example/weather",
			SourceName:  "News I",
			Title:       "Weekend weather forecast",
			PublishedAt: publishedAt,
		},
	}}
	orch := NewOrchestrator(store, embedder, searcher, &fakeRater{}, "all-MiniLM-L6-v2", "v1", zerolog.Nop())

	result, err := orch.FindMatches(context.Background(), sourceKey)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if result.Method != db.MatchMethodKeywordFallback {
		t.Fatalf("Method = %q, want keyword_fallback", result.Method)
	}
	if result.Total() != 1 {
		t.Fatalf("Total = %d, want 1 lexical match", result.Total())
	}
	if searcher.calls == 0 {
		t.Fatal("expected keyword searches")
	}
	// Escalating queries stop once hits repeat; dedup keeps one entry.
	stored := store.matchRows[sourceKey]
	var entries []db.MatchEntry
	if err := json.Unmarshal(stored.Matches, &entries); err != nil {
		t.Fatalf("stored payload: %v", err)
	}
	if len(entries) != 1 || entries[0].ArticleKey != "https://news-h.example/amd" {
		t.Fatalf("stored entries = %+v", entries)
	}
}

func TestFindMatchesCategorizesByBias(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	store, _, _, orch := newFixture(t)
	orch.rater = &fakeRater{byDomain: map[string]int{
		"left.example":  -2,
		"cent.example":  0,
		"right.example": 1,
	}}

	publishedAt := globaltime.Now().Add(-time.Hour)
	domains := []string{"left.example", "cent.example", "right.example", "norating.example"}
	for i, domain := range domains {
		key := "https://" + domain + "/s"
		article := matchTestArticle(key, domain, "Budget deal coverage", publishedAt.Add(time.Duration(i)*time.Minute))
		store.articles[key] = article
		store.embedded = append(store.embedded, db.EmbeddedArticle{Article: article, Vector: literal384(t, 0.9, 0.43589)})
	}

	result, err := orch.FindMatches(context.Background(), sourceKey)
	if err != nil {
		t.Fatalf("FindMatches: %v", err)
	}
	if len(result.Left) != 1 || len(result.Center) != 1 || len(result.Right) != 1 || len(result.Unrated) != 1 {
		t.Fatalf("buckets = left %d center %d right %d unrated %d, want 1 each",
			len(result.Left), len(result.Center), len(result.Right), len(result.Unrated))
	}
}

func TestFindMatchesUnknownArticle(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	defer globaltime.ResetTime()

	_, _, _, orch := newFixture(t)
	if _, err := orch.FindMatches(context.Background(), "https://nowhere.example/x"); err == nil {
		t.Fatal("want error for unknown article")
	}
}
