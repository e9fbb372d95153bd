// Package matching finds cross-outlet coverage for one article. It
// layers a cached result store, the article feed, and an external
// search provider into tiers, so the expensive calls only happen when
// the cheap ones come up short.
package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/globaltime"
	"horse.fit/vantage/internal/rating"
	"horse.fit/vantage/internal/search"
	"horse.fit/vantage/internal/similarity"
	"horse.fit/vantage/internal/urlnorm"
)

const (
	// Matching stops escalating tiers once this many matches exist.
	MinMatchCount = 3
	// Each bias bucket carries at most this many matches.
	BucketCap = 5
	// Lexical fallback acceptance: at least half the source's salient
	// tokens must appear in the candidate title.
	lexicalThreshold = 0.5
	// Terms per primary keyword query.
	primaryQueryTerms = 5

	DefaultResultTTL = 6 * time.Hour
)

// Store is the persistence surface matching needs. *db.Pool satisfies it.
type Store interface {
	GetArticle(ctx context.Context, articleKey string) (*db.Article, error)
	GetArticles(ctx context.Context, articleKeys []string) (map[string]db.Article, error)
	UpsertArticle(ctx context.Context, article db.Article) (bool, error)
	ListEmbeddedArticles(ctx context.Context, modelName, modelVersion string, from, to time.Time, excludeKey string, now time.Time) ([]db.EmbeddedArticle, error)
	GetMatchResult(ctx context.Context, sourceArticleKey string, now time.Time) (*db.MatchResult, error)
	PutMatchResult(ctx context.Context, row db.MatchResult) error
}

// Embedder resolves one vector per article, or (nil, nil) when the
// article cannot be embedded for an expected reason.
type Embedder interface {
	GetOrGenerate(ctx context.Context, article db.Article) ([]float32, error)
}

// Rater resolves a bias rating for a source, or (nil, nil) when unrated.
type Rater interface {
	RatingFor(ctx context.Context, domain, sourceID, displayName string) (*db.SourceRating, error)
}

// Match is one cross-outlet hit with its similarity score.
type Match struct {
	Article  db.Article          `json:"article"`
	Score    float64             `json:"score"`
	Strength similarity.Strength `json:"strength"`
}

// Result is the categorized outcome of one match run.
type Result struct {
	SourceKey string  `json:"source_key"`
	Method    string  `json:"method"`
	FromCache bool    `json:"from_cache"`
	Left      []Match `json:"left"`
	Center    []Match `json:"center"`
	Right     []Match `json:"right"`
	Unrated   []Match `json:"unrated"`
}

// Total counts matches across all buckets.
func (r *Result) Total() int {
	return len(r.Left) + len(r.Center) + len(r.Right) + len(r.Unrated)
}

type Orchestrator struct {
	store    Store
	embedder Embedder
	searcher search.Provider
	rater    Rater
	logger   zerolog.Logger

	ModelName    string
	ModelVersion string
	ResultTTL    time.Duration
	PageSize     int
}

func NewOrchestrator(store Store, embedder Embedder, searcher search.Provider, rater Rater, modelName, modelVersion string, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:        store,
		embedder:     embedder,
		searcher:     searcher,
		rater:        rater,
		logger:       logger,
		ModelName:    modelName,
		ModelVersion: modelVersion,
		ResultTTL:    DefaultResultTTL,
		PageSize:     search.DefaultPageSize,
	}
}

// FindMatches returns categorized coverage for the article behind the
// key. The result may be empty; per-candidate failures are logged and
// absorbed, only infrastructure failures surface as the error.
func (o *Orchestrator) FindMatches(ctx context.Context, sourceKey string) (*Result, error) {
	if o == nil || o.store == nil {
		return nil, fmt.Errorf("match orchestrator is not initialized")
	}

	source, err := o.store.GetArticle(ctx, sourceKey)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("article %s is not known", sourceKey)
	}

	now := globaltime.Now().UTC()

	if cached, err := o.store.GetMatchResult(ctx, sourceKey, now); err != nil {
		return nil, err
	} else if cached != nil && cached.ModelName == o.ModelName && cached.ModelVersion == o.ModelVersion {
		result, ok := o.rehydrate(ctx, source, cached)
		if ok {
			return result, nil
		}
		// Malformed cached payload acts as a miss and recomputes.
	}

	window := similarity.WindowFor(source.PublishedAt, now)
	found := newCandidateSet(sourceKey)

	sourceVector, err := o.embedder.GetOrGenerate(ctx, *source)
	if err != nil {
		return nil, err
	}

	method := db.MatchMethodSemantic
	if sourceVector != nil {
		if err := o.feedPass(ctx, source, sourceVector, window, now, found); err != nil {
			return nil, err
		}
		if found.count() < MinMatchCount {
			usedLexical, err := o.searchPass(ctx, source, sourceVector, window, found)
			if err != nil {
				return nil, err
			}
			if usedLexical {
				method = db.MatchMethodHybrid
			}
		}
	} else {
		method = db.MatchMethodKeywordFallback
		if err := o.keywordPass(ctx, source, window, found); err != nil {
			return nil, err
		}
	}

	if err := o.persist(ctx, sourceKey, method, found, now); err != nil {
		return nil, err
	}
	return o.categorize(ctx, source, method, false, found.ordered()), nil
}

// candidateSet de-duplicates candidates by key across tiers. The source
// key is visited from the start so an article can never match itself.
type candidateSet struct {
	visited map[string]struct{}
	matches map[string]Match
}

func newCandidateSet(sourceKey string) *candidateSet {
	return &candidateSet{
		visited: map[string]struct{}{sourceKey: {}},
		matches: make(map[string]Match),
	}
}

func (s *candidateSet) seen(key string) bool {
	_, ok := s.visited[key]
	return ok
}

func (s *candidateSet) visit(key string) { s.visited[key] = struct{}{} }

func (s *candidateSet) add(m Match) {
	s.visited[m.Article.ArticleKey] = struct{}{}
	s.matches[m.Article.ArticleKey] = m
}

func (s *candidateSet) count() int { return len(s.matches) }

func (s *candidateSet) ordered() []Match {
	ordered := make([]Match, 0, len(s.matches))
	for _, m := range s.matches {
		ordered = append(ordered, m)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Article.ArticleKey < ordered[j].Article.ArticleKey
	})
	return ordered
}

// feedPass compares the source against already-embedded articles inside
// the time window. No network involved.
func (o *Orchestrator) feedPass(ctx context.Context, source *db.Article, sourceVector []float32, window similarity.TimeWindow, now time.Time, found *candidateSet) error {
	candidates, err := o.store.ListEmbeddedArticles(ctx, o.ModelName, o.ModelVersion, window.From, window.To, source.ArticleKey, now)
	if err != nil {
		return err
	}
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if found.seen(candidate.Article.ArticleKey) {
			continue
		}
		vector, parseErr := db.ParseVectorLiteral(candidate.Vector)
		if parseErr != nil {
			o.logger.Warn().Err(parseErr).Str("article_key", candidate.Article.ArticleKey).Msg("skipping unreadable stored vector")
			continue
		}
		score, cosErr := similarity.Cosine(sourceVector, vector)
		if cosErr != nil {
			o.logger.Warn().Err(cosErr).Str("article_key", candidate.Article.ArticleKey).Msg("skipping incomparable vector")
			continue
		}
		if similarity.IsMatch(score) {
			found.add(Match{Article: candidate.Article, Score: score, Strength: similarity.ClassifyStrength(score)})
		}
	}
	return nil
}

// searchPass queries the external provider with the source's salient
// terms and scores each hit semantically, falling back to the lexical
// ratio for hits that cannot be embedded.
func (o *Orchestrator) searchPass(ctx context.Context, source *db.Article, sourceVector []float32, window similarity.TimeWindow, found *candidateSet) (usedLexical bool, err error) {
	terms := SalientTerms(source.Title, source.SourceName, source.SourceDomain)
	query := primaryQuery(terms)
	if query == "" {
		return false, nil
	}

	hits, searchErr := o.runSearch(ctx, query, window)
	if searchErr != nil {
		return false, searchErr
	}

	for _, hit := range hits {
		if err := ctx.Err(); err != nil {
			return usedLexical, err
		}
		candidate, ok := o.admit(ctx, hit, found)
		if !ok {
			continue
		}

		vector, embedErr := o.embedder.GetOrGenerate(ctx, candidate)
		if embedErr != nil {
			return usedLexical, embedErr
		}
		if vector != nil {
			score, cosErr := similarity.Cosine(sourceVector, vector)
			if cosErr != nil {
				continue
			}
			if similarity.IsMatch(score) {
				found.add(Match{Article: candidate, Score: score, Strength: similarity.ClassifyStrength(score)})
			}
			continue
		}

		// Candidate cannot be embedded: lexical fallback for this
		// candidate only.
		ratio := SharedTermRatio(terms, candidate.Title)
		if ratio >= lexicalThreshold {
			usedLexical = true
			found.add(Match{Article: candidate, Score: ratio, Strength: similarity.StrengthWeak})
		}
	}
	return usedLexical, nil
}

// keywordPass is the path for sources that cannot be embedded at all:
// up to three escalating queries, each scored lexically, each skipped
// once enough matches exist.
func (o *Orchestrator) keywordPass(ctx context.Context, source *db.Article, window similarity.TimeWindow, found *candidateSet) error {
	terms := SalientTerms(source.Title, source.SourceName, source.SourceDomain)
	queries := []string{
		primaryQuery(terms),
		broadenedQuery(terms),
		strings.Join(tokenize(source.Title), " "),
	}

	for _, query := range queries {
		if found.count() >= MinMatchCount {
			break
		}
		if strings.TrimSpace(query) == "" {
			continue
		}
		hits, searchErr := o.runSearch(ctx, query, window)
		if searchErr != nil {
			return searchErr
		}
		for _, hit := range hits {
			if err := ctx.Err(); err != nil {
				return err
			}
			candidate, ok := o.admit(ctx, hit, found)
			if !ok {
				continue
			}
			ratio := SharedTermRatio(terms, candidate.Title)
			if ratio >= lexicalThreshold {
				found.add(Match{Article: candidate, Score: ratio, Strength: similarity.StrengthWeak})
			}
		}
	}
	return nil
}

// runSearch absorbs quota and transient search failures: matching
// degrades to whatever the cheaper tiers produced.
func (o *Orchestrator) runSearch(ctx context.Context, query string, window similarity.TimeWindow) ([]search.ArticleSummary, error) {
	if o.searcher == nil {
		return nil, nil
	}
	pageSize := o.PageSize
	if pageSize <= 0 {
		pageSize = search.DefaultPageSize
	}
	hits, err := o.searcher.Search(ctx, query, window.From, window.To, pageSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		o.logger.Warn().Err(err).Str("query", query).Msg("external search unavailable")
		return nil, nil
	}
	return hits, nil
}

// admit canonicalizes a search hit, records it as an article, and
// reports whether it is a fresh candidate.
func (o *Orchestrator) admit(ctx context.Context, hit search.ArticleSummary, found *candidateSet) (db.Article, bool) {
	key, host, err := urlnorm.Canonicalize(hit.URL)
	if err != nil {
		return db.Article{}, false
	}
	if found.seen(key) {
		return db.Article{}, false
	}
	found.visit(key)

	candidate := db.Article{
		ArticleKey:   key,
		SourceID:     hit.SourceID,
		SourceName:   hit.SourceName,
		SourceDomain: host,
		Title:        hit.Title,
		PublishedAt:  hit.PublishedAt,
		Language:     "und",
		FirstSeenAt:  globaltime.Now().UTC(),
	}
	if description := strings.TrimSpace(hit.Description); description != "" {
		candidate.Description = &description
	}
	if content := strings.TrimSpace(hit.Content); content != "" {
		candidate.ExtractedText = &content
	}

	if _, err := o.store.UpsertArticle(ctx, candidate); err != nil {
		o.logger.Warn().Err(err).Str("article_key", key).Msg("could not record search candidate")
		return db.Article{}, false
	}
	if stored, err := o.store.GetArticle(ctx, key); err == nil && stored != nil {
		return *stored, true
	}
	return candidate, true
}

func (o *Orchestrator) persist(ctx context.Context, sourceKey, method string, found *candidateSet, now time.Time) error {
	ordered := found.ordered()
	entries := make([]db.MatchEntry, 0, len(ordered))
	for _, m := range ordered {
		entries = append(entries, db.MatchEntry{ArticleKey: m.Article.ArticleKey, Score: m.Score})
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode match entries: %w", err)
	}

	ttl := o.ResultTTL
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return o.store.PutMatchResult(ctx, db.MatchResult{
		SourceArticleKey: sourceKey,
		Matches:          payload,
		Method:           method,
		ModelName:        o.ModelName,
		ModelVersion:     o.ModelVersion,
		ComputedAt:       now,
		ExpiresAt:        now.Add(ttl),
	})
}

// rehydrate rebuilds a categorized result from a cached row. Returns
// ok=false when the payload or its referenced articles are unusable,
// which the caller treats as a cache miss.
func (o *Orchestrator) rehydrate(ctx context.Context, source *db.Article, cached *db.MatchResult) (*Result, bool) {
	var entries []db.MatchEntry
	if err := json.Unmarshal(cached.Matches, &entries); err != nil {
		o.logger.Warn().Err(err).Str("source_key", cached.SourceArticleKey).Msg("cached match payload unreadable, recomputing")
		return nil, false
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.ArticleKey)
	}
	articles, err := o.store.GetArticles(ctx, keys)
	if err != nil {
		o.logger.Warn().Err(err).Str("source_key", cached.SourceArticleKey).Msg("cached match articles unavailable, recomputing")
		return nil, false
	}

	matches := make([]Match, 0, len(entries))
	for _, entry := range entries {
		article, ok := articles[entry.ArticleKey]
		if !ok {
			// Dangling reference, likely retention-swept. The cached
			// row no longer describes reality; recompute instead of
			// serving a shrunken result.
			o.logger.Warn().Str("source_key", cached.SourceArticleKey).Str("article_key", entry.ArticleKey).Msg("cached match references a missing article, recomputing")
			return nil, false
		}
		matches = append(matches, Match{
			Article:  article,
			Score:    entry.Score,
			Strength: similarity.ClassifyStrength(entry.Score),
		})
	}
	return o.categorize(ctx, source, cached.Method, true, matches), true
}

// categorize buckets matches by the candidate source's bias rating and
// orders each bucket by temporal proximity to the source article.
func (o *Orchestrator) categorize(ctx context.Context, source *db.Article, method string, fromCache bool, matches []Match) *Result {
	result := &Result{SourceKey: source.ArticleKey, Method: method, FromCache: fromCache}

	for _, m := range matches {
		category := rating.CategoryUnrated
		if o.rater != nil {
			r, err := o.rater.RatingFor(ctx, m.Article.SourceDomain, m.Article.SourceID, m.Article.SourceName)
			if err != nil {
				o.logger.Warn().Err(err).Str("domain", m.Article.SourceDomain).Msg("rating lookup failed, treating as unrated")
			} else {
				category = rating.Categorize(r)
			}
		}
		switch category {
		case rating.CategoryLeft:
			result.Left = append(result.Left, m)
		case rating.CategoryCenter:
			result.Center = append(result.Center, m)
		case rating.CategoryRight:
			result.Right = append(result.Right, m)
		default:
			result.Unrated = append(result.Unrated, m)
		}
	}

	for _, bucket := range []*[]Match{&result.Left, &result.Center, &result.Right, &result.Unrated} {
		sortByProximity(*bucket, source.PublishedAt)
		if len(*bucket) > BucketCap {
			*bucket = (*bucket)[:BucketCap]
		}
	}
	return result
}

func sortByProximity(bucket []Match, reference time.Time) {
	sort.Slice(bucket, func(i, j int) bool {
		di := absDuration(bucket[i].Article.PublishedAt.Sub(reference))
		dj := absDuration(bucket[j].Article.PublishedAt.Sub(reference))
		if di != dj {
			return di < dj
		}
		return bucket[i].Article.ArticleKey < bucket[j].Article.ArticleKey
	})
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func primaryQuery(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	limit := min(primaryQueryTerms, len(terms))
	parts := make([]string, 0, limit)
	for _, term := range terms[:limit] {
		if strings.Contains(term, " ") {
			parts = append(parts, `"`+term+`"`)
			continue
		}
		parts = append(parts, term)
	}
	return strings.Join(parts, " ")
}

// broadenedQuery keeps only the single strongest term so a too-narrow
// primary query still finds something.
func broadenedQuery(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	return terms[0]
}
