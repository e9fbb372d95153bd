// Package clustering grows stories. A sweep compares every recently
// seen unassigned article against each followed story's centroid and
// auto-joins the strong ones, tagging whether they say something new.
package clustering

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/globaltime"
	"horse.fit/vantage/internal/similarity"
)

const (
	// An article adds nothing novel when it sits this close to the
	// story's pre-join centroid.
	NoveltyThreshold = 0.85

	DefaultLookback       = 24 * time.Hour
	DefaultCandidateLimit = 500
)

// Store is the persistence surface the sweep needs. *db.Pool satisfies it.
type Store interface {
	ListAllStories(ctx context.Context) ([]db.Story, error)
	ListStoryMembers(ctx context.Context, storyID int64) ([]db.Article, error)
	ListUnassignedArticles(ctx context.Context, seenAfter time.Time, limit int) ([]db.Article, error)
	GetEmbeddingsForArticles(ctx context.Context, articleKeys []string, modelName, modelVersion string, now time.Time) (map[string]string, error)
	AssignArticleToStory(ctx context.Context, articleKey string, storyID int64, isNovel, hasNewPerspective bool, now time.Time) (bool, error)
	TouchStoryUpdated(ctx context.Context, storyID int64, now time.Time) error
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

// Evaluation records one candidate-against-story comparison.
type Evaluation struct {
	StoryID           int64               `json:"story_id"`
	ArticleKey        string              `json:"article_key"`
	Score             float64             `json:"score"`
	Strength          similarity.Strength `json:"strength"`
	Joined            bool                `json:"joined"`
	IsNovel           bool                `json:"is_novel,omitempty"`
	HasNewPerspective bool                `json:"has_new_perspective,omitempty"`
}

type Options struct {
	Lookback       time.Duration
	CandidateLimit int
}

type Engine struct {
	store    Store
	embedder Embedder
	rater    Rater
	logger   zerolog.Logger

	ModelName    string
	ModelVersion string
}

func NewEngine(store Store, embedder Embedder, rater Rater, modelName, modelVersion string, logger zerolog.Logger) *Engine {
	return &Engine{
		store:        store,
		embedder:     embedder,
		rater:        rater,
		logger:       logger,
		ModelName:    modelName,
		ModelVersion: modelVersion,
	}
}

// Run executes one cluster sweep and returns every per-candidate
// evaluation, joined or not. Weak similarities are recorded but never
// joined; candidates that cannot be embedded are skipped.
func (e *Engine) Run(ctx context.Context, opts Options) ([]Evaluation, error) {
	if e == nil || e.store == nil {
		return nil, fmt.Errorf("cluster engine is not initialized")
	}

	lookback := opts.Lookback
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	limit := opts.CandidateLimit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	now := globaltime.Now().UTC()

	stories, err := e.store.ListAllStories(ctx)
	if err != nil {
		return nil, err
	}
	if len(stories) == 0 {
		return nil, nil
	}

	candidates, err := e.store.ListUnassignedArticles(ctx, now.Add(-lookback), limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var evaluations []Evaluation
	// Joined keys drop out of later stories within the same sweep.
	joined := make(map[string]struct{})

	for _, story := range stories {
		if err := ctx.Err(); err != nil {
			return evaluations, err
		}

		state, err := e.loadStory(ctx, story, now)
		if err != nil {
			return evaluations, err
		}
		if state == nil {
			// No embedded members yet, nothing to compare against.
			continue
		}

		for _, candidate := range candidates {
			if err := ctx.Err(); err != nil {
				return evaluations, err
			}
			if _, ok := joined[candidate.ArticleKey]; ok {
				continue
			}

			vector, embedErr := e.embedder.GetOrGenerate(ctx, candidate)
			if embedErr != nil {
				return evaluations, embedErr
			}
			if vector == nil {
				continue
			}

			score, cosErr := similarity.Cosine(vector, state.centroid)
			if cosErr != nil {
				e.logger.Warn().Err(cosErr).Str("article_key", candidate.ArticleKey).Msg("skipping incomparable candidate")
				continue
			}

			strength := similarity.ClassifyStrength(score)
			evaluation := Evaluation{
				StoryID:    story.StoryID,
				ArticleKey: candidate.ArticleKey,
				Score:      score,
				Strength:   strength,
			}

			if strength == similarity.StrengthStrong {
				evaluation.IsNovel = score < NoveltyThreshold
				evaluation.HasNewPerspective = e.isNewPerspective(ctx, candidate, state)

				ok, assignErr := e.store.AssignArticleToStory(ctx, candidate.ArticleKey, story.StoryID, evaluation.IsNovel, evaluation.HasNewPerspective, now)
				if assignErr != nil {
					return evaluations, assignErr
				}
				if ok {
					evaluation.Joined = true
					joined[candidate.ArticleKey] = struct{}{}
					state.absorb(vector, e.biasFor(ctx, candidate))
					if err := e.store.TouchStoryUpdated(ctx, story.StoryID, now); err != nil {
						return evaluations, err
					}
				}
			}

			if strength != similarity.StrengthNone {
				evaluations = append(evaluations, evaluation)
			}
		}
	}
	return evaluations, nil
}

// storyState carries a story's centroid and the raw bias scores already
// represented among its members. Scores stay unfolded: a -2 outlet is a
// different perspective from a -1 one.
type storyState struct {
	centroid []float32
	vectors  [][]float32
	biases   map[int]struct{}
}

func (s *storyState) absorb(vector []float32, bias *int) {
	s.vectors = append(s.vectors, vector)
	s.centroid = similarity.Centroid(s.vectors)
	if bias != nil {
		s.biases[*bias] = struct{}{}
	}
}

func (e *Engine) loadStory(ctx context.Context, story db.Story, now time.Time) (*storyState, error) {
	members, err := e.store.ListStoryMembers(ctx, story.StoryID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(members))
	for _, member := range members {
		keys = append(keys, member.ArticleKey)
	}
	literals, err := e.store.GetEmbeddingsForArticles(ctx, keys, e.ModelName, e.ModelVersion, now)
	if err != nil {
		return nil, err
	}

	state := &storyState{biases: make(map[int]struct{})}
	for _, member := range members {
		// Every member represents its outlet's bias, embedded or not.
		if bias := e.biasFor(ctx, member); bias != nil {
			state.biases[*bias] = struct{}{}
		}
		literal, ok := literals[member.ArticleKey]
		if !ok {
			continue
		}
		vector, parseErr := db.ParseVectorLiteral(literal)
		if parseErr != nil {
			e.logger.Warn().Err(parseErr).Str("article_key", member.ArticleKey).Msg("skipping unreadable member vector")
			continue
		}
		state.vectors = append(state.vectors, vector)
	}
	if len(state.vectors) == 0 {
		return nil, nil
	}
	state.centroid = similarity.Centroid(state.vectors)
	return state, nil
}

// isNewPerspective reports whether the candidate's raw bias score is
// not yet represented among the story's members. Unrated candidates
// never count as a new perspective.
func (e *Engine) isNewPerspective(ctx context.Context, candidate db.Article, state *storyState) bool {
	bias := e.biasFor(ctx, candidate)
	if bias == nil {
		return false
	}
	_, present := state.biases[*bias]
	return !present
}

// biasFor resolves the raw bias score for an article's outlet, or nil
// when unrated.
func (e *Engine) biasFor(ctx context.Context, article db.Article) *int {
	if e.rater == nil {
		return nil
	}
	r, err := e.rater.RatingFor(ctx, article.SourceDomain, article.SourceID, article.SourceName)
	if err != nil {
		e.logger.Warn().Err(err).Str("domain", article.SourceDomain).Msg("rating lookup failed, treating as unrated")
		return nil
	}
	if r == nil {
		return nil
	}
	bias := r.Bias
	return &bias
}
