package db

import (
	"encoding/json"
	"time"
)

// EmbeddingDims is the fixed dimension of article embedding vectors.
const EmbeddingDims = 384

// Embedding lifecycle states. Persisted as strings so reordering
// variants across versions cannot corrupt stored rows.
const (
	EmbeddingStatusSuccess = "success"
	EmbeddingStatusFailed  = "failed"
	EmbeddingStatusPending = "pending"
)

// Embedding failure reasons.
const (
	FailureNoText      = "no_text"
	FailureOOM         = "oom"
	FailureTextTooLong = "text_too_long"
	FailureModelError  = "model_error"
)

// Match methods recorded on a MatchResult.
const (
	MatchMethodSemantic        = "semantic"
	MatchMethodKeywordFallback = "keyword_fallback"
	MatchMethodHybrid          = "hybrid"
)

// Article maps vantage.articles. The canonical URL is the stable key;
// rows are immutable after first sight except for text extraction,
// tracking, and story-assignment updates.
type Article struct {
	ArticleKey        string     `gorm:"column:article_key;type:text;primaryKey" json:"article_key"`
	SourceID          string     `gorm:"column:source_id;type:text;not null;default:''" json:"source_id,omitempty"`
	SourceName        string     `gorm:"column:source_name;type:text;not null;default:''" json:"source_name"`
	SourceDomain      string     `gorm:"column:source_domain;type:text;not null;default:''" json:"source_domain"`
	Title             string     `gorm:"column:title;type:text;not null" json:"title"`
	Description       *string    `gorm:"column:description;type:text" json:"description,omitempty"`
	PublishedAt       time.Time  `gorm:"column:published_at;type:timestamptz;not null" json:"published_at"`
	ExtractedText     *string    `gorm:"column:extracted_text;type:text" json:"-"`
	Language          string     `gorm:"column:language;type:text;not null;default:und" json:"language"`
	Tracked           bool       `gorm:"column:tracked;type:boolean;not null;default:false" json:"tracked"`
	StoryID           *int64     `gorm:"column:story_id;type:bigint" json:"story_id,omitempty"`
	IsNovel           bool       `gorm:"column:is_novel;type:boolean;not null;default:false" json:"is_novel"`
	HasNewPerspective bool       `gorm:"column:has_new_perspective;type:boolean;not null;default:false" json:"has_new_perspective"`
	StoryAddedAt      *time.Time `gorm:"column:story_added_at;type:timestamptz" json:"story_added_at,omitempty"`
	FirstSeenAt       time.Time  `gorm:"column:first_seen_at;type:timestamptz;not null;default:now()" json:"first_seen_at"`
	CreatedAt         time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()" json:"-"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()" json:"-"`
}

func (Article) TableName() string { return "vantage.articles" }

// ArticleEmbedding maps vantage.article_embeddings. One row per
// (article, model name, model version); a model upgrade writes new rows
// and leaves old versions in place until they expire.
type ArticleEmbedding struct {
	ArticleKey    string     `gorm:"column:article_key;type:text;primaryKey"`
	ModelName     string     `gorm:"column:model_name;type:text;primaryKey"`
	ModelVersion  string     `gorm:"column:model_version;type:text;primaryKey"`
	Vector        *string    `gorm:"column:vector;type:vector(384)"`
	Status        string     `gorm:"column:status;type:text;not null;default:pending"`
	FailureReason *string    `gorm:"column:failure_reason;type:text"`
	EmbeddedAt    *time.Time `gorm:"column:embedded_at;type:timestamptz"`
	LastAttemptAt time.Time  `gorm:"column:last_attempt_at;type:timestamptz;not null;default:now()"`
	ExpiresAt     time.Time  `gorm:"column:expires_at;type:timestamptz;not null"`
}

func (ArticleEmbedding) TableName() string { return "vantage.article_embeddings" }

// MatchEntry is one element of a MatchResult's structured match list.
// Keys and scores travel together so list lengths can never diverge.
type MatchEntry struct {
	ArticleKey string  `json:"article_key"`
	Score      float64 `json:"score"`
}

// MatchResult maps vantage.match_results: the cached outcome of one
// orchestrated match run for a source article.
type MatchResult struct {
	SourceArticleKey string          `gorm:"column:source_article_key;type:text;primaryKey"`
	Matches          json.RawMessage `gorm:"column:matches;type:jsonb;not null"`
	Method           string          `gorm:"column:method;type:text;not null"`
	ModelName        string          `gorm:"column:model_name;type:text;not null"`
	ModelVersion     string          `gorm:"column:model_version;type:text;not null"`
	ComputedAt       time.Time       `gorm:"column:computed_at;type:timestamptz;not null"`
	ExpiresAt        time.Time       `gorm:"column:expires_at;type:timestamptz;not null"`
}

func (MatchResult) TableName() string { return "vantage.match_results" }

// Story maps vantage.stories. A story exists once a user follows an
// article; membership lives on Article via its story_id soft key.
type Story struct {
	StoryID      int64      `gorm:"column:story_id;primaryKey;autoIncrement" json:"story_id"`
	Title        string     `gorm:"column:title;type:text;not null" json:"title"`
	CreatedAt    time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()" json:"updated_at"`
	LastViewedAt *time.Time `gorm:"column:last_viewed_at;type:timestamptz" json:"last_viewed_at,omitempty"`
}

func (Story) TableName() string { return "vantage.stories" }

// SourceRating maps vantage.source_ratings. Read-only to the matching
// core; absence of a row means "unrated", which is a valid state.
type SourceRating struct {
	SourceKey   string    `gorm:"column:source_key;type:text;primaryKey"`
	SourceID    *string   `gorm:"column:source_id;type:text"`
	DisplayName *string   `gorm:"column:display_name;type:text"`
	Bias        int       `gorm:"column:bias;type:smallint;not null"`
	Reliability int       `gorm:"column:reliability;type:smallint;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (SourceRating) TableName() string { return "vantage.source_ratings" }

func autoMigrateModels() []any {
	return []any{
		&Article{},
		&ArticleEmbedding{},
		&MatchResult{},
		&Story{},
		&SourceRating{},
	}
}
