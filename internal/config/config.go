package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"VANTAGE_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"VANTAGE_DB_MAX_CONNS" default:"8"`

	EmbeddingEndpoint      string        `envconfig:"EMBEDDING_ENDPOINT" default:"http://127.0.0.1:8844/embed"`
	EmbeddingModelName     string        `envconfig:"EMBEDDING_MODEL_NAME" default:"all-MiniLM-L6-v2"`
	EmbeddingModelVersion  string        `envconfig:"EMBEDDING_MODEL_VERSION" default:"v1"`
	EmbeddingTimeout       time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"45s"`
	EmbeddingTTL           time.Duration `envconfig:"EMBEDDING_TTL" default:"720h"`
	EmbeddingRetryCooldown time.Duration `envconfig:"EMBEDDING_RETRY_COOLDOWN" default:"1h"`

	SearchEndpoint string `envconfig:"SEARCH_ENDPOINT" default:"https://newsapi.org/v2/everything"`
	SearchAPIKey   string `envconfig:"SEARCH_API_KEY" default:""`
	SearchPageSize int    `envconfig:"SEARCH_PAGE_SIZE" default:"20"`

	MatchResultTTL   time.Duration `envconfig:"MATCH_RESULT_TTL" default:"6h"`
	ArticleRetention time.Duration `envconfig:"ARTICLE_RETENTION" default:"720h"`
	ClusterLookback  time.Duration `envconfig:"CLUSTER_LOOKBACK" default:"24h"`

	APITokenHash string `envconfig:"API_TOKEN_HASH" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("VANTAGE_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("VANTAGE_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("VANTAGE_DB_MIN_CONNS (%d) cannot exceed VANTAGE_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.EmbeddingModelName) == "" {
		return fmt.Errorf("EMBEDDING_MODEL_NAME is required")
	}
	if strings.TrimSpace(c.EmbeddingModelVersion) == "" {
		return fmt.Errorf("EMBEDDING_MODEL_VERSION is required")
	}
	if c.EmbeddingTTL <= 0 {
		return fmt.Errorf("EMBEDDING_TTL must be positive")
	}
	if c.EmbeddingRetryCooldown <= 0 {
		return fmt.Errorf("EMBEDDING_RETRY_COOLDOWN must be positive")
	}
	if c.SearchPageSize < 1 || c.SearchPageSize > 100 {
		return fmt.Errorf("SEARCH_PAGE_SIZE must be between 1 and 100")
	}
	if c.MatchResultTTL <= 0 {
		return fmt.Errorf("MATCH_RESULT_TTL must be positive")
	}
	if c.ArticleRetention <= 0 {
		return fmt.Errorf("ARTICLE_RETENTION must be positive")
	}
	if c.ClusterLookback <= 0 {
		return fmt.Errorf("CLUSTER_LOOKBACK must be positive")
	}
	return nil
}
