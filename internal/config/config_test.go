package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Environment:            "local",
		LogLevel:               "info",
		DatabaseURL:            "postgres://localhost/vantage",
		DBMinConns:             1,
		DBMaxConns:             8,
		EmbeddingModelName:     "all-MiniLM-L6-v2",
		EmbeddingModelVersion:  "v1",
		EmbeddingTTL:           30 * 24 * time.Hour,
		EmbeddingRetryCooldown: time.Hour,
		SearchPageSize:         20,
		MatchResultTTL:         6 * time.Hour,
		ArticleRetention:       30 * 24 * time.Hour,
		ClusterLookback:        24 * time.Hour,
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RequiresDatabaseURL(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.DatabaseURL = "   "
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestValidate_ConnBounds(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.DBMinConns = 9
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected min > max conns to fail validation")
	}
}

func TestValidate_SearchPageSizeRange(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.SearchPageSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected page size 0 to fail validation")
	}
	cfg.SearchPageSize = 101
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected page size 101 to fail validation")
	}
}

func TestValidate_ModelVersionRequired(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.EmbeddingModelVersion = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing model version to fail validation")
	}
}
