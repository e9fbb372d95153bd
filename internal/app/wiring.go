package app

import (
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/vantage/internal/config"
	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/embedding"
	"horse.fit/vantage/internal/matching"
	"horse.fit/vantage/internal/rating"
	"horse.fit/vantage/internal/search"
)

// newEmbeddingCache wires the embed-service client and the database-backed
// vector cache from configuration.
func newEmbeddingCache(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) *embedding.Cache {
	provider := embedding.NewHTTPProvider(cfg.EmbeddingEndpoint, cfg.EmbeddingTimeout)
	cache := embedding.NewCache(pool, provider, cfg.EmbeddingModelName, cfg.EmbeddingModelVersion, logger)
	cache.TTL = cfg.EmbeddingTTL
	cache.RetryCooldown = cfg.EmbeddingRetryCooldown
	return cache
}

// newSearchProvider returns the latched news-search client, or nil when
// no API key is configured so matching degrades to feed-only candidates.
func newSearchProvider(cfg *config.Config, logger zerolog.Logger) search.Provider {
	if strings.TrimSpace(cfg.SearchAPIKey) == "" {
		return nil
	}
	inner := search.NewHTTPProvider(cfg.SearchEndpoint, cfg.SearchAPIKey, 0)
	return search.NewQuotaLatch(inner, logger)
}

func newOrchestrator(cfg *config.Config, pool *db.Pool, logger zerolog.Logger) *matching.Orchestrator {
	cache := newEmbeddingCache(cfg, pool, logger)
	resolver := rating.NewResolver(pool)
	orchestrator := matching.NewOrchestrator(
		pool,
		cache,
		newSearchProvider(cfg, logger),
		resolver,
		cfg.EmbeddingModelName,
		cfg.EmbeddingModelVersion,
		logger,
	)
	orchestrator.ResultTTL = cfg.MatchResultTTL
	orchestrator.PageSize = cfg.SearchPageSize
	return orchestrator
}
