package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/vantage/internal/db"
	"horse.fit/vantage/internal/globaltime"
	"horse.fit/vantage/internal/urlnorm"
)

type storyDetail struct {
	Story   db.Story     `json:"story"`
	Members []db.Article `json:"members"`
}

type followRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "vantage",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleMatches(c echo.Context) error {
	rawURL := strings.TrimSpace(c.QueryParam("url"))
	if rawURL == "" {
		return fail(c, http.StatusBadRequest, "Query parameter url is required", nil)
	}
	key, _, err := urlnorm.Canonicalize(rawURL)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid article URL", nil)
	}
	if s.matcher == nil {
		return internalError(c, "Matching is not configured")
	}

	result, err := s.matcher.FindMatches(c.Request().Context(), key)
	if err != nil {
		if article, lookupErr := s.store.GetArticle(c.Request().Context(), key); lookupErr == nil && article == nil {
			return failNotFound(c, "Article is not known")
		}
		s.logger.Error().Err(err).Str("article_key", key).Msg("match run failed")
		return internalError(c, "Failed to find matches")
	}
	return success(c, result)
}

func (s *Server) handleStories(c echo.Context) error {
	limit := defaultPageSize
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return fail(c, http.StatusBadRequest, "Invalid limit", nil)
		}
		limit = min(parsed, maxPageSize)
	}

	stories, err := s.store.ListStories(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list stories failed")
		return internalError(c, "Failed to load stories")
	}
	return success(c, map[string]any{
		"items": stories,
	})
}

func (s *Server) handleStoryDetail(c echo.Context) error {
	storyID, err := strconv.ParseInt(c.Param("story_id"), 10, 64)
	if err != nil || storyID < 1 {
		return fail(c, http.StatusBadRequest, "Invalid story id", nil)
	}

	ctx := c.Request().Context()
	story, err := s.store.GetStory(ctx, storyID)
	if err != nil {
		s.logger.Error().Err(err).Int64("story_id", storyID).Msg("get story failed")
		return internalError(c, "Failed to load story")
	}
	if story == nil {
		return failNotFound(c, "Story not found")
	}

	members, err := s.store.ListStoryMembers(ctx, storyID)
	if err != nil {
		s.logger.Error().Err(err).Int64("story_id", storyID).Msg("list story members failed")
		return internalError(c, "Failed to load story members")
	}

	// Viewing a story resets its unread count.
	if err := s.store.MarkStoryViewed(ctx, storyID, globaltime.Now().UTC()); err != nil {
		s.logger.Warn().Err(err).Int64("story_id", storyID).Msg("mark story viewed failed")
	}

	return success(c, storyDetail{Story: *story, Members: members})
}

func (s *Server) handleFollow(c echo.Context) error {
	var req followRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid JSON body", nil)
	}
	key, _, err := urlnorm.Canonicalize(req.URL)
	if err != nil {
		return fail(c, http.StatusBadRequest, "Invalid article URL", nil)
	}

	storyID, err := s.store.FollowArticle(c.Request().Context(), key, globaltime.Now().UTC())
	if err != nil {
		if article, lookupErr := s.store.GetArticle(c.Request().Context(), key); lookupErr == nil && article == nil {
			return failNotFound(c, "Article is not known")
		}
		s.logger.Error().Err(err).Str("article_key", key).Msg("follow failed")
		return internalError(c, "Failed to follow article")
	}
	return successWithStatus(c, http.StatusCreated, map[string]any{
		"story_id": storyID,
	})
}
