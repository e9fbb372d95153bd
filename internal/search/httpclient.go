package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultEndpoint       = "https://newsapi.org/v2/everything"
	DefaultRequestTimeout = 15 * time.Second
	DefaultPageSize       = 20
	MaxPageSize           = 100
)

type searchResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// HTTPProvider queries a NewsAPI-compatible /v2/everything endpoint.
type HTTPProvider struct {
	Endpoint       string
	APIKey         string
	RequestTimeout time.Duration
	Client         *http.Client
}

func NewHTTPProvider(endpoint, apiKey string, timeout time.Duration) *HTTPProvider {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &HTTPProvider{Endpoint: endpoint, APIKey: apiKey, RequestTimeout: timeout}
}

func (p *HTTPProvider) Search(ctx context.Context, query string, from, to time.Time, pageSize int) ([]ArticleSummary, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("sortBy", "publishedAt")
	if !from.IsZero() {
		params.Set("from", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		params.Set("to", to.UTC().Format(time.RFC3339))
	}

	requestCtx, cancel := context.WithTimeout(ctx, p.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, p.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	if p.APIKey != "" {
		req.Header.Set("X-Api-Key", p.APIKey)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if parsed.Status != "" && parsed.Status != "ok" {
		if parsed.Code == "rateLimited" {
			return nil, &RateLimitError{RetryAfter: defaultRetryAfter}
		}
		return nil, fmt.Errorf("search service error %s: %s", parsed.Code, parsed.Message)
	}

	summaries := make([]ArticleSummary, 0, len(parsed.Articles))
	for _, article := range parsed.Articles {
		if strings.TrimSpace(article.URL) == "" {
			continue
		}
		publishedAt, parseErr := time.Parse(time.RFC3339, article.PublishedAt)
		if parseErr != nil {
			publishedAt = time.Time{}
		}
		summaries = append(summaries, ArticleSummary{
			URL:         article.URL,
			SourceID:    article.Source.ID,
			SourceName:  article.Source.Name,
			Title:       article.Title,
			Description: article.Description,
			Content:     article.Content,
			PublishedAt: publishedAt,
		})
	}
	return summaries, nil
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if remaining := time.Until(at); remaining > 0 {
			return remaining
		}
	}
	return defaultRetryAfter
}
