// Package reader fetches article pages and extracts their readable
// text. Every fetch ends in a tagged outcome so callers can persist
// why an article has no body instead of retrying blindly.
package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
)

const (
	DefaultFetchTimeout  = 12 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024

	defaultUserAgent = "VantageReader/1.0 (+https://horse.fit/vantage)"

	// Pages shorter than this with a paywall marker are treated as
	// gated stubs rather than articles.
	paywallTextCeiling = 600
)

// Status classifies the outcome of one extraction attempt.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusPaywallDetected Status = "paywall_detected"
	StatusNetworkError    Status = "network_error"
	StatusExtractionError Status = "extraction_error"
	StatusNotFetched      Status = "not_fetched"
)

// Extraction is the tagged result of one fetch-and-extract attempt.
// Err carries detail for the error statuses and is nil on success.
type Extraction struct {
	Status Status
	Text   string
	Err    error
}

var paywallMarkers = []string{
	"subscribe to continue",
	"subscribe to read",
	"subscription required",
	"sign in to read",
	"log in to continue",
	"create a free account to",
	"this content is for subscribers",
	"already a subscriber",
}

// Extractor controls HTTP behavior for article text extraction.
type Extractor struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

// Extract retrieves and extracts readable text for a canonical URL.
// The title is the fallback body when the page yields nothing better.
func (e Extractor) Extract(ctx context.Context, canonicalURL string, title string) Extraction {
	page := strings.TrimSpace(canonicalURL)
	if page == "" {
		return Extraction{Status: StatusNotFetched, Err: fmt.Errorf("canonical URL is required")}
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	bodyLimit := e.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, page, nil)
	if err != nil {
		return Extraction{Status: StatusNotFetched, Err: fmt.Errorf("build request: %w", err)}
	}

	userAgent := strings.TrimSpace(e.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	client := e.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return Extraction{Status: StatusNetworkError, Err: fmt.Errorf("fetch url: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Extraction{Status: StatusNetworkError, Err: fmt.Errorf("fetch status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return Extraction{Status: StatusNetworkError, Err: fmt.Errorf("read body: %w", err)}
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "text/plain") {
		return finishExtraction(CleanText(string(body)), title)
	}

	pageURL, err := url.Parse(page)
	if err != nil {
		return Extraction{Status: StatusNotFetched, Err: fmt.Errorf("parse page url: %w", err)}
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return Extraction{Status: StatusExtractionError, Err: fmt.Errorf("readability parse: %w", err)}
	}

	var renderedText bytes.Buffer
	if err := article.RenderText(&renderedText); err != nil {
		return Extraction{Status: StatusExtractionError, Err: fmt.Errorf("render readability text: %w", err)}
	}

	text := CleanText(renderedText.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	return finishExtraction(text, title)
}

func finishExtraction(text, title string) Extraction {
	if paywalled(text) {
		return Extraction{Status: StatusPaywallDetected, Err: fmt.Errorf("page looks gated")}
	}
	if text == "" {
		text = strings.TrimSpace(title)
	}
	if text == "" {
		return Extraction{Status: StatusExtractionError, Err: fmt.Errorf("reader extracted empty content")}
	}
	return Extraction{Status: StatusSuccess, Text: text}
}

// paywalled reports whether the extracted text is a short gated stub.
func paywalled(text string) bool {
	if text == "" || len(text) > paywallTextCeiling {
		return false
	}
	lower := strings.ToLower(text)
	for _, marker := range paywallMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
