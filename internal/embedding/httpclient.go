package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"horse.fit/vantage/internal/db"
)

const (
	DefaultEndpoint       = "http://127.0.0.1:8844/embed"
	DefaultRequestTimeout = 45 * time.Second
	defaultMaxLength      = 512
)

type embedRequest struct {
	Texts     []string `json:"texts,omitempty"`
	Input     []string `json:"input,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// HTTPProvider speaks both the bare {"texts": ...} protocol and the
// OpenAI-compatible /v1/embeddings shape, picked from the endpoint path.
type HTTPProvider struct {
	Endpoint       string
	MaxLength      int
	RequestTimeout time.Duration
	Client         *http.Client
}

func NewHTTPProvider(endpoint string, timeout time.Duration) *HTTPProvider {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &HTTPProvider{
		Endpoint:       endpoint,
		MaxLength:      defaultMaxLength,
		RequestTimeout: timeout,
	}
}

func (p *HTTPProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := embedRequest{
		Texts:     []string{text},
		MaxLength: p.MaxLength,
	}
	parsedEndpoint, err := url.Parse(p.Endpoint)
	if err == nil && strings.HasSuffix(parsedEndpoint.Path, "/v1/embeddings") {
		payload = embedRequest{Input: []string{text}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, p.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, respBody)
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		vectors = make([][]float64, 0, len(parsed.Data))
		for _, row := range parsed.Data {
			vectors = append(vectors, row.Embedding)
		}
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response missing vectors")
	}
	if len(vectors[0]) != db.EmbeddingDims {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d want %d", len(vectors[0]), db.EmbeddingDims)
	}

	vector := make([]float32, len(vectors[0]))
	for i, component := range vectors[0] {
		vector[i] = float32(component)
	}
	return vector, nil
}

func classifyStatus(status int, body []byte) error {
	message := strings.TrimSpace(string(body))
	switch {
	case status == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("embedding service status %d: %s: %w", status, message, ErrTextTooLong)
	case status == http.StatusInsufficientStorage || strings.Contains(strings.ToLower(message), "out of memory"):
		return fmt.Errorf("embedding service status %d: %s: %w", status, message, ErrOOM)
	default:
		return fmt.Errorf("embedding service status %d: %s", status, message)
	}
}
