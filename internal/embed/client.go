// Package embed acquires dense vectors for grievance text from a remote
// embedding service. A custom endpoint is tried first; on failure the hosted
// fallback model is used with its wait-for-model protocol. All vectors are
// 384-dimensional and normalized to unit length.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"grievdedup/internal/core"
	"grievdedup/internal/logger"
)

// ErrUnavailable signals that no embedding could be acquired after all
// retries. Callers must fail the batch; synthetic vectors are never
// substituted on this path.
var ErrUnavailable = errors.New("embedding service unavailable")

// Config holds the client's endpoints and retry policy.
type Config struct {
	Endpoint      string        // Custom embedding server, tried first (optional)
	FallbackURL   string        // Hosted model endpoint
	FallbackToken string        // Bearer token for the fallback, if required
	Model         string        // Model name recorded for provenance
	MaxRetries    int           // Attempts against the fallback endpoint
	RetryWait     time.Duration // Pause between fallback attempts
	Timeout       time.Duration // Per-request timeout
}

// Client fetches embeddings over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates an embedding client. Zero-valued retry settings fall
// back to 3 attempts with a 2s pause.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.Get(),
	}
}

// Model returns the configured model name for provenance records.
func (c *Client) Model() string {
	return c.cfg.Model
}

type embedRequest struct {
	Inputs  []string       `json:"inputs"`
	Options map[string]any `json:"options,omitempty"`
}

// Embed returns one unit-norm 384-dim vector per input text, in input order.
// The custom endpoint is tried once with all texts in a single request; on
// any failure the fallback endpoint is retried up to MaxRetries times with
// RetryWait between attempts. When everything fails, the returned error
// wraps ErrUnavailable.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if c.cfg.Endpoint != "" {
		vectors, err := c.request(ctx, c.cfg.Endpoint, texts, false)
		if err == nil {
			return vectors, nil
		}
		c.log.Warn("custom embedding endpoint failed, using fallback",
			"endpoint", c.cfg.Endpoint, "error", err.Error())
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		vectors, err := c.request(ctx, c.cfg.FallbackURL, texts, true)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		c.log.Warn("embedding attempt failed",
			"attempt", attempt, "max_retries", c.cfg.MaxRetries, "error", err.Error())

		if attempt < c.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryWait):
			}
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Healthy probes the custom endpoint's health route. Only meaningful when a
// custom endpoint is configured; always true otherwise.
func (c *Client) Healthy(ctx context.Context) bool {
	if c.cfg.Endpoint == "" {
		return true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL(c.cfg.Endpoint), nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func healthURL(endpoint string) string {
	// The embedding server mounts health at the root, one level above
	// its /embeddings route.
	if i := len(endpoint) - len("/embeddings"); i > 0 && endpoint[i:] == "/embeddings" {
		return endpoint[:i] + "/"
	}
	return endpoint
}

func (c *Client) request(ctx context.Context, url string, texts []string, fallback bool) ([][]float32, error) {
	reqBody := embedRequest{Inputs: texts}
	if fallback {
		// Hosted inference endpoints 503 while the model loads unless
		// asked to wait.
		reqBody.Options = map[string]any{"wait_for_model": true}
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if fallback && c.cfg.FallbackToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.FallbackToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	vectors, err := parseVectors(body, len(texts))
	if err != nil {
		return nil, err
	}
	for i := range vectors {
		normalize(vectors[i])
	}
	return vectors, nil
}

// parseVectors normalizes the endpoint's singleton-or-array response shape
// so callers always see a list of lists, and validates dimensions.
func parseVectors(body []byte, want int) ([][]float32, error) {
	var nested [][]float32
	if err := json.Unmarshal(body, &nested); err != nil {
		// Single-input endpoints may return one bare vector.
		var flat []float32
		if err := json.Unmarshal(body, &flat); err != nil || want != 1 {
			return nil, fmt.Errorf("unexpected embedding response shape: %s", truncate(body, 200))
		}
		nested = [][]float32{flat}
	}

	if len(nested) != want {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(nested), want)
	}
	for i, vec := range nested {
		if len(vec) != core.EmbeddingDimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, want %d",
				i, len(vec), core.EmbeddingDimensions)
		}
	}
	return nested, nil
}

// normalize scales a vector to unit length in place. Zero vectors are left
// untouched.
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * inv)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
