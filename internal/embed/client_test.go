package embed

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"grievdedup/internal/core"
)

// vectorFor builds a deterministic 384-dim vector whose first component
// identifies the input, so ordering can be asserted.
func vectorFor(seed float32) []float32 {
	vec := make([]float32, core.EmbeddingDimensions)
	vec[0] = seed
	vec[1] = 1
	return vec
}

func embeddingServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func decodeInputs(t *testing.T, r *http.Request) []string {
	t.Helper()
	var req struct {
		Inputs []string `json:"inputs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("Failed to decode request: %v", err)
	}
	return req.Inputs
}

func TestEmbed_CustomEndpoint(t *testing.T) {
	srv := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		inputs := decodeInputs(t, r)
		out := make([][]float32, len(inputs))
		for i := range inputs {
			out[i] = vectorFor(float32(i + 1))
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	client := NewClient(Config{Endpoint: srv.URL + "/embeddings"})
	vectors, err := client.Embed(context.Background(), []string{"first", "second", "third"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("Expected 3 vectors, got %d", len(vectors))
	}

	// Input order must be preserved: the seed component grows with the index.
	for i := 0; i < 2; i++ {
		if vectors[i][0] >= vectors[i+1][0] {
			t.Errorf("Vector order not preserved: v[%d][0]=%f >= v[%d][0]=%f",
				i, vectors[i][0], i+1, vectors[i+1][0])
		}
	}
}

func TestEmbed_VectorsAreUnitNorm(t *testing.T) {
	srv := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{vectorFor(3)})
	})

	client := NewClient(Config{Endpoint: srv.URL})
	vectors, err := client.Embed(context.Background(), []string{"one"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	var sum float64
	for _, v := range vectors[0] {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
		t.Errorf("Expected unit-norm vector, got norm %f", math.Sqrt(sum))
	}
}

func TestEmbed_FallbackAfterCustomFailure(t *testing.T) {
	custom := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	var sawAuth atomic.Bool
	fallback := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer token-123" {
			sawAuth.Store(true)
		}
		inputs := decodeInputs(t, r)
		out := make([][]float32, len(inputs))
		for i := range inputs {
			out[i] = vectorFor(1)
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	client := NewClient(Config{
		Endpoint:      custom.URL,
		FallbackURL:   fallback.URL,
		FallbackToken: "token-123",
		MaxRetries:    3,
		RetryWait:     time.Millisecond,
	})
	vectors, err := client.Embed(context.Background(), []string{"text"})
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("Expected 1 vector, got %d", len(vectors))
	}
	if !sawAuth.Load() {
		t.Error("Fallback request missing bearer token")
	}
}

func TestEmbed_FallbackRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	fallback := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "loading", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([][]float32{vectorFor(1)})
	})

	client := NewClient(Config{
		FallbackURL: fallback.URL,
		MaxRetries:  3,
		RetryWait:   time.Millisecond,
	})
	if _, err := client.Embed(context.Background(), []string{"text"}); err != nil {
		t.Fatalf("Expected third attempt to succeed, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestEmbed_UnavailableAfterAllRetries(t *testing.T) {
	var calls atomic.Int32
	fallback := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	client := NewClient(Config{
		FallbackURL: fallback.URL,
		MaxRetries:  3,
		RetryWait:   time.Millisecond,
	})
	_, err := client.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestEmbed_SingletonResponseShape(t *testing.T) {
	srv := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Some single-input endpoints return one bare vector.
		_ = json.NewEncoder(w).Encode(vectorFor(2))
	})

	client := NewClient(Config{Endpoint: srv.URL})
	vectors, err := client.Embed(context.Background(), []string{"only"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != core.EmbeddingDimensions {
		t.Fatalf("Expected 1 vector of %d dims", core.EmbeddingDimensions)
	}
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	srv := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{{0.1, 0.2, 0.3}})
	})

	client := NewClient(Config{
		FallbackURL: srv.URL,
		MaxRetries:  2,
		RetryWait:   time.Millisecond,
	})
	_, err := client.Embed(context.Background(), []string{"text"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable on dimension mismatch, got %v", err)
	}
}

func TestEmbed_CountMismatch(t *testing.T) {
	srv := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{vectorFor(1)})
	})

	client := NewClient(Config{
		FallbackURL: srv.URL,
		MaxRetries:  1,
	})
	_, err := client.Embed(context.Background(), []string{"one", "two"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable on count mismatch, got %v", err)
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	client := NewClient(Config{FallbackURL: "http://never-called.invalid"})
	vectors, err := client.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed of empty input failed: %v", err)
	}
	if vectors != nil {
		t.Errorf("Expected nil vectors for empty input, got %v", vectors)
	}
}

func TestHealthy(t *testing.T) {
	var path atomic.Value
	srv := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy", "model": "test", "dimensions": 384,
		})
	})

	client := NewClient(Config{Endpoint: srv.URL + "/embeddings"})
	if !client.Healthy(context.Background()) {
		t.Error("Expected healthy endpoint")
	}
	if got, _ := path.Load().(string); got != "/" {
		t.Errorf("Expected health probe at /, got %q", got)
	}
}

func TestHealthy_NoCustomEndpoint(t *testing.T) {
	client := NewClient(Config{FallbackURL: "http://unused.invalid"})
	if !client.Healthy(context.Background()) {
		t.Error("Expected Healthy to be true without a custom endpoint")
	}
}
