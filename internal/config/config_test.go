package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Embedding.MaxRetries != 3 {
		t.Errorf("Expected default max_retries 3, got %d", cfg.Embedding.MaxRetries)
	}
	if cfg.Embedding.RetryWaitDuration() != 2*time.Second {
		t.Errorf("Expected default retry wait 2s, got %s", cfg.Embedding.RetryWaitDuration())
	}
	if cfg.Dedup.HistoricalPoolSize != 1000 {
		t.Errorf("Expected default pool size 1000, got %d", cfg.Dedup.HistoricalPoolSize)
	}
	if cfg.Dedup.TopK != 10 {
		t.Errorf("Expected default top_k 10, got %d", cfg.Dedup.TopK)
	}
	if cfg.Embedding.FallbackURL == "" {
		t.Error("Expected a default fallback URL")
	}
	if cfg.Database.MaxOpenConns != 25 || cfg.Database.MaxIdleConns != 5 {
		t.Errorf("Expected default pool 25/5, got %d/%d",
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	}
	if cfg.Database.StatementTimeoutDuration() != 10*time.Second {
		t.Errorf("Expected default statement timeout 10s, got %s",
			cfg.Database.StatementTimeoutDuration())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %q", cfg.Logging.Level)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("dedup:\n  top_k: 5\nembedding:\n  retry_wait: 500ms\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dedup.TopK != 5 {
		t.Errorf("Expected top_k 5 from file, got %d", cfg.Dedup.TopK)
	}
	if cfg.Embedding.RetryWaitDuration() != 500*time.Millisecond {
		t.Errorf("Expected retry wait 500ms, got %s", cfg.Embedding.RetryWaitDuration())
	}
}

func TestDurationFallbacks(t *testing.T) {
	e := Embedding{RetryWait: "not-a-duration", Timeout: ""}
	if e.RetryWaitDuration() != 2*time.Second {
		t.Errorf("Expected fallback retry wait 2s, got %s", e.RetryWaitDuration())
	}
	if e.TimeoutDuration() != 60*time.Second {
		t.Errorf("Expected fallback timeout 60s, got %s", e.TimeoutDuration())
	}
	d := Database{StatementTimeout: "bogus"}
	if d.StatementTimeoutDuration() != 10*time.Second {
		t.Errorf("Expected fallback statement timeout 10s, got %s", d.StatementTimeoutDuration())
	}
	d = Database{StatementTimeout: "3s"}
	if d.StatementTimeoutDuration() != 3*time.Second {
		t.Errorf("Expected statement timeout 3s, got %s", d.StatementTimeoutDuration())
	}
}
