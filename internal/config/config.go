package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database  Database  `mapstructure:"database"`
	Embedding Embedding `mapstructure:"embedding"`
	Dedup     Dedup     `mapstructure:"dedup"`
	Logging   Logging   `mapstructure:"logging"`
}

// Database holds Postgres connection configuration
type Database struct {
	URL              string `mapstructure:"url"`
	MaxOpenConns     int    `mapstructure:"max_open_conns"`
	MaxIdleConns     int    `mapstructure:"max_idle_conns"`
	StatementTimeout string `mapstructure:"statement_timeout"`
}

// Embedding holds embedding-service configuration
type Embedding struct {
	Endpoint      string `mapstructure:"endpoint"`       // Custom embedding server, tried first
	FallbackURL   string `mapstructure:"fallback_url"`   // Hosted model endpoint
	FallbackToken string `mapstructure:"fallback_token"` // Bearer token for the fallback
	Model         string `mapstructure:"model"`          // Model name recorded for provenance
	MaxRetries    int    `mapstructure:"max_retries"`
	RetryWait     string `mapstructure:"retry_wait"`
	Timeout       string `mapstructure:"timeout"`
}

// Dedup holds deduplication tuning
type Dedup struct {
	HistoricalPoolSize int `mapstructure:"historical_pool_size"`
	TopK               int `mapstructure:"top_k"`
}

// Logging holds logging configuration
type Logging struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file and environment
func Load(configFile string) (*Config, error) {
	// Load .env file if present (ignore errors - file is optional)
	_ = godotenv.Load()

	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".grievdedup")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GRIEVDEDUP")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; only fail on parse errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("database.url", "postgres://localhost:5432/grievdedup?sslmode=disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.statement_timeout", "10s")

	viper.SetDefault("embedding.endpoint", "")
	viper.SetDefault("embedding.fallback_url",
		"https://api-inference.huggingface.co/pipeline/feature-extraction/sentence-transformers/all-MiniLM-L6-v2")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	viper.SetDefault("embedding.max_retries", 3)
	viper.SetDefault("embedding.retry_wait", "2s")
	viper.SetDefault("embedding.timeout", "60s")

	viper.SetDefault("dedup.historical_pool_size", 1000)
	viper.SetDefault("dedup.top_k", 10)

	viper.SetDefault("logging.level", "info")
}

// StatementTimeoutDuration parses the configured per-statement timeout,
// defaulting to 10s.
func (d Database) StatementTimeoutDuration() time.Duration {
	t, err := time.ParseDuration(d.StatementTimeout)
	if err != nil || t <= 0 {
		return 10 * time.Second
	}
	return t
}

// RetryWaitDuration parses the configured retry wait, defaulting to 2s.
func (e Embedding) RetryWaitDuration() time.Duration {
	d, err := time.ParseDuration(e.RetryWait)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// TimeoutDuration parses the configured request timeout, defaulting to 60s.
func (e Embedding) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}
