// Package handlers contains the cobra commands for the grievdedup CLI.
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grievdedup/internal/clusters"
	"grievdedup/internal/config"
	"grievdedup/internal/embed"
	"grievdedup/internal/logger"
	"grievdedup/internal/persistence"
	"grievdedup/internal/pipeline"
	"grievdedup/internal/threshold"
)

var cfgFile string

// NewRootCmd creates the base command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "grievdedup",
		Short: "Batch deduplication pipeline for citizen grievances",
		Long: `grievdedup ingests batches of extracted grievance text, classifies each
complaint as UNIQUE, NEAR_DUPLICATE or DUPLICATE against the batch and the
historical corpus, and adapts its thresholds from reviewer feedback.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.grievdedup.yaml)")

	rootCmd.AddCommand(NewProcessCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewFeedbackCmd())
	rootCmd.AddCommand(NewThresholdsCmd())
	rootCmd.AddCommand(NewMigrateCmd())

	return rootCmd
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the shared wiring every command needs.
type app struct {
	cfg        *config.Config
	db         *persistence.PostgresDB
	thresholds *threshold.Store
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.Logging.Level)
	db, err := persistence.NewPostgresDB(cfg.Database.URL, persistence.ConnOptions{
		MaxOpenConns:     cfg.Database.MaxOpenConns,
		MaxIdleConns:     cfg.Database.MaxIdleConns,
		StatementTimeout: cfg.Database.StatementTimeoutDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &app{
		cfg:        cfg,
		db:         db,
		thresholds: threshold.NewStore(db.Thresholds(), db.Feedback()),
	}, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) embedClient() *embed.Client {
	return embed.NewClient(embed.Config{
		Endpoint:      a.cfg.Embedding.Endpoint,
		FallbackURL:   a.cfg.Embedding.FallbackURL,
		FallbackToken: a.cfg.Embedding.FallbackToken,
		Model:         a.cfg.Embedding.Model,
		MaxRetries:    a.cfg.Embedding.MaxRetries,
		RetryWait:     a.cfg.Embedding.RetryWaitDuration(),
		Timeout:       a.cfg.Embedding.TimeoutDuration(),
	})
}

func (a *app) orchestrator(embedder *embed.Client) *pipeline.Orchestrator {
	pipeCfg := pipeline.DefaultConfig()
	if a.cfg.Dedup.HistoricalPoolSize > 0 {
		pipeCfg.HistoricalPoolSize = a.cfg.Dedup.HistoricalPoolSize
	}
	if a.cfg.Dedup.TopK > 0 {
		pipeCfg.TopK = a.cfg.Dedup.TopK
	}

	return pipeline.NewOrchestrator(
		a.db,
		embedder,
		a.thresholds,
		clusters.NewMaterializer(a.db.Clusters()),
		pipeCfg,
	)
}
