package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db         *sql.DB
	grievances GrievanceRepository
	embeddings EmbeddingRepository
	batches    BatchRepository
	clusters   ClusterRepository
	thresholds ThresholdRepository
	feedback   FeedbackRepository
}

// ConnOptions tunes the connection pool and per-statement timeout. Zero
// values fall back to the package defaults (25 open, 5 idle, no timeout).
type ConnOptions struct {
	MaxOpenConns     int
	MaxIdleConns     int
	StatementTimeout time.Duration
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(connectionString string, opts ConnOptions) (*PostgresDB, error) {
	db, err := sql.Open("postgres", applyStatementTimeout(connectionString, opts.StatementTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 25
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pgDB := &PostgresDB{db: db}
	pgDB.grievances = &postgresGrievanceRepo{db: db}
	pgDB.embeddings = &postgresEmbeddingRepo{db: db}
	pgDB.batches = &postgresBatchRepo{db: db}
	pgDB.clusters = &postgresClusterRepo{db: db}
	pgDB.thresholds = &postgresThresholdRepo{db: db}
	pgDB.feedback = &postgresFeedbackRepo{db: db}

	return pgDB, nil
}

func (p *PostgresDB) Grievances() GrievanceRepository { return p.grievances }
func (p *PostgresDB) Embeddings() EmbeddingRepository { return p.embeddings }
func (p *PostgresDB) Batches() BatchRepository        { return p.batches }
func (p *PostgresDB) Clusters() ClusterRepository     { return p.clusters }
func (p *PostgresDB) Thresholds() ThresholdRepository { return p.thresholds }
func (p *PostgresDB) Feedback() FeedbackRepository    { return p.feedback }

func (p *PostgresDB) Close() error {
	return p.db.Close()
}

func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// DB exposes the raw connection for the migration manager.
func (p *PostgresDB) DB() *sql.DB {
	return p.db
}

// applyStatementTimeout sets statement_timeout as a session run-time
// parameter on the connection string. lib/pq forwards unknown parameters to
// the server, so every pooled connection picks it up. An explicit
// statement_timeout already present in the string wins.
func applyStatementTimeout(connectionString string, d time.Duration) string {
	if d <= 0 {
		return connectionString
	}
	ms := strconv.FormatInt(d.Milliseconds(), 10)
	if u, err := url.Parse(connectionString); err == nil && u.Scheme != "" {
		q := u.Query()
		if q.Get("statement_timeout") != "" {
			return connectionString
		}
		q.Set("statement_timeout", ms)
		u.RawQuery = q.Encode()
		return u.String()
	}
	// Keyword/value DSN form.
	if strings.Contains(connectionString, "statement_timeout") {
		return connectionString
	}
	return connectionString + " statement_timeout=" + ms
}
