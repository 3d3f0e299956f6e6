// Package persistence provides database abstraction interfaces for storing
// grievances, embeddings, batches, clusters, thresholds and feedback.
package persistence

import (
	"context"

	"grievdedup/internal/core"
)

// HistoricalEntry is one row of the historical candidate pool: a processed
// grievance joined with its embedding vector.
type HistoricalEntry struct {
	GrievanceID   int64
	ProcessedText string
	Category      string
	Area          string
	Vector        []float32
}

// GrievanceRepository handles grievance persistence operations
type GrievanceRepository interface {
	// Create inserts a new grievance and fills in its assigned id
	Create(ctx context.Context, grievance *core.Grievance) error

	// Get retrieves a grievance by id; nil when not found
	Get(ctx context.Context, id int64) (*core.Grievance, error)

	// ListByBatch retrieves all grievances for a batch in insertion order
	ListByBatch(ctx context.Context, batchID string) ([]core.Grievance, error)

	// UpdateStatus applies an admin correction to a stored classification
	UpdateStatus(ctx context.Context, id int64, status core.Status) error

	// UpdateMatches resolves the match references of a grievance once every
	// member of its batch has an assigned id
	UpdateMatches(ctx context.Context, id int64, matchedID, localDuplicateOf *int64) error
}

// EmbeddingRepository handles embedding persistence operations
type EmbeddingRepository interface {
	// Create inserts the embedding for a grievance
	Create(ctx context.Context, embedding *core.Embedding) error

	// GetByGrievance retrieves the embedding for a grievance; nil when absent
	GetByGrievance(ctx context.Context, grievanceID int64) (*core.Embedding, error)

	// HistoricalPool returns the most recent processed grievances joined with
	// their vectors, newest first, capped at limit
	HistoricalPool(ctx context.Context, limit int) ([]HistoricalEntry, error)
}

// BatchRepository handles processing-batch lifecycle operations
type BatchRepository interface {
	// Create inserts a new batch in pending state
	Create(ctx context.Context, batch *core.ProcessingBatch) error

	// Get retrieves a batch by id; nil when not found
	Get(ctx context.Context, id string) (*core.ProcessingBatch, error)

	// MarkProcessing transitions a batch to processing and stamps started_at
	MarkProcessing(ctx context.Context, id string, totalPDFs int) error

	// Complete transitions a batch to completed with its final counters
	Complete(ctx context.Context, batch *core.ProcessingBatch) error

	// Fail transitions a batch to failed with an error message
	Fail(ctx context.Context, id string, errorMessage string) error
}

// ClusterRepository handles duplicate-cluster persistence operations
type ClusterRepository interface {
	// CreateCluster inserts a cluster head row and fills in its assigned id
	CreateCluster(ctx context.Context, cluster *core.DuplicateCluster) error

	// AddMember inserts one membership row
	AddMember(ctx context.Context, member *core.ClusterMember) error

	// ListByBatch retrieves the clusters built from a batch
	ListByBatch(ctx context.Context, batchID string) ([]core.DuplicateCluster, error)
}

// ThresholdRepository handles the adaptive threshold store
type ThresholdRepository interface {
	// GetAll retrieves every threshold row
	GetAll(ctx context.Context) ([]core.AdaptiveThreshold, error)

	// Get retrieves one threshold by kind; nil when not seeded
	Get(ctx context.Context, kind core.ThresholdKind) (*core.AdaptiveThreshold, error)

	// Update persists a threshold's current value and adjustment metadata
	Update(ctx context.Context, threshold *core.AdaptiveThreshold) error
}

// FeedbackRepository handles reviewer feedback persistence
type FeedbackRepository interface {
	// Create inserts a feedback row
	Create(ctx context.Context, feedback *core.FeedbackLog) error
}

// Database aggregates all repositories behind one connection
type Database interface {
	Grievances() GrievanceRepository
	Embeddings() EmbeddingRepository
	Batches() BatchRepository
	Clusters() ClusterRepository
	Thresholds() ThresholdRepository
	Feedback() FeedbackRepository
	Close() error
	Ping(ctx context.Context) error
}
