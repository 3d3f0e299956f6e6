package pipeline

import (
	"context"

	"grievdedup/internal/core"
	"grievdedup/internal/threshold"
)

// Embedder acquires dense vectors for grievance text.
type Embedder interface {
	// Embed returns one unit-norm vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model reports the producing model name for provenance records
	Model() string
}

// ThresholdSource provides the batch-local threshold snapshot.
type ThresholdSource interface {
	Snapshot(ctx context.Context) threshold.Snapshot
}

// ClusterWriter persists duplicate clusters for a completed batch.
type ClusterWriter interface {
	Materialize(ctx context.Context, batchID string, grievances []core.Grievance, upgraded map[int64]bool) int
}
