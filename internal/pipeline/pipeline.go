// Package pipeline orchestrates batch grievance processing end to end:
// extraction, categorization, embedding, hierarchical dedup, density
// clustering, persistence and batch lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"grievdedup/internal/category"
	"grievdedup/internal/clustering"
	"grievdedup/internal/core"
	"grievdedup/internal/dedup"
	"grievdedup/internal/extract"
	"grievdedup/internal/logger"
	"grievdedup/internal/persistence"
	"grievdedup/internal/similarity"
	"grievdedup/internal/textnorm"
)

// ErrNoValidGrievances is returned when extraction filters out every
// candidate in a submission.
var ErrNoValidGrievances = errors.New("no valid grievances found in batch")

// Config holds pipeline tuning.
type Config struct {
	HistoricalPoolSize int // Most recent processed grievances fetched per batch
	TopK               int // Candidates kept in the global dedup pass
	EmbedChunkSize     int // Texts per embedding request
	EmbedConcurrency   int // Concurrent embedding requests
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		HistoricalPoolSize: 1000,
		TopK:               dedup.DefaultTopK,
		EmbedChunkSize:     32,
		EmbedConcurrency:   4,
	}
}

// Orchestrator drives one batch at a time through the pipeline. Batches are
// independent; there is no cross-batch coordination.
type Orchestrator struct {
	db         persistence.Database
	embedder   Embedder
	thresholds ThresholdSource
	clusters   ClusterWriter
	cfg        *Config
	log        *slog.Logger
}

// NewOrchestrator creates a pipeline with all dependencies.
func NewOrchestrator(db persistence.Database, embedder Embedder, thresholds ThresholdSource, clusters ClusterWriter, cfg *Config) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		db:         db,
		embedder:   embedder,
		thresholds: thresholds,
		clusters:   clusters,
		cfg:        cfg,
		log:        logger.Get(),
	}
}

// Submit registers a pending batch and starts processing it asynchronously.
// The returned batch id can be polled through the batch status.
func (o *Orchestrator) Submit(ctx context.Context, submit core.BatchSubmit) (string, error) {
	batch := &core.ProcessingBatch{
		ID:        uuid.NewString(),
		UserID:    submit.UserID,
		State:     core.BatchPending,
		TotalPDFs: len(submit.PDFs),
	}
	if err := o.db.Batches().Create(ctx, batch); err != nil {
		return "", fmt.Errorf("failed to create batch: %w", err)
	}

	go func() {
		// The submitter's context ends with the request; processing owns
		// its own lifetime.
		if err := o.Run(context.Background(), batch.ID, submit); err != nil {
			o.log.Error("batch processing failed", "batch_id", batch.ID, "error", err.Error())
		}
	}()
	return batch.ID, nil
}

// ProcessBatch registers a batch and runs it to completion on the calling
// goroutine. Used by the CLI, which wants the result before exiting.
func (o *Orchestrator) ProcessBatch(ctx context.Context, submit core.BatchSubmit) (string, error) {
	batch := &core.ProcessingBatch{
		ID:        uuid.NewString(),
		UserID:    submit.UserID,
		State:     core.BatchPending,
		TotalPDFs: len(submit.PDFs),
	}
	if err := o.db.Batches().Create(ctx, batch); err != nil {
		return "", fmt.Errorf("failed to create batch: %w", err)
	}
	return batch.ID, o.Run(ctx, batch.ID, submit)
}

// SubmitText wraps a single direct-text grievance into a one-entry batch.
func (o *Orchestrator) SubmitText(ctx context.Context, userID int64, text, area string) (string, error) {
	return o.Submit(ctx, core.BatchSubmit{
		UserID: userID,
		PDFs: []core.PDFEntry{{
			Area:       area,
			Grievances: []core.PageText{{PageNumber: 1, Text: text}},
		}},
	})
}

// item is one extracted grievance flowing through the pipeline.
type item struct {
	dedup.Item
	original       string
	processedText  string
	submissionType core.SubmissionType
	pdfID          *int64
	filename       string
	confidence     float64
	location       string
}

// Run processes a previously created batch synchronously and leaves it in a
// terminal state. Partial failure always lands on status=failed with an
// error message, so the status API never sees a batch stuck in processing.
func (o *Orchestrator) Run(ctx context.Context, batchID string, submit core.BatchSubmit) error {
	if err := o.db.Batches().MarkProcessing(ctx, batchID, len(submit.PDFs)); err != nil {
		return fmt.Errorf("failed to mark batch processing: %w", err)
	}

	if err := o.process(ctx, batchID, submit); err != nil {
		if failErr := o.db.Batches().Fail(ctx, batchID, err.Error()); failErr != nil {
			o.log.Error("failed to record batch failure", "batch_id", batchID, "error", failErr.Error())
		}
		return err
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, batchID string, submit core.BatchSubmit) error {
	items := o.extract(submit)
	if len(items) == 0 {
		return ErrNoValidGrievances
	}
	o.log.Info("batch extracted", "batch_id", batchID, "grievances", len(items))

	if err := o.embedItems(ctx, items); err != nil {
		return err
	}

	snap := o.thresholds.Snapshot(ctx)
	historical, err := o.historicalPool(ctx)
	if err != nil {
		return err
	}

	dedupItems := make([]dedup.Item, len(items))
	for i := range items {
		items[i].BatchIndex = i
		dedupItems[i] = items[i].Item
	}

	engine := dedup.NewEngine(snap, o.cfg.TopK)
	results := engine.Run(dedupItems, historical)

	upgradedIdx := o.densityPass(dedupItems, results, 1-snap.NearDuplicate)

	grievances, err := o.persist(ctx, batchID, items, results)
	if err != nil {
		return err
	}

	upgraded := make(map[int64]bool, len(upgradedIdx))
	for idx := range upgradedIdx {
		upgraded[grievances[idx].ID] = true
	}
	created := o.clusters.Materialize(ctx, batchID, grievances, upgraded)
	o.log.Info("clusters materialized", "batch_id", batchID, "clusters", created)

	return o.complete(ctx, batchID, submit, grievances)
}

// extract flattens the submission into pipeline items, in PDF order, then
// page order, then in-page order. Invalid candidates are filtered silently.
func (o *Orchestrator) extract(submit core.BatchSubmit) []*item {
	var items []*item
	for ordinal, pdf := range submit.PDFs {
		subType := core.SubmissionPDF
		var pdfID *int64
		if pdf.PDFID > 0 {
			id := pdf.PDFID
			pdfID = &id
		} else if pdf.Filename == "" {
			subType = core.SubmissionText
		}

		for _, page := range pdf.Grievances {
			for _, text := range extract.Split(page.Text) {
				tokens := textnorm.Tokens(text)
				det := category.Detect(text)
				location := category.ExtractArea(text)
				area := pdf.Area
				if area == "" {
					area = location
				}

				items = append(items, &item{
					Item: dedup.Item{
						PDFOrdinal: ordinal,
						PageNumber: page.PageNumber,
						Tokens:     tokens,
						Category:   det.Category,
						Area:       area,
					},
					original:       text,
					processedText:  strings.Join(tokens, " "),
					submissionType: subType,
					pdfID:          pdfID,
					filename:       pdf.Filename,
					confidence:     det.Confidence,
					location:       location,
				})
			}
		}
	}
	return items
}

// embedItems acquires vectors for every item, chunked and fanned out, with
// input order preserved. Any unrecovered embedding failure fails the batch;
// synthetic vectors are never substituted.
func (o *Orchestrator) embedItems(ctx context.Context, items []*item) error {
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.original
	}

	vectors := make([][]float32, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.EmbedConcurrency)

	for start := 0; start < len(texts); start += o.cfg.EmbedChunkSize {
		end := start + o.cfg.EmbedChunkSize
		if end > len(texts) {
			end = len(texts)
		}
		lo, hi := start, end
		g.Go(func() error {
			chunk, err := o.embedder.Embed(gctx, texts[lo:hi])
			if err != nil {
				return err
			}
			copy(vectors[lo:hi], chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("embedding acquisition failed: %w", err)
	}

	for i := range items {
		items[i].Embedding = vectors[i]
	}
	return nil
}

// historicalPool snapshots the most recent processed grievances for the
// global pass. Read once per batch; released with the batch.
func (o *Orchestrator) historicalPool(ctx context.Context) ([]dedup.Candidate, error) {
	entries, err := o.db.Embeddings().HistoricalPool(ctx, o.cfg.HistoricalPoolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch historical pool: %w", err)
	}

	candidates := make([]dedup.Candidate, len(entries))
	for i, entry := range entries {
		candidates[i] = dedup.Candidate{
			Ref:       core.PersistedRef(entry.GrievanceID),
			Tokens:    strings.Fields(entry.ProcessedText),
			Embedding: entry.Vector,
			Category:  entry.Category,
			Area:      entry.Area,
		}
	}
	return candidates, nil
}

// densityPass runs DBSCAN over all batch embeddings and upgrades UNIQUE
// members of each dense group to NEAR_DUPLICATE against the group's
// earliest page. DUPLICATE results are never downgraded. Returns the set of
// upgraded batch indices.
func (o *Orchestrator) densityPass(items []dedup.Item, results []dedup.Result, eps float64) map[int]bool {
	vectors := make([][]float32, len(items))
	for i := range items {
		vectors[i] = items[i].Embedding
	}

	upgraded := make(map[int]bool)
	clusterer := clustering.NewDBSCAN(eps, 2)
	for _, members := range clusterer.Cluster(vectors) {
		primary := members[0]
		for _, idx := range members[1:] {
			if items[idx].PageNumber < items[primary].PageNumber {
				primary = idx
			}
		}

		for _, idx := range members {
			if idx == primary || results[idx].Status != core.StatusUnique {
				continue
			}
			ref := core.PendingRef(primary)
			results[idx].Status = core.StatusNearDuplicate
			results[idx].Match = &ref
			if results[idx].Score == 0 {
				// Pairwise pass may not have scored this pair; fall back to
				// the embedding signal that grouped them.
				cos := similarity.Cosine(items[idx].Embedding, items[primary].Embedding)
				if cos < 0 {
					cos = 0
				}
				results[idx].Score = cos
				results[idx].Breakdown.Cosine = cos
			}
			upgraded[idx] = true
		}
	}
	return upgraded
}

// persist writes every grievance and its embedding, then resolves in-batch
// match references once all ids are assigned. Any failure here fails the
// whole batch.
func (o *Orchestrator) persist(ctx context.Context, batchID string, items []*item, results []dedup.Result) ([]core.Grievance, error) {
	grievances := make([]core.Grievance, len(items))

	for i, it := range items {
		page := it.PageNumber
		g := core.Grievance{
			OriginalText:    it.original,
			ProcessedText:   it.processedText,
			SubmissionType:  it.submissionType,
			PDFID:           it.pdfID,
			SourceFilename:  it.filename,
			PageNumber:      &page,
			BatchID:         batchID,
			Status:          results[i].Status,
			SimilarityScore: results[i].Score,
			Scores: core.ScoreBreakdown{
				Cosine:     results[i].Breakdown.Cosine,
				Jaccard:    results[i].Breakdown.Jaccard,
				NGram:      results[i].Breakdown.NGram,
				Contextual: results[i].Breakdown.Contextual,
			},
			Category:        it.Category,
			Area:            it.Area,
			LocationDetails: it.location,
			TopMatches:      results[i].TopMatches,
			Processed:       true,
		}
		if err := o.db.Grievances().Create(ctx, &g); err != nil {
			return nil, fmt.Errorf("failed to persist grievance %d of batch: %w", i, err)
		}
		if err := o.db.Embeddings().Create(ctx, &core.Embedding{
			GrievanceID: g.ID,
			Vector:      items[i].Embedding,
			Model:       o.embedder.Model(),
		}); err != nil {
			return nil, fmt.Errorf("failed to persist embedding for grievance %d: %w", g.ID, err)
		}
		grievances[i] = g
	}

	// Second phase: all ids exist now, so pending refs can be resolved.
	for i := range items {
		matched := resolveRef(results[i].Match, grievances)
		var localDup *int64
		if results[i].LocalStatus == core.LocalDuplicate && results[i].LocalBest >= 0 {
			id := grievances[results[i].LocalBest].ID
			localDup = &id
		}
		if matched == nil && localDup == nil {
			continue
		}
		if err := o.db.Grievances().UpdateMatches(ctx, grievances[i].ID, matched, localDup); err != nil {
			return nil, fmt.Errorf("failed to resolve matches for grievance %d: %w", grievances[i].ID, err)
		}
		grievances[i].MatchedID = matched
		grievances[i].LocalDuplicateOf = localDup
	}
	return grievances, nil
}

// resolveRef maps a match ref to a stored grievance id, translating pending
// batch indices through the freshly assigned ids.
func resolveRef(ref *core.MatchRef, grievances []core.Grievance) *int64 {
	if ref == nil {
		return nil
	}
	if id, ok := ref.Persisted(); ok {
		return &id
	}
	if idx, ok := ref.Pending(); ok && idx >= 0 && idx < len(grievances) {
		id := grievances[idx].ID
		return &id
	}
	return nil
}

// complete writes the final counters and transitions the batch to completed.
func (o *Orchestrator) complete(ctx context.Context, batchID string, submit core.BatchSubmit, grievances []core.Grievance) error {
	batch := &core.ProcessingBatch{
		ID:              batchID,
		ProcessedPDFs:   len(submit.PDFs),
		TotalGrievances: len(grievances),
	}
	for _, g := range grievances {
		switch g.Status {
		case core.StatusDuplicate:
			batch.DuplicateCount++
		case core.StatusNearDuplicate:
			batch.NearDuplicateCount++
		default:
			batch.UniqueCount++
		}
	}

	if err := o.db.Batches().Complete(ctx, batch); err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}
	o.log.Info("batch completed",
		"batch_id", batchID,
		"total", batch.TotalGrievances,
		"unique", batch.UniqueCount,
		"duplicate", batch.DuplicateCount,
		"near_duplicate", batch.NearDuplicateCount)
	return nil
}

