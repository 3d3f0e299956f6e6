package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"grievdedup/internal/core"
)

// postgresGrievanceRepo implements GrievanceRepository for PostgreSQL
type postgresGrievanceRepo struct {
	db *sql.DB
}

const grievanceColumns = `id, original_text, processed_text, submission_type,
	pdf_id, source_filename, page_number, batch_id, status, similarity_score,
	matched_grievance_id, local_duplicate_of, cosine_score, jaccard_score,
	ngram_score, contextual_score, category, area, location_details,
	top_matches, processed, created_at`

func (r *postgresGrievanceRepo) Create(ctx context.Context, g *core.Grievance) error {
	topMatches, err := json.Marshal(g.TopMatches)
	if err != nil {
		return fmt.Errorf("failed to marshal top matches: %w", err)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO grievances (original_text, processed_text, submission_type,
			pdf_id, source_filename, page_number, batch_id, status,
			similarity_score, matched_grievance_id, local_duplicate_of,
			cosine_score, jaccard_score, ngram_score, contextual_score,
			category, area, location_details, top_matches, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21)
		RETURNING id`

	err = r.db.QueryRowContext(ctx, query,
		g.OriginalText, g.ProcessedText, string(g.SubmissionType),
		g.PDFID, g.SourceFilename, g.PageNumber, g.BatchID, string(g.Status),
		g.SimilarityScore, g.MatchedID, g.LocalDuplicateOf,
		g.Scores.Cosine, g.Scores.Jaccard, g.Scores.NGram, g.Scores.Contextual,
		g.Category, g.Area, g.LocationDetails, string(topMatches),
		g.Processed, g.CreatedAt,
	).Scan(&g.ID)
	if err != nil {
		return fmt.Errorf("failed to insert grievance: %w", err)
	}
	return nil
}

func (r *postgresGrievanceRepo) Get(ctx context.Context, id int64) (*core.Grievance, error) {
	query := fmt.Sprintf(`SELECT %s FROM grievances WHERE id = $1`, grievanceColumns)
	g, err := scanGrievance(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grievance: %w", err)
	}
	return g, nil
}

func (r *postgresGrievanceRepo) ListByBatch(ctx context.Context, batchID string) ([]core.Grievance, error) {
	query := fmt.Sprintf(`SELECT %s FROM grievances WHERE batch_id = $1 ORDER BY id`, grievanceColumns)
	rows, err := r.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grievances: %w", err)
	}
	defer rows.Close()

	var grievances []core.Grievance
	for rows.Next() {
		g, err := scanGrievance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grievance: %w", err)
		}
		grievances = append(grievances, *g)
	}
	return grievances, rows.Err()
}

func (r *postgresGrievanceRepo) UpdateStatus(ctx context.Context, id int64, status core.Status) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE grievances SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update grievance status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("grievance %d not found", id)
	}
	return nil
}

func (r *postgresGrievanceRepo) UpdateMatches(ctx context.Context, id int64, matchedID, localDuplicateOf *int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE grievances
		SET matched_grievance_id = $1, local_duplicate_of = $2
		WHERE id = $3`, matchedID, localDuplicateOf, id)
	if err != nil {
		return fmt.Errorf("failed to update grievance matches: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGrievance(row rowScanner) (*core.Grievance, error) {
	var g core.Grievance
	var submissionType, status string
	var topMatchesJSON string

	err := row.Scan(
		&g.ID, &g.OriginalText, &g.ProcessedText, &submissionType,
		&g.PDFID, &g.SourceFilename, &g.PageNumber, &g.BatchID, &status,
		&g.SimilarityScore, &g.MatchedID, &g.LocalDuplicateOf,
		&g.Scores.Cosine, &g.Scores.Jaccard, &g.Scores.NGram, &g.Scores.Contextual,
		&g.Category, &g.Area, &g.LocationDetails,
		&topMatchesJSON, &g.Processed, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.SubmissionType = core.SubmissionType(submissionType)
	g.Status = core.Status(status)
	if topMatchesJSON != "" {
		// Audit data only; ignore unmarshal problems rather than fail reads.
		_ = json.Unmarshal([]byte(topMatchesJSON), &g.TopMatches)
	}
	return &g, nil
}

// postgresEmbeddingRepo implements EmbeddingRepository for PostgreSQL
type postgresEmbeddingRepo struct {
	db *sql.DB
}

func (r *postgresEmbeddingRepo) Create(ctx context.Context, e *core.Embedding) error {
	vector, err := json.Marshal(e.Vector)
	if err != nil {
		return fmt.Errorf("failed to marshal vector: %w", err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO embeddings (grievance_id, vector, model, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (grievance_id) DO UPDATE
		SET vector = EXCLUDED.vector, model = EXCLUDED.model`,
		e.GrievanceID, string(vector), e.Model, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert embedding: %w", err)
	}
	return nil
}

func (r *postgresEmbeddingRepo) GetByGrievance(ctx context.Context, grievanceID int64) (*core.Embedding, error) {
	var e core.Embedding
	var vectorJSON string
	err := r.db.QueryRowContext(ctx, `
		SELECT grievance_id, vector, model, created_at
		FROM embeddings WHERE grievance_id = $1`, grievanceID).
		Scan(&e.GrievanceID, &vectorJSON, &e.Model, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	if err := json.Unmarshal([]byte(vectorJSON), &e.Vector); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector: %w", err)
	}
	return &e, nil
}

func (r *postgresEmbeddingRepo) HistoricalPool(ctx context.Context, limit int) ([]HistoricalEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.processed_text, g.category, g.area, e.vector
		FROM grievances g
		JOIN embeddings e ON e.grievance_id = g.id
		WHERE g.processed = TRUE
		ORDER BY g.created_at DESC, g.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch historical pool: %w", err)
	}
	defer rows.Close()

	var pool []HistoricalEntry
	for rows.Next() {
		var entry HistoricalEntry
		var vectorJSON string
		if err := rows.Scan(&entry.GrievanceID, &entry.ProcessedText,
			&entry.Category, &entry.Area, &vectorJSON); err != nil {
			return nil, fmt.Errorf("failed to scan historical entry: %w", err)
		}
		if err := json.Unmarshal([]byte(vectorJSON), &entry.Vector); err != nil {
			return nil, fmt.Errorf("failed to unmarshal historical vector: %w", err)
		}
		pool = append(pool, entry)
	}
	return pool, rows.Err()
}

// postgresBatchRepo implements BatchRepository for PostgreSQL
type postgresBatchRepo struct {
	db *sql.DB
}

func (r *postgresBatchRepo) Create(ctx context.Context, b *core.ProcessingBatch) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO processing_batches (id, user_id, status, total_pdfs, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.UserID, string(b.State), b.TotalPDFs, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}
	return nil
}

func (r *postgresBatchRepo) Get(ctx context.Context, id string) (*core.ProcessingBatch, error) {
	var b core.ProcessingBatch
	var state string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, total_pdfs, processed_pdfs,
			total_grievances, unique_count, duplicate_count,
			near_duplicate_count, started_at, completed_at,
			COALESCE(error_message, ''), created_at
		FROM processing_batches WHERE id = $1`, id).
		Scan(&b.ID, &b.UserID, &state, &b.TotalPDFs, &b.ProcessedPDFs,
			&b.TotalGrievances, &b.UniqueCount, &b.DuplicateCount,
			&b.NearDuplicateCount, &b.StartedAt, &b.CompletedAt,
			&b.ErrorMessage, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	b.State = core.BatchState(state)
	return &b, nil
}

func (r *postgresBatchRepo) MarkProcessing(ctx context.Context, id string, totalPDFs int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processing_batches
		SET status = $1, total_pdfs = $2, started_at = $3
		WHERE id = $4`,
		string(core.BatchProcessing), totalPDFs, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark batch processing: %w", err)
	}
	return nil
}

func (r *postgresBatchRepo) Complete(ctx context.Context, b *core.ProcessingBatch) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processing_batches
		SET status = $1, processed_pdfs = $2, total_grievances = $3,
			unique_count = $4, duplicate_count = $5, near_duplicate_count = $6,
			completed_at = $7
		WHERE id = $8 AND status NOT IN ('completed', 'failed')`,
		string(core.BatchCompleted), b.ProcessedPDFs, b.TotalGrievances,
		b.UniqueCount, b.DuplicateCount, b.NearDuplicateCount,
		time.Now().UTC(), b.ID)
	if err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}
	return nil
}

func (r *postgresBatchRepo) Fail(ctx context.Context, id string, errorMessage string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processing_batches
		SET status = $1, error_message = $2, completed_at = $3
		WHERE id = $4 AND status NOT IN ('completed', 'failed')`,
		string(core.BatchFailed), errorMessage, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to fail batch: %w", err)
	}
	return nil
}

// postgresClusterRepo implements ClusterRepository for PostgreSQL
type postgresClusterRepo struct {
	db *sql.DB
}

func (r *postgresClusterRepo) CreateCluster(ctx context.Context, c *core.DuplicateCluster) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO duplicate_clusters (batch_id, cluster_type,
			primary_grievance_id, member_count, avg_similarity_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		c.BatchID, string(c.ClusterType), c.PrimaryGrievanceID,
		c.MemberCount, c.AvgSimilarityScore, c.CreatedAt).
		Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to insert cluster: %w", err)
	}
	return nil
}

func (r *postgresClusterRepo) AddMember(ctx context.Context, m *core.ClusterMember) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cluster_members (cluster_id, grievance_id,
			similarity_score, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		m.ClusterID, m.GrievanceID, m.SimilarityScore, m.CreatedAt).
		Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("failed to insert cluster member: %w", err)
	}
	return nil
}

func (r *postgresClusterRepo) ListByBatch(ctx context.Context, batchID string) ([]core.DuplicateCluster, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, batch_id, cluster_type, primary_grievance_id,
			member_count, avg_similarity_score, created_at
		FROM duplicate_clusters WHERE batch_id = $1 ORDER BY id`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}
	defer rows.Close()

	var clusters []core.DuplicateCluster
	for rows.Next() {
		var c core.DuplicateCluster
		var clusterType string
		if err := rows.Scan(&c.ID, &c.BatchID, &clusterType,
			&c.PrimaryGrievanceID, &c.MemberCount, &c.AvgSimilarityScore,
			&c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		c.ClusterType = core.ClusterType(clusterType)
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}

// postgresThresholdRepo implements ThresholdRepository for PostgreSQL
type postgresThresholdRepo struct {
	db *sql.DB
}

func (r *postgresThresholdRepo) GetAll(ctx context.Context) ([]core.AdaptiveThreshold, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kind, current_value, min_value, max_value,
			adjustment_count, last_adjusted_at
		FROM adaptive_thresholds`)
	if err != nil {
		return nil, fmt.Errorf("failed to list thresholds: %w", err)
	}
	defer rows.Close()

	var thresholds []core.AdaptiveThreshold
	for rows.Next() {
		t, err := scanThreshold(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threshold: %w", err)
		}
		thresholds = append(thresholds, *t)
	}
	return thresholds, rows.Err()
}

func (r *postgresThresholdRepo) Get(ctx context.Context, kind core.ThresholdKind) (*core.AdaptiveThreshold, error) {
	t, err := scanThreshold(r.db.QueryRowContext(ctx, `
		SELECT kind, current_value, min_value, max_value,
			adjustment_count, last_adjusted_at
		FROM adaptive_thresholds WHERE kind = $1`, string(kind)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get threshold: %w", err)
	}
	return t, nil
}

func (r *postgresThresholdRepo) Update(ctx context.Context, t *core.AdaptiveThreshold) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE adaptive_thresholds
		SET current_value = $1, adjustment_count = $2, last_adjusted_at = $3
		WHERE kind = $4`,
		t.CurrentValue, t.AdjustmentCount, t.LastAdjustedAt, string(t.Kind))
	if err != nil {
		return fmt.Errorf("failed to update threshold: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("threshold %s not found", t.Kind)
	}
	return nil
}

func scanThreshold(row rowScanner) (*core.AdaptiveThreshold, error) {
	var t core.AdaptiveThreshold
	var kind string
	err := row.Scan(&kind, &t.CurrentValue, &t.MinValue, &t.MaxValue,
		&t.AdjustmentCount, &t.LastAdjustedAt)
	if err != nil {
		return nil, err
	}
	t.Kind = core.ThresholdKind(kind)
	return &t, nil
}

// postgresFeedbackRepo implements FeedbackRepository for PostgreSQL
type postgresFeedbackRepo struct {
	db *sql.DB
}

func (r *postgresFeedbackRepo) Create(ctx context.Context, f *core.FeedbackLog) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO feedback_log (grievance_id, matched_grievance_id,
			original_status, corrected_status, original_score,
			applied_to_threshold, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		f.GrievanceID, f.MatchedGrievanceID, string(f.OriginalStatus),
		string(f.CorrectedStatus), f.OriginalScore, f.AppliedToThreshold,
		f.Notes, f.CreatedAt).
		Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}
