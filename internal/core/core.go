package core

import "time"

// SubmissionType identifies how a grievance entered the system.
type SubmissionType string

const (
	SubmissionText SubmissionType = "text"
	SubmissionPDF  SubmissionType = "pdf"
)

// Status classifies a grievance against the rest of the corpus.
type Status string

const (
	StatusUnique        Status = "UNIQUE"
	StatusNearDuplicate Status = "NEAR_DUPLICATE"
	StatusDuplicate     Status = "DUPLICATE"
)

// LocalStatus classifies a grievance against earlier pages of the same PDF.
type LocalStatus string

const (
	LocalUnique        LocalStatus = "LOCAL_UNIQUE"
	LocalNearDuplicate LocalStatus = "LOCAL_NEAR_DUPLICATE"
	LocalDuplicate     LocalStatus = "LOCAL_DUPLICATE"
)

// ScoreBreakdown records the individual similarity signals behind a
// classification. Each component is in [0,1].
type ScoreBreakdown struct {
	Cosine     float64 `json:"cosine"`     // Dense-vector cosine similarity
	Jaccard    float64 `json:"jaccard"`    // Token-set Jaccard overlap
	NGram      float64 `json:"ngram"`      // Combined bigram/trigram overlap
	Contextual float64 `json:"contextual"` // Net boost/penalty from modifiers
}

// Grievance represents a single citizen complaint.
type Grievance struct {
	ID               int64          `json:"id"`                   // Stable integer identifier
	OriginalText     string         `json:"original_text"`        // Text as submitted
	ProcessedText    string         `json:"processed_text"`       // Normalized token string
	SubmissionType   SubmissionType `json:"submission_type"`      // "text" or "pdf"
	PDFID            *int64         `json:"pdf_id"`               // Source PDF, when submitted via PDF
	SourceFilename   string         `json:"source_filename"`      // Original filename, when known
	PageNumber       *int           `json:"page_number"`          // Page within the source PDF
	BatchID          string         `json:"batch_id"`             // Processing batch this arrived in
	Status           Status         `json:"status"`               // UNIQUE / NEAR_DUPLICATE / DUPLICATE
	SimilarityScore  float64        `json:"similarity_score"`     // Composite score against best match
	MatchedID        *int64         `json:"matched_grievance_id"` // Best historical/batch match, when persisted
	LocalDuplicateOf *int64         `json:"local_duplicate_of"`   // Earlier grievance in the same PDF
	Scores           ScoreBreakdown `json:"scores"`               // Signal breakdown for the best match
	Category         string         `json:"category"`             // Taxonomy class or OTHER
	Area             string         `json:"area"`                 // Free-text locality
	LocationDetails  string         `json:"location_details"`     // Extracted location hints
	TopMatches       []TopMatch     `json:"top_matches"`          // Top-3 candidates, for reviewer audit
	Processed        bool           `json:"processed"`            // True once classified
	CreatedAt        time.Time      `json:"created_at"`
}

// TopMatch is one audit entry: the candidate a grievance was scored against
// and the composite it received.
type TopMatch struct {
	Ref   string  `json:"ref"` // grievance_<id> or batch_<index>
	Score float64 `json:"score"`
}

// EmbeddingDimensions is the fixed width of grievance vectors.
const EmbeddingDimensions = 384

// Embedding is the dense vector for one grievance, unit-norm, 384 dims.
type Embedding struct {
	GrievanceID int64     `json:"grievance_id"`
	Vector      []float32 `json:"vector"`
	Model       string    `json:"model"` // Producing model, for provenance
	CreatedAt   time.Time `json:"created_at"`
}

// BatchState is the lifecycle state of a processing batch.
type BatchState string

const (
	BatchPending    BatchState = "pending"
	BatchProcessing BatchState = "processing"
	BatchCompleted  BatchState = "completed"
	BatchFailed     BatchState = "failed"
)

// ProcessingBatch tracks one submitted batch of PDFs through the pipeline.
type ProcessingBatch struct {
	ID                 string     `json:"batch_id"`
	UserID             int64      `json:"user_id"`
	State              BatchState `json:"status"`
	TotalPDFs          int        `json:"total_pdfs"`
	ProcessedPDFs      int        `json:"processed_pdfs"`
	TotalGrievances    int        `json:"total_grievances"`
	UniqueCount        int        `json:"unique_count"`
	DuplicateCount     int        `json:"duplicate_count"`
	NearDuplicateCount int        `json:"near_duplicate_count"`
	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	ErrorMessage       string     `json:"error_message"`
	CreatedAt          time.Time  `json:"created_at"`
}

// ClusterType labels how a duplicate cluster was formed.
type ClusterType string

const (
	ClusterDuplicate     ClusterType = "DUPLICATE"
	ClusterNearDuplicate ClusterType = "NEAR_DUPLICATE"
	ClusterContextual    ClusterType = "CONTEXTUAL" // Groups upgraded by density clustering
)

// DuplicateCluster is the head record of a group of related grievances.
type DuplicateCluster struct {
	ID                 int64       `json:"id"`
	BatchID            string      `json:"batch_id"`
	ClusterType        ClusterType `json:"cluster_type"`
	PrimaryGrievanceID int64       `json:"primary_grievance_id"`
	MemberCount        int         `json:"member_count"`
	AvgSimilarityScore float64     `json:"avg_similarity_score"`
	CreatedAt          time.Time   `json:"created_at"`
}

// ClusterMember links one grievance into a cluster, carrying its similarity
// to the cluster primary.
type ClusterMember struct {
	ID              int64     `json:"id"`
	ClusterID       int64     `json:"cluster_id"`
	GrievanceID     int64     `json:"grievance_id"`
	SimilarityScore float64   `json:"similarity_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// ThresholdKind names one adjustable scalar in the adaptive store.
type ThresholdKind string

const (
	ThresholdDuplicate      ThresholdKind = "duplicate"
	ThresholdNearDuplicate  ThresholdKind = "near_duplicate"
	ThresholdCosineWeight   ThresholdKind = "cosine_weight"
	ThresholdJaccardWeight  ThresholdKind = "jaccard_weight"
	ThresholdNGramWeight    ThresholdKind = "ngram_weight"
	ThresholdMetadataWeight ThresholdKind = "metadata_weight"
)

// AdaptiveThreshold is one tunable scalar with its bounds and history.
type AdaptiveThreshold struct {
	Kind            ThresholdKind `json:"kind"`
	CurrentValue    float64       `json:"current_value"`
	MinValue        float64       `json:"min_value"`
	MaxValue        float64       `json:"max_value"`
	AdjustmentCount int           `json:"adjustment_count"`
	LastAdjustedAt  *time.Time    `json:"last_adjusted_at"`
}

// FeedbackLog records a reviewer's correction of a classification.
type FeedbackLog struct {
	ID                 int64     `json:"id"`
	GrievanceID        int64     `json:"grievance_id"`
	MatchedGrievanceID *int64    `json:"matched_grievance_id"`
	OriginalStatus     Status    `json:"original_status"`
	CorrectedStatus    Status    `json:"corrected_status"`
	OriginalScore      *float64  `json:"original_score"`
	AppliedToThreshold bool      `json:"applied_to_threshold"`
	Notes              string    `json:"notes"`
	CreatedAt          time.Time `json:"created_at"`
}

// PageText is one extracted page of text from a client-converted PDF.
type PageText struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// PDFEntry is one PDF's worth of pre-extracted text in a batch submission.
type PDFEntry struct {
	PDFID      int64      `json:"pdf_id"`
	Filename   string     `json:"filename"`
	Area       string     `json:"area"` // Applies to every grievance in this PDF
	Grievances []PageText `json:"grievances"`
}

// BatchSubmit is the orchestrator input: a set of PDFs submitted together.
type BatchSubmit struct {
	UserID int64      `json:"user_id"`
	PDFs   []PDFEntry `json:"pdfs"`
}

// Feedback is the input to the adaptive-threshold write path.
type Feedback struct {
	GrievanceID        int64    `json:"grievance_id"`
	MatchedGrievanceID *int64   `json:"matched_grievance_id"`
	OriginalStatus     Status   `json:"original_status"`
	CorrectedStatus    Status   `json:"corrected_status"`
	OriginalScore      *float64 `json:"original_score"`
	Notes              string   `json:"notes"`
}
