// Package threshold manages the adaptive classification thresholds: reading
// a consistent snapshot for a batch, and nudging the cut-offs from reviewer
// feedback.
package threshold

import (
	"context"
	"log/slog"
	"time"

	"grievdedup/internal/core"
	"grievdedup/internal/logger"
	"grievdedup/internal/persistence"
	"grievdedup/internal/similarity"
)

// LearningRate is the single-step EMA nudge applied per feedback event.
const LearningRate = 0.05

// Snapshot is a batch-local copy of the threshold store. It is read once at
// batch start so concurrent feedback writes cannot shift classification
// mid-batch.
type Snapshot struct {
	Duplicate      float64
	NearDuplicate  float64
	CosineWeight   float64
	JaccardWeight  float64
	NGramWeight    float64
	MetadataWeight float64
}

// Defaults returns the hard-coded fallback used when the store is empty or
// unreadable. The duplicate value matches the migration seed.
func Defaults() Snapshot {
	return Snapshot{
		Duplicate:      0.60,
		NearDuplicate:  0.60,
		CosineWeight:   0.55,
		JaccardWeight:  0.25,
		NGramWeight:    0.15,
		MetadataWeight: 0.05,
	}
}

// Weights converts the snapshot's weight portion for the similarity kernel.
func (s Snapshot) Weights() similarity.Weights {
	return similarity.Weights{
		Cosine:   s.CosineWeight,
		Jaccard:  s.JaccardWeight,
		NGram:    s.NGramWeight,
		Metadata: s.MetadataWeight,
	}
}

// Store reads and adjusts the persisted thresholds.
type Store struct {
	repo     persistence.ThresholdRepository
	feedback persistence.FeedbackRepository
	log      *slog.Logger
}

// NewStore creates a threshold store over the given repositories.
func NewStore(repo persistence.ThresholdRepository, feedback persistence.FeedbackRepository) *Store {
	return &Store{
		repo:     repo,
		feedback: feedback,
		log:      logger.Get(),
	}
}

// Snapshot returns the current threshold values, falling back to defaults
// for kinds the store does not hold. A completely unreadable store logs a
// warning and returns pure defaults; it never fails the caller.
func (s *Store) Snapshot(ctx context.Context) Snapshot {
	snap := Defaults()

	rows, err := s.repo.GetAll(ctx)
	if err != nil {
		s.log.Warn("threshold store unreadable, using defaults", "error", err.Error())
		return snap
	}

	for _, row := range rows {
		switch row.Kind {
		case core.ThresholdDuplicate:
			snap.Duplicate = row.CurrentValue
		case core.ThresholdNearDuplicate:
			snap.NearDuplicate = row.CurrentValue
		case core.ThresholdCosineWeight:
			snap.CosineWeight = row.CurrentValue
		case core.ThresholdJaccardWeight:
			snap.JaccardWeight = row.CurrentValue
		case core.ThresholdNGramWeight:
			snap.NGramWeight = row.CurrentValue
		case core.ThresholdMetadataWeight:
			snap.MetadataWeight = row.CurrentValue
		}
	}

	// Classification requires near_duplicate <= duplicate; clamp a store
	// that drifted out of order.
	if snap.NearDuplicate > snap.Duplicate {
		s.log.Warn("near_duplicate threshold above duplicate, clamping",
			"near_duplicate", snap.NearDuplicate, "duplicate", snap.Duplicate)
		snap.NearDuplicate = snap.Duplicate
	}
	return snap
}

// transition describes which threshold a feedback correction adjusts and in
// which direction.
type transition struct {
	kind core.ThresholdKind
	sign float64
}

var transitions = map[[2]core.Status]transition{
	{core.StatusUnique, core.StatusDuplicate}:        {core.ThresholdDuplicate, -1},
	{core.StatusDuplicate, core.StatusUnique}:        {core.ThresholdDuplicate, +1},
	{core.StatusUnique, core.StatusNearDuplicate}:    {core.ThresholdNearDuplicate, -1},
	{core.StatusNearDuplicate, core.StatusUnique}:    {core.ThresholdNearDuplicate, +1},
	{core.StatusNearDuplicate, core.StatusDuplicate}: {core.ThresholdNearDuplicate, +1},
	{core.StatusDuplicate, core.StatusNearDuplicate}: {core.ThresholdDuplicate, +1},
}

// ApplyFeedback persists a reviewer correction and nudges the matching
// threshold by the learning rate, clamped to the kind's bounds and to the
// near_duplicate <= duplicate ordering. Unknown transitions still persist
// the feedback row but leave every threshold untouched.
func (s *Store) ApplyFeedback(ctx context.Context, fb core.Feedback) (*core.FeedbackLog, error) {
	entry := &core.FeedbackLog{
		GrievanceID:        fb.GrievanceID,
		MatchedGrievanceID: fb.MatchedGrievanceID,
		OriginalStatus:     fb.OriginalStatus,
		CorrectedStatus:    fb.CorrectedStatus,
		OriginalScore:      fb.OriginalScore,
		Notes:              fb.Notes,
	}

	tr, known := transitions[[2]core.Status{fb.OriginalStatus, fb.CorrectedStatus}]
	if known {
		applied, err := s.adjust(ctx, tr)
		if err != nil {
			return nil, err
		}
		entry.AppliedToThreshold = applied
	} else {
		s.log.Debug("feedback transition has no threshold mapping",
			"from", string(fb.OriginalStatus), "to", string(fb.CorrectedStatus))
	}

	if err := s.feedback.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) adjust(ctx context.Context, tr transition) (bool, error) {
	row, err := s.repo.Get(ctx, tr.kind)
	if err != nil {
		return false, err
	}
	if row == nil {
		s.log.Warn("threshold kind not seeded, skipping adjustment", "kind", string(tr.kind))
		return false, nil
	}

	value := row.CurrentValue + tr.sign*LearningRate
	if value < row.MinValue {
		value = row.MinValue
	}
	if value > row.MaxValue {
		value = row.MaxValue
	}
	value = s.clampOrdering(ctx, tr.kind, value)

	now := time.Now().UTC()
	row.CurrentValue = value
	row.AdjustmentCount++
	row.LastAdjustedAt = &now

	if err := s.repo.Update(ctx, row); err != nil {
		return false, err
	}
	s.log.Info("threshold adjusted",
		"kind", string(tr.kind), "value", value, "adjustments", row.AdjustmentCount)
	return true, nil
}

// clampOrdering keeps near_duplicate <= duplicate across updates to either
// kind.
func (s *Store) clampOrdering(ctx context.Context, kind core.ThresholdKind, value float64) float64 {
	switch kind {
	case core.ThresholdDuplicate:
		if other, err := s.repo.Get(ctx, core.ThresholdNearDuplicate); err == nil && other != nil && value < other.CurrentValue {
			return other.CurrentValue
		}
	case core.ThresholdNearDuplicate:
		if other, err := s.repo.Get(ctx, core.ThresholdDuplicate); err == nil && other != nil && value > other.CurrentValue {
			return other.CurrentValue
		}
	}
	return value
}

// Set writes an operator-supplied value for a threshold kind, clamped to its
// bounds. Used for the weight kinds, which feedback never adjusts.
func (s *Store) Set(ctx context.Context, kind core.ThresholdKind, value float64) (*core.AdaptiveThreshold, error) {
	row, err := s.repo.Get(ctx, kind)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	if value < row.MinValue {
		value = row.MinValue
	}
	if value > row.MaxValue {
		value = row.MaxValue
	}
	value = s.clampOrdering(ctx, kind, value)

	now := time.Now().UTC()
	row.CurrentValue = value
	row.AdjustmentCount++
	row.LastAdjustedAt = &now
	if err := s.repo.Update(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// List returns all threshold rows for operator inspection.
func (s *Store) List(ctx context.Context) ([]core.AdaptiveThreshold, error) {
	return s.repo.GetAll(ctx)
}
