package threshold

import (
	"context"
	"errors"
	"math"
	"testing"

	"grievdedup/internal/core"
)

// MockThresholdRepo implements persistence.ThresholdRepository for testing
type MockThresholdRepo struct {
	rows       map[core.ThresholdKind]*core.AdaptiveThreshold
	getAllFail bool
	updateFail bool
}

func NewMockThresholdRepo() *MockThresholdRepo {
	return &MockThresholdRepo{rows: make(map[core.ThresholdKind]*core.AdaptiveThreshold)}
}

func (m *MockThresholdRepo) seed(kind core.ThresholdKind, value, min, max float64) {
	m.rows[kind] = &core.AdaptiveThreshold{
		Kind: kind, CurrentValue: value, MinValue: min, MaxValue: max,
	}
}

func (m *MockThresholdRepo) seedDefaults() {
	m.seed(core.ThresholdDuplicate, 0.60, 0.50, 0.95)
	m.seed(core.ThresholdNearDuplicate, 0.60, 0.40, 0.85)
	m.seed(core.ThresholdCosineWeight, 0.55, 0.30, 0.70)
	m.seed(core.ThresholdJaccardWeight, 0.25, 0.10, 0.40)
	m.seed(core.ThresholdNGramWeight, 0.15, 0.05, 0.30)
	m.seed(core.ThresholdMetadataWeight, 0.05, 0.00, 0.20)
}

func (m *MockThresholdRepo) GetAll(ctx context.Context) ([]core.AdaptiveThreshold, error) {
	if m.getAllFail {
		return nil, errors.New("mock get all failed")
	}
	out := make([]core.AdaptiveThreshold, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (m *MockThresholdRepo) Get(ctx context.Context, kind core.ThresholdKind) (*core.AdaptiveThreshold, error) {
	row, ok := m.rows[kind]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (m *MockThresholdRepo) Update(ctx context.Context, t *core.AdaptiveThreshold) error {
	if m.updateFail {
		return errors.New("mock update failed")
	}
	copied := *t
	m.rows[t.Kind] = &copied
	return nil
}

// MockFeedbackRepo implements persistence.FeedbackRepository for testing
type MockFeedbackRepo struct {
	entries    []*core.FeedbackLog
	shouldFail bool
}

func (m *MockFeedbackRepo) Create(ctx context.Context, f *core.FeedbackLog) error {
	if m.shouldFail {
		return errors.New("mock create failed")
	}
	f.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, f)
	return nil
}

func newTestStore() (*Store, *MockThresholdRepo, *MockFeedbackRepo) {
	repo := NewMockThresholdRepo()
	repo.seedDefaults()
	feedback := &MockFeedbackRepo{}
	return NewStore(repo, feedback), repo, feedback
}

func TestSnapshot_ReadsStore(t *testing.T) {
	store, repo, _ := newTestStore()
	repo.seed(core.ThresholdDuplicate, 0.80, 0.50, 0.95)

	snap := store.Snapshot(context.Background())
	if snap.Duplicate != 0.80 {
		t.Errorf("Expected duplicate 0.80, got %f", snap.Duplicate)
	}
	if snap.CosineWeight != 0.55 || snap.MetadataWeight != 0.05 {
		t.Errorf("Unexpected weights: %+v", snap)
	}
}

func TestSnapshot_FallsBackToDefaults(t *testing.T) {
	store, repo, _ := newTestStore()
	repo.getAllFail = true

	snap := store.Snapshot(context.Background())
	if snap != Defaults() {
		t.Errorf("Expected pure defaults on unreadable store, got %+v", snap)
	}
}

func TestSnapshot_ClampsOrdering(t *testing.T) {
	store, repo, _ := newTestStore()
	repo.seed(core.ThresholdDuplicate, 0.55, 0.50, 0.95)
	repo.seed(core.ThresholdNearDuplicate, 0.70, 0.40, 0.85)

	snap := store.Snapshot(context.Background())
	if snap.NearDuplicate > snap.Duplicate {
		t.Errorf("Snapshot violates near_duplicate <= duplicate: %f > %f",
			snap.NearDuplicate, snap.Duplicate)
	}
	if snap.NearDuplicate != 0.55 {
		t.Errorf("Expected near_duplicate clamped to 0.55, got %f", snap.NearDuplicate)
	}
}

func feedbackFor(from, to core.Status) core.Feedback {
	return core.Feedback{GrievanceID: 1, OriginalStatus: from, CorrectedStatus: to}
}

func TestApplyFeedback_LowersDuplicateThreshold(t *testing.T) {
	store, repo, feedback := newTestStore()
	repo.seed(core.ThresholdDuplicate, 0.80, 0.50, 0.95)

	// Four missed duplicates walk 0.80 down to 0.60 in 0.05 steps.
	for i := 0; i < 4; i++ {
		entry, err := store.ApplyFeedback(context.Background(),
			feedbackFor(core.StatusUnique, core.StatusDuplicate))
		if err != nil {
			t.Fatalf("ApplyFeedback %d failed: %v", i, err)
		}
		if !entry.AppliedToThreshold {
			t.Errorf("Feedback %d should have adjusted the threshold", i)
		}
	}

	row, _ := repo.Get(context.Background(), core.ThresholdDuplicate)
	if math.Abs(row.CurrentValue-0.60) > 1e-9 {
		t.Errorf("Expected duplicate threshold 0.60 after 4 steps, got %f", row.CurrentValue)
	}
	if row.AdjustmentCount != 4 {
		t.Errorf("Expected 4 adjustments, got %d", row.AdjustmentCount)
	}
	if len(feedback.entries) != 4 {
		t.Errorf("Expected 4 feedback rows, got %d", len(feedback.entries))
	}
}

func TestApplyFeedback_RaisesOnFalsePositive(t *testing.T) {
	store, repo, _ := newTestStore()

	if _, err := store.ApplyFeedback(context.Background(),
		feedbackFor(core.StatusDuplicate, core.StatusUnique)); err != nil {
		t.Fatalf("ApplyFeedback failed: %v", err)
	}

	row, _ := repo.Get(context.Background(), core.ThresholdDuplicate)
	if math.Abs(row.CurrentValue-0.65) > 1e-9 {
		t.Errorf("Expected duplicate threshold 0.65, got %f", row.CurrentValue)
	}
}

func TestApplyFeedback_ClampsAtBounds(t *testing.T) {
	store, repo, _ := newTestStore()
	repo.seed(core.ThresholdDuplicate, 0.52, 0.50, 0.95)

	// Each step still counts, but the value converges on the floor.
	for i := 0; i < 3; i++ {
		if _, err := store.ApplyFeedback(context.Background(),
			feedbackFor(core.StatusUnique, core.StatusDuplicate)); err != nil {
			t.Fatalf("ApplyFeedback failed: %v", err)
		}
	}

	row, _ := repo.Get(context.Background(), core.ThresholdDuplicate)
	if row.CurrentValue != 0.50 {
		t.Errorf("Expected threshold pinned at min 0.50, got %f", row.CurrentValue)
	}
}

func TestApplyFeedback_KeepsOrderingAcrossKinds(t *testing.T) {
	store, repo, _ := newTestStore()
	repo.seed(core.ThresholdDuplicate, 0.60, 0.50, 0.95)
	repo.seed(core.ThresholdNearDuplicate, 0.58, 0.40, 0.85)

	// Raising near_duplicate past duplicate clamps to duplicate's value.
	if _, err := store.ApplyFeedback(context.Background(),
		feedbackFor(core.StatusNearDuplicate, core.StatusUnique)); err != nil {
		t.Fatalf("ApplyFeedback failed: %v", err)
	}

	near, _ := repo.Get(context.Background(), core.ThresholdNearDuplicate)
	dup, _ := repo.Get(context.Background(), core.ThresholdDuplicate)
	if near.CurrentValue > dup.CurrentValue {
		t.Errorf("Ordering violated: near=%f dup=%f", near.CurrentValue, dup.CurrentValue)
	}
	if near.CurrentValue != 0.60 {
		t.Errorf("Expected near_duplicate clamped to 0.60, got %f", near.CurrentValue)
	}
}

func TestApplyFeedback_UnknownTransitionOnlyLogs(t *testing.T) {
	store, repo, feedback := newTestStore()

	entry, err := store.ApplyFeedback(context.Background(),
		feedbackFor(core.StatusUnique, core.StatusUnique))
	if err != nil {
		t.Fatalf("ApplyFeedback failed: %v", err)
	}
	if entry.AppliedToThreshold {
		t.Error("Identity transition must not adjust any threshold")
	}
	if len(feedback.entries) != 1 {
		t.Errorf("Feedback row should still be persisted, got %d rows", len(feedback.entries))
	}

	row, _ := repo.Get(context.Background(), core.ThresholdDuplicate)
	if row.CurrentValue != 0.60 || row.AdjustmentCount != 0 {
		t.Errorf("Threshold moved on unknown transition: %+v", row)
	}
}

func TestApplyFeedback_UnseededKindSkipsAdjustment(t *testing.T) {
	repo := NewMockThresholdRepo()
	feedback := &MockFeedbackRepo{}
	store := NewStore(repo, feedback)

	entry, err := store.ApplyFeedback(context.Background(),
		feedbackFor(core.StatusUnique, core.StatusDuplicate))
	if err != nil {
		t.Fatalf("ApplyFeedback failed: %v", err)
	}
	if entry.AppliedToThreshold {
		t.Error("Adjustment against an empty store should be skipped")
	}
	if len(feedback.entries) != 1 {
		t.Errorf("Feedback row should still be persisted, got %d", len(feedback.entries))
	}
}

func TestSet_ClampsToBounds(t *testing.T) {
	store, repo, _ := newTestStore()

	row, err := store.Set(context.Background(), core.ThresholdCosineWeight, 0.99)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if row.CurrentValue != 0.70 {
		t.Errorf("Expected value clamped to max 0.70, got %f", row.CurrentValue)
	}

	stored, _ := repo.Get(context.Background(), core.ThresholdCosineWeight)
	if stored.CurrentValue != 0.70 {
		t.Errorf("Clamped value not persisted: %f", stored.CurrentValue)
	}
}

func TestSet_UnknownKind(t *testing.T) {
	store, _, _ := newTestStore()
	row, err := store.Set(context.Background(), core.ThresholdKind("bogus"), 0.5)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if row != nil {
		t.Errorf("Expected nil row for unknown kind, got %+v", row)
	}
}
