package dedup

import (
	"testing"

	"grievdedup/internal/core"
	"grievdedup/internal/threshold"
)

func axisVec(axis int) []float32 {
	v := make([]float32, 384)
	v[axis] = 1
	return v
}

var complaintTokens = []string{"water", "supply", "disrupt", "sector", "pipeline"}

func batchItem(ordinal, page int, tokens []string, emb []float32, cat, area string) Item {
	return Item{
		PDFOrdinal: ordinal,
		PageNumber: page,
		Tokens:     tokens,
		Embedding:  emb,
		Category:   cat,
		Area:       area,
	}
}

func TestRun_SingleItemIsUnique(t *testing.T) {
	engine := NewEngine(threshold.Defaults(), DefaultTopK)
	results := engine.Run([]Item{
		batchItem(0, 1, complaintTokens, axisVec(0), "WATER", ""),
	}, nil)

	r := results[0]
	if r.Status != core.StatusUnique {
		t.Errorf("Expected UNIQUE, got %s", r.Status)
	}
	if r.Match != nil {
		t.Errorf("Expected nil match, got %v", r.Match)
	}
	if r.LocalStatus != core.LocalUnique || r.LocalBest != -1 {
		t.Errorf("Expected local unique with no best, got %s/%d", r.LocalStatus, r.LocalBest)
	}
	if len(r.TopMatches) != 0 {
		t.Errorf("Expected no top matches, got %v", r.TopMatches)
	}
}

func TestRun_IntraPDFDuplicate(t *testing.T) {
	engine := NewEngine(threshold.Defaults(), DefaultTopK)
	items := []Item{
		batchItem(0, 1, complaintTokens, axisVec(0), "WATER", ""),
		batchItem(0, 2, complaintTokens, axisVec(0), "WATER", ""),
	}
	results := engine.Run(items, nil)

	if results[0].LocalStatus != core.LocalUnique {
		t.Errorf("First page should be locally unique, got %s", results[0].LocalStatus)
	}

	r := results[1]
	if r.LocalStatus != core.LocalDuplicate {
		t.Fatalf("Expected LOCAL_DUPLICATE, got %s", r.LocalStatus)
	}
	if r.LocalBest != 0 {
		t.Errorf("Expected local best 0, got %d", r.LocalBest)
	}
	if r.Status != core.StatusDuplicate {
		t.Errorf("Local duplicate should classify DUPLICATE, got %s", r.Status)
	}
	if r.Match == nil {
		t.Fatal("Expected a match ref")
	}
	if idx, ok := r.Match.Pending(); !ok || idx != 0 {
		t.Errorf("Expected pending ref to batch index 0, got %s", r.Match)
	}
	if r.Score < engine.thresholds.Duplicate {
		t.Errorf("Duplicate score %f below threshold", r.Score)
	}
}

func TestRun_CrossPDFDuplicateUsesPendingRef(t *testing.T) {
	engine := NewEngine(threshold.Defaults(), DefaultTopK)
	items := []Item{
		batchItem(0, 1, complaintTokens, axisVec(0), "WATER", ""),
		batchItem(1, 1, complaintTokens, axisVec(0), "WATER", ""),
	}
	results := engine.Run(items, nil)

	r := results[1]
	// Different PDFs never compare in the local pass.
	if r.LocalStatus != core.LocalUnique {
		t.Errorf("Expected local unique across PDFs, got %s", r.LocalStatus)
	}
	if r.Status != core.StatusDuplicate {
		t.Fatalf("Expected DUPLICATE from the global pass, got %s", r.Status)
	}
	if idx, ok := r.Match.Pending(); !ok || idx != 0 {
		t.Errorf("Expected pending ref to batch index 0, got %s", r.Match)
	}
}

func TestRun_HistoricalDuplicateUsesPersistedRef(t *testing.T) {
	engine := NewEngine(threshold.Defaults(), DefaultTopK)
	historical := []Candidate{{
		Ref:       core.PersistedRef(42),
		Tokens:    complaintTokens,
		Embedding: axisVec(0),
		Category:  "WATER",
	}}
	results := engine.Run([]Item{
		batchItem(0, 1, complaintTokens, axisVec(0), "WATER", ""),
	}, historical)

	r := results[0]
	if r.Status != core.StatusDuplicate {
		t.Fatalf("Expected DUPLICATE, got %s", r.Status)
	}
	id, ok := r.Match.Persisted()
	if !ok || id != 42 {
		t.Errorf("Expected persisted ref 42, got %s", r.Match)
	}
	if len(r.TopMatches) == 0 || r.TopMatches[0].Ref != "grievance_42" {
		t.Errorf("Expected top match grievance_42, got %v", r.TopMatches)
	}
}

func TestRun_CategoryFilterPrefersSameCategory(t *testing.T) {
	engine := NewEngine(threshold.Defaults(), DefaultTopK)
	historical := []Candidate{
		{
			// Identical content but conflicting category; the filter
			// removes it before scoring.
			Ref:       core.PersistedRef(1),
			Tokens:    complaintTokens,
			Embedding: axisVec(0),
			Category:  "GARBAGE",
		},
		{
			Ref:       core.PersistedRef(2),
			Tokens:    []string{"water", "supply", "blocked", "colony"},
			Embedding: axisVec(0),
			Category:  "WATER",
		},
	}
	results := engine.Run([]Item{
		batchItem(0, 1, complaintTokens, axisVec(0), "WATER", ""),
	}, historical)

	r := results[0]
	if r.Match == nil {
		t.Fatal("Expected a match")
	}
	if id, _ := r.Match.Persisted(); id != 2 {
		t.Errorf("Expected match against same-category candidate 2, got %s", r.Match)
	}
}

func TestRun_CategoryFilterSkippedWhenPoolWouldEmpty(t *testing.T) {
	engine := NewEngine(threshold.Defaults(), DefaultTopK)
	historical := []Candidate{{
		Ref:       core.PersistedRef(7),
		Tokens:    complaintTokens,
		Embedding: axisVec(0),
		Category:  "GARBAGE",
	}}
	results := engine.Run([]Item{
		batchItem(0, 1, complaintTokens, axisVec(0), "WATER", ""),
	}, historical)

	if len(results[0].TopMatches) == 0 {
		t.Error("Filter emptying the pool should fall back to the unfiltered pool")
	}
}

func TestRun_AreaFilter(t *testing.T) {
	engine := NewEngine(threshold.Defaults(), DefaultTopK)
	historical := []Candidate{
		{
			Ref:       core.PersistedRef(1),
			Tokens:    complaintTokens,
			Embedding: axisVec(0),
			Area:      "ward 7",
		},
		{
			Ref:       core.PersistedRef(2),
			Tokens:    []string{"water", "supply", "blocked", "colony"},
			Embedding: axisVec(0),
			Area:      "Sector 15",
		},
	}
	results := engine.Run([]Item{
		batchItem(0, 1, complaintTokens, axisVec(0), "", "sector 15"),
	}, historical)

	r := results[0]
	if r.Match == nil {
		t.Fatal("Expected a match")
	}
	// Area comparison is case-insensitive; the ward 7 candidate is filtered
	// despite scoring higher.
	if id, _ := r.Match.Persisted(); id != 2 {
		t.Errorf("Expected match against sector 15 candidate, got %s", r.Match)
	}
}

func TestRun_TopKLimitsAuditList(t *testing.T) {
	engine := NewEngine(threshold.Defaults(), 2)
	var historical []Candidate
	for i := int64(1); i <= 5; i++ {
		historical = append(historical, Candidate{
			Ref:       core.PersistedRef(i),
			Tokens:    complaintTokens,
			Embedding: axisVec(0),
		})
	}
	results := engine.Run([]Item{
		batchItem(0, 1, complaintTokens, axisVec(0), "", ""),
	}, historical)

	if len(results[0].TopMatches) != 2 {
		t.Errorf("Expected top matches capped at topK=2, got %d", len(results[0].TopMatches))
	}
}

func TestRun_TopMatchesCapAtThree(t *testing.T) {
	engine := NewEngine(threshold.Defaults(), DefaultTopK)
	var historical []Candidate
	for i := int64(1); i <= 6; i++ {
		historical = append(historical, Candidate{
			Ref:       core.PersistedRef(i),
			Tokens:    complaintTokens,
			Embedding: axisVec(0),
		})
	}
	results := engine.Run([]Item{
		batchItem(0, 1, complaintTokens, axisVec(0), "", ""),
	}, historical)

	if len(results[0].TopMatches) != 3 {
		t.Errorf("Expected audit list capped at 3, got %d", len(results[0].TopMatches))
	}
}

func TestRun_OrthogonalItemsStayUnique(t *testing.T) {
	engine := NewEngine(threshold.Defaults(), DefaultTopK)
	items := []Item{
		batchItem(0, 1, []string{"water", "supply", "disrupt"}, axisVec(0), "WATER", ""),
		batchItem(0, 2, []string{"garbage", "collection", "missed"}, axisVec(1), "GARBAGE", ""),
	}
	results := engine.Run(items, nil)

	for i, r := range results {
		if r.Status != core.StatusUnique {
			t.Errorf("Item %d: expected UNIQUE, got %s with score %f", i, r.Status, r.Score)
		}
	}
}
