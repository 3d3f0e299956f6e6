// Package dedup implements the hierarchical deduplication engine: an
// intra-PDF pass over page order, then a global pass against the batch so
// far plus the historical corpus, with category and area pre-filters and
// top-K scoring.
package dedup

import (
	"log/slog"
	"sort"
	"strings"

	"grievdedup/internal/core"
	"grievdedup/internal/logger"
	"grievdedup/internal/similarity"
	"grievdedup/internal/threshold"
)

// DefaultTopK is the number of candidates kept in the global pass.
const DefaultTopK = 10

// Item is one batch grievance prepared for deduplication.
type Item struct {
	BatchIndex int // Position in batch input order
	PDFOrdinal int // Which PDF entry of the submission this came from
	PageNumber int
	Tokens     []string
	Embedding  []float32
	Category   string
	Area       string
}

// Candidate is one entry of the comparison pool: a historical grievance or
// an earlier member of the current batch.
type Candidate struct {
	Ref       core.MatchRef
	Tokens    []string
	Embedding []float32
	Category  string
	Area      string
}

// Result is the classification of one item after both passes.
type Result struct {
	LocalStatus core.LocalStatus
	LocalBest   int     // Batch index of the best intra-PDF match, -1 when none
	LocalScore  float64
	Status      core.Status
	Score       float64
	Breakdown   similarity.Breakdown
	Match       *core.MatchRef   // Best global match, nil when unique
	TopMatches  []core.TopMatch  // Top-3 candidates for audit
}

// Engine runs the two dedup passes under a threshold snapshot.
type Engine struct {
	thresholds threshold.Snapshot
	weights    similarity.Weights
	topK       int
	log        *slog.Logger
}

// NewEngine creates an engine for one batch. The snapshot is batch-local;
// feedback written during the run affects only later batches.
func NewEngine(snap threshold.Snapshot, topK int) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{
		thresholds: snap,
		weights:    snap.Weights(),
		topK:       topK,
		log:        logger.Get(),
	}
}

// Run classifies every item against its PDF siblings, the batch so far, and
// the historical pool. Items must be in batch input order; results are
// returned in the same order. The result of item N never depends on any
// item after N.
func (e *Engine) Run(items []Item, historical []Candidate) []Result {
	results := make([]Result, len(items))
	for i := range results {
		results[i].LocalBest = -1
		results[i].LocalStatus = core.LocalUnique
		results[i].Status = core.StatusUnique
	}

	e.localPass(items, results)
	e.globalPass(items, historical, results)
	return results
}

// localPass compares each grievance to earlier grievances of the same PDF,
// in page order.
func (e *Engine) localPass(items []Item, results []Result) {
	groups := make(map[int][]int)
	for i, item := range items {
		groups[item.PDFOrdinal] = append(groups[item.PDFOrdinal], i)
	}

	for _, indices := range groups {
		sort.SliceStable(indices, func(a, b int) bool {
			return items[indices[a]].PageNumber < items[indices[b]].PageNumber
		})

		for pos, idx := range indices {
			best := -1
			bestScore := 0.0
			for _, prevIdx := range indices[:pos] {
				score, _ := similarity.Score(asSimItem(items[idx]), asSimItem(items[prevIdx]), e.weights)
				if score > bestScore {
					best = prevIdx
					bestScore = score
				}
			}
			if best < 0 {
				continue
			}

			results[idx].LocalBest = best
			results[idx].LocalScore = bestScore
			switch {
			case bestScore >= e.thresholds.Duplicate:
				results[idx].LocalStatus = core.LocalDuplicate
			case bestScore >= e.thresholds.NearDuplicate:
				results[idx].LocalStatus = core.LocalNearDuplicate
			}
		}
	}
}

// globalPass walks the batch in input order, comparing each grievance to the
// historical pool plus the batch members already processed.
func (e *Engine) globalPass(items []Item, historical []Candidate, results []Result) {
	processed := make([]Candidate, 0, len(items))

	for i, item := range items {
		// A local duplicate is settled by pass A: it duplicates an earlier
		// page of its own PDF and never reaches the global pool.
		if results[i].LocalStatus == core.LocalDuplicate {
			ref := core.PendingRef(results[i].LocalBest)
			results[i].Status = core.StatusDuplicate
			results[i].Score = results[i].LocalScore
			_, results[i].Breakdown = similarity.Score(
				asSimItem(item), asSimItem(items[results[i].LocalBest]), e.weights)
			results[i].Match = &ref
			processed = append(processed, asCandidate(item, i))
			continue
		}

		pool := make([]Candidate, 0, len(historical)+len(processed))
		pool = append(pool, historical...)
		pool = append(pool, processed...)

		pool = e.filterByCategory(pool, item.Category, i)
		pool = e.filterByArea(pool, item.Area, i)

		top := e.topMatches(item, pool)
		if len(top) > 0 {
			best := top[0]
			results[i].Score = best.score
			results[i].Breakdown = best.breakdown
			switch {
			case best.score >= e.thresholds.Duplicate:
				results[i].Status = core.StatusDuplicate
			case best.score >= e.thresholds.NearDuplicate:
				results[i].Status = core.StatusNearDuplicate
			}
			if results[i].Status != core.StatusUnique {
				ref := best.ref
				results[i].Match = &ref
			}
			for rank, m := range top {
				if rank >= 3 {
					break
				}
				results[i].TopMatches = append(results[i].TopMatches, core.TopMatch{
					Ref:   m.ref.String(),
					Score: m.score,
				})
			}
		}

		processed = append(processed, asCandidate(item, i))
	}
}

type scoredMatch struct {
	ref       core.MatchRef
	score     float64
	breakdown similarity.Breakdown
}

// topMatches scores the item against every pool candidate and keeps the
// best topK by composite score.
func (e *Engine) topMatches(item Item, pool []Candidate) []scoredMatch {
	matches := make([]scoredMatch, 0, len(pool))
	itemSim := asSimItem(item)
	for _, cand := range pool {
		score, breakdown := similarity.Score(itemSim, similarity.Item{
			Tokens:    cand.Tokens,
			Embedding: cand.Embedding,
			Category:  cand.Category,
		}, e.weights)
		matches = append(matches, scoredMatch{ref: cand.Ref, score: score, breakdown: breakdown})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})
	if len(matches) > e.topK {
		matches = matches[:e.topK]
	}
	return matches
}

// filterByCategory keeps candidates whose category is unknown or equal to
// the item's. The filter is skipped when the item's category is unknown or
// when applying it would empty the pool.
func (e *Engine) filterByCategory(pool []Candidate, category string, batchIndex int) []Candidate {
	if category == "" || category == "OTHER" {
		return pool
	}
	filtered := make([]Candidate, 0, len(pool))
	for _, cand := range pool {
		if cand.Category == "" || cand.Category == "OTHER" || cand.Category == category {
			filtered = append(filtered, cand)
		}
	}
	if len(filtered) == 0 {
		e.log.Debug("category filter would empty the pool, skipping",
			"batch_index", batchIndex, "category", category, "pool_size", len(pool))
		return pool
	}
	return filtered
}

// filterByArea keeps candidates with an unknown or case-insensitively equal
// area, skipping the filter when it would empty the pool.
func (e *Engine) filterByArea(pool []Candidate, area string, batchIndex int) []Candidate {
	if area == "" {
		return pool
	}
	filtered := make([]Candidate, 0, len(pool))
	for _, cand := range pool {
		if cand.Area == "" || strings.EqualFold(cand.Area, area) {
			filtered = append(filtered, cand)
		}
	}
	if len(filtered) == 0 {
		e.log.Debug("area filter would empty the pool, skipping",
			"batch_index", batchIndex, "area", area, "pool_size", len(pool))
		return pool
	}
	return filtered
}

func asSimItem(item Item) similarity.Item {
	return similarity.Item{
		Tokens:    item.Tokens,
		Embedding: item.Embedding,
		Category:  item.Category,
	}
}

func asCandidate(item Item, batchIndex int) Candidate {
	return Candidate{
		Ref:       core.PendingRef(batchIndex),
		Tokens:    item.Tokens,
		Embedding: item.Embedding,
		Category:  item.Category,
		Area:      item.Area,
	}
}
