package core

import "fmt"

// MatchRef identifies the grievance a dedup match points at. A match found
// against an earlier grievance in the same batch has no database id yet, so
// it stays pending (keyed by batch index) until that sibling is persisted.
// Cluster materialization only accepts persisted refs.
type MatchRef struct {
	persisted  bool
	id         int64
	batchIndex int
}

// PersistedRef returns a MatchRef pointing at a stored grievance id.
func PersistedRef(id int64) MatchRef {
	return MatchRef{persisted: true, id: id}
}

// PendingRef returns a MatchRef pointing at position batchIndex of the
// current batch.
func PendingRef(batchIndex int) MatchRef {
	return MatchRef{batchIndex: batchIndex}
}

// Persisted reports the stored grievance id, if this ref has one.
func (r MatchRef) Persisted() (int64, bool) {
	if !r.persisted {
		return 0, false
	}
	return r.id, true
}

// Pending reports the batch index, if this ref is still in-batch.
func (r MatchRef) Pending() (int, bool) {
	if r.persisted {
		return 0, false
	}
	return r.batchIndex, true
}

func (r MatchRef) String() string {
	if r.persisted {
		return fmt.Sprintf("grievance_%d", r.id)
	}
	return fmt.Sprintf("batch_%d", r.batchIndex)
}
