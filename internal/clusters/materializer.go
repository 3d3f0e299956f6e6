// Package clusters persists duplicate clusters after a batch run: grievances
// sharing a matched target become one cluster headed by that target.
package clusters

import (
	"context"
	"log/slog"
	"sort"

	"grievdedup/internal/core"
	"grievdedup/internal/logger"
	"grievdedup/internal/persistence"
)

// Materializer writes cluster and membership rows for one batch.
type Materializer struct {
	repo persistence.ClusterRepository
	log  *slog.Logger
}

// NewMaterializer creates a materializer over the cluster repository.
func NewMaterializer(repo persistence.ClusterRepository) *Materializer {
	return &Materializer{repo: repo, log: logger.Get()}
}

// Materialize groups the batch's persisted grievances by their matched
// target and writes one cluster per group. Only real, persisted grievance
// ids can head a cluster; grievances whose match never resolved carry a nil
// MatchedID and are skipped. A failure on one cluster is logged and skipped;
// it never aborts the batch. Returns the number of clusters written.
//
// Groups whose members all entered via the density-clustering upgrade are
// typed CONTEXTUAL; otherwise the cluster carries the strongest member
// status.
func (m *Materializer) Materialize(ctx context.Context, batchID string, grievances []core.Grievance, upgraded map[int64]bool) int {
	groups := make(map[int64][]core.Grievance)
	for _, g := range grievances {
		if g.MatchedID == nil {
			continue
		}
		primary := *g.MatchedID
		if primary == g.ID {
			// A self-reference is invalid; never cluster it.
			m.log.Warn("skipping self-referencing match", "grievance_id", g.ID)
			continue
		}
		groups[primary] = append(groups[primary], g)
	}

	primaries := make([]int64, 0, len(groups))
	for primary := range groups {
		primaries = append(primaries, primary)
	}
	sort.Slice(primaries, func(i, j int) bool { return primaries[i] < primaries[j] })

	created := 0
	for _, primary := range primaries {
		members := groups[primary]
		if len(members) == 0 {
			continue
		}
		if err := m.writeCluster(ctx, batchID, primary, members, upgraded); err != nil {
			m.log.Error("failed to materialize cluster",
				"batch_id", batchID, "primary_grievance_id", primary, "error", err.Error())
			continue
		}
		created++
	}
	return created
}

func (m *Materializer) writeCluster(ctx context.Context, batchID string, primary int64, members []core.Grievance, upgraded map[int64]bool) error {
	var sum float64
	for _, g := range members {
		sum += g.SimilarityScore
	}

	cluster := &core.DuplicateCluster{
		BatchID:            batchID,
		ClusterType:        clusterType(members, upgraded),
		PrimaryGrievanceID: primary,
		MemberCount:        len(members),
		AvgSimilarityScore: sum / float64(len(members)),
	}
	if err := m.repo.CreateCluster(ctx, cluster); err != nil {
		return err
	}

	for _, g := range members {
		member := &core.ClusterMember{
			ClusterID:       cluster.ID,
			GrievanceID:     g.ID,
			SimilarityScore: g.SimilarityScore,
		}
		if err := m.repo.AddMember(ctx, member); err != nil {
			// One bad member should not lose the rest of the cluster.
			m.log.Error("failed to insert cluster member",
				"cluster_id", cluster.ID, "grievance_id", g.ID, "error", err.Error())
		}
	}
	return nil
}

func clusterType(members []core.Grievance, upgraded map[int64]bool) core.ClusterType {
	allUpgraded := len(upgraded) > 0
	for _, g := range members {
		if !upgraded[g.ID] {
			allUpgraded = false
		}
		if g.Status == core.StatusDuplicate {
			return core.ClusterDuplicate
		}
	}
	if allUpgraded {
		return core.ClusterContextual
	}
	return core.ClusterNearDuplicate
}
