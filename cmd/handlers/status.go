package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grievdedup/internal/logger"
)

// NewStatusCmd creates the batch status command.
func NewStatusCmd() *cobra.Command {
	var showGrievances bool

	cmd := &cobra.Command{
		Use:   "status <batch-id>",
		Short: "Show the state and counters of a processing batch",
		Long: `Show a batch's state machine position (pending, processing, completed,
failed) along with its grievance counters and any duplicate clusters.

Examples:
  grievdedup status 4f1c2a3e-...
  grievdedup status 4f1c2a3e-... --grievances`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runStatus(cmd, args[0], showGrievances); err != nil {
				logger.Error("Failed to get batch status", err, "batch_id", args[0])
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showGrievances, "grievances", false, "List every grievance with its classification")

	return cmd
}

func runStatus(cmd *cobra.Command, batchID string, showGrievances bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	batch, err := a.db.Batches().Get(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load batch: %w", err)
	}

	fmt.Printf("Batch ID:        %s\n", batch.ID)
	printBatch(batch)

	clusterList, err := a.db.Clusters().ListByBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load clusters: %w", err)
	}
	if len(clusterList) > 0 {
		fmt.Printf("\nClusters (%d):\n", len(clusterList))
		for _, c := range clusterList {
			fmt.Printf("  %-6d primary=%d  members=%d  type=%s  avg=%.3f\n",
				c.ID, c.PrimaryGrievanceID, c.MemberCount, c.ClusterType, c.AvgSimilarityScore)
		}
	}

	if !showGrievances {
		return nil
	}

	grievances, err := a.db.Grievances().ListByBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load grievances: %w", err)
	}
	fmt.Printf("\nGrievances (%d):\n", len(grievances))
	for _, g := range grievances {
		match := "-"
		if g.MatchedID != nil {
			match = fmt.Sprintf("grievance_%d", *g.MatchedID)
		}
		fmt.Printf("  %-6d %-15s score=%.3f match=%s category=%s\n",
			g.ID, g.Status, g.SimilarityScore, match, g.Category)
	}
	return nil
}
