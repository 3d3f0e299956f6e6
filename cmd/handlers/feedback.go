package handlers

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"grievdedup/internal/core"
	"grievdedup/internal/logger"
)

// NewFeedbackCmd creates the command that records a reviewer correction and
// feeds it into the adaptive threshold store.
func NewFeedbackCmd() *cobra.Command {
	var (
		grievanceID int64
		matchedID   int64
		original    string
		corrected   string
		score       float64
		notes       string
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record a reviewer correction for a classified grievance",
		Long: `Record that a reviewer corrected a grievance's classification. Every
correction is logged; known original/corrected transitions also nudge the
matching threshold by the learning rate.

Statuses are UNIQUE, NEAR_DUPLICATE and DUPLICATE.

Example:
  grievdedup feedback --grievance 812 --original DUPLICATE --corrected UNIQUE --score 0.71`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fb := core.Feedback{
				GrievanceID:     grievanceID,
				OriginalStatus:  core.Status(strings.ToUpper(original)),
				CorrectedStatus: core.Status(strings.ToUpper(corrected)),
				Notes:           notes,
			}
			if matchedID != 0 {
				fb.MatchedGrievanceID = &matchedID
			}
			if cmd.Flags().Changed("score") {
				fb.OriginalScore = &score
			}
			if err := runFeedback(cmd, fb); err != nil {
				logger.Error("Failed to record feedback", err, "grievance_id", grievanceID)
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&grievanceID, "grievance", 0, "Grievance id being corrected")
	cmd.Flags().Int64Var(&matchedID, "matched", 0, "Grievance id it was matched against, if any")
	cmd.Flags().StringVar(&original, "original", "", "Status the system assigned")
	cmd.Flags().StringVar(&corrected, "corrected", "", "Status the reviewer assigned")
	cmd.Flags().Float64Var(&score, "score", 0, "Similarity score at classification time")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form reviewer notes")
	_ = cmd.MarkFlagRequired("grievance")
	_ = cmd.MarkFlagRequired("original")
	_ = cmd.MarkFlagRequired("corrected")

	return cmd
}

func runFeedback(cmd *cobra.Command, fb core.Feedback) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := a.thresholds.ApplyFeedback(cmd.Context(), fb)
	if err != nil {
		return err
	}

	fmt.Printf("Feedback recorded for grievance %d (%s -> %s)\n",
		entry.GrievanceID, entry.OriginalStatus, entry.CorrectedStatus)
	if entry.AppliedToThreshold {
		fmt.Println("Threshold adjusted.")
	} else {
		fmt.Println("No threshold adjustment for this transition.")
	}
	return nil
}
