package handlers

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"grievdedup/internal/core"
	"grievdedup/internal/logger"
)

// NewThresholdsCmd creates the threshold inspection and override commands.
func NewThresholdsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thresholds",
		Short: "Inspect and override the adaptive thresholds",
		Long: `Inspect the adaptive threshold store or set a value directly.

Kinds: duplicate, near_duplicate, cosine_weight, jaccard_weight,
ngram_weight, metadata_weight.

Examples:
  grievdedup thresholds
  grievdedup thresholds set duplicate 0.72`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runThresholdsList(cmd); err != nil {
				logger.Error("Failed to list thresholds", err)
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.AddCommand(newThresholdsSetCmd())

	return cmd
}

func newThresholdsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <kind> <value>",
		Short: "Set a threshold to an explicit value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			if err := runThresholdsSet(cmd, core.ThresholdKind(args[0]), value); err != nil {
				logger.Error("Failed to set threshold", err, "kind", args[0])
				os.Exit(1)
			}
			return nil
		},
	}
}

func runThresholdsList(cmd *cobra.Command) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	thresholds, err := a.thresholds.List(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%-16s %-8s %-8s %-8s %s\n", "KIND", "VALUE", "MIN", "MAX", "ADJUSTMENTS")
	for _, t := range thresholds {
		fmt.Printf("%-16s %-8.3f %-8.2f %-8.2f %d\n",
			t.Kind, t.CurrentValue, t.MinValue, t.MaxValue, t.AdjustmentCount)
	}
	return nil
}

func runThresholdsSet(cmd *cobra.Command, kind core.ThresholdKind, value float64) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.thresholds.Set(cmd.Context(), kind, value)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("unknown threshold kind %q", kind)
	}
	fmt.Printf("%s = %.3f (bounds %.2f..%.2f)\n", t.Kind, t.CurrentValue, t.MinValue, t.MaxValue)
	return nil
}
