package handlers

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grievdedup/internal/core"
	"grievdedup/internal/logger"
)

// NewProcessCmd creates the command that runs a batch through the pipeline.
func NewProcessCmd() *cobra.Command {
	var (
		userID int64
		text   string
		area   string
	)

	cmd := &cobra.Command{
		Use:   "process [batch-file]",
		Short: "Run a batch of grievances through the dedup pipeline",
		Long: `Process a batch submission and classify every grievance as UNIQUE,
NEAR_DUPLICATE or DUPLICATE.

The batch file is JSON in the submission format:

  {
    "user_id": 1,
    "pdfs": [
      {
        "pdf_id": 42,
        "filename": "ward-12-complaints.pdf",
        "area": "ward 12",
        "grievances": [
          {"page_number": 1, "text": "..."}
        ]
      }
    ]
  }

A single grievance can be submitted directly with --text instead of a file.

Examples:
  grievdedup process batch.json
  grievdedup process --text "Water supply disrupted in sector 15" --area "sector 15"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" && len(args) == 0 {
				return fmt.Errorf("provide a batch file or --text")
			}
			if text != "" && len(args) > 0 {
				return fmt.Errorf("--text and a batch file are mutually exclusive")
			}

			var file string
			if len(args) == 1 {
				file = args[0]
			}
			if err := runProcess(cmd, file, userID, text, area); err != nil {
				logger.Error("Batch processing failed", err)
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "Submitting user id")
	cmd.Flags().StringVar(&text, "text", "", "Submit a single grievance text instead of a batch file")
	cmd.Flags().StringVar(&area, "area", "", "Area hint for a --text submission")

	return cmd
}

func runProcess(cmd *cobra.Command, file string, userID int64, text, area string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	submit := core.BatchSubmit{UserID: userID}
	if text != "" {
		submit.PDFs = []core.PDFEntry{{
			Area:       area,
			Grievances: []core.PageText{{PageNumber: 1, Text: text}},
		}}
	} else {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read batch file: %w", err)
		}
		if err := json.Unmarshal(data, &submit); err != nil {
			return fmt.Errorf("failed to parse batch file: %w", err)
		}
		if userID != 0 {
			submit.UserID = userID
		}
	}

	ctx := cmd.Context()
	embedder := a.embedClient()
	if !embedder.Healthy(ctx) {
		if a.cfg.Embedding.FallbackURL == "" {
			return fmt.Errorf("embedding endpoint %s is unreachable and no fallback is configured", a.cfg.Embedding.Endpoint)
		}
		logger.Warn("Custom embedding endpoint unreachable, relying on fallback",
			"endpoint", a.cfg.Embedding.Endpoint)
	}
	batchID, err := a.orchestrator(embedder).ProcessBatch(ctx, submit)
	if batchID != "" {
		fmt.Printf("Batch ID: %s\n", batchID)
	}
	if err != nil {
		return err
	}

	batch, err := a.db.Batches().Get(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load batch result: %w", err)
	}
	printBatch(batch)
	return nil
}

func printBatch(b *core.ProcessingBatch) {
	fmt.Printf("Status:          %s\n", b.State)
	fmt.Printf("PDFs:            %d/%d\n", b.ProcessedPDFs, b.TotalPDFs)
	fmt.Printf("Grievances:      %d\n", b.TotalGrievances)
	fmt.Printf("  Unique:         %d\n", b.UniqueCount)
	fmt.Printf("  Near-duplicate: %d\n", b.NearDuplicateCount)
	fmt.Printf("  Duplicate:      %d\n", b.DuplicateCount)
	if b.ErrorMessage != "" {
		fmt.Printf("Error:           %s\n", b.ErrorMessage)
	}
}
