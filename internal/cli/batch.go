package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	batchWorkers   int
	batchOutputDir string
	batchTimeout   time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze every control in the catalog in parallel",
	Long: `Batch analyzes all controls concurrently with a bounded worker pool.

One control's failure never aborts its siblings, and cancelling the batch
(Ctrl-C or timeout) stops scheduling between controls without rolling back
findings already produced. A per-control finding JSON is written to the
output directory.

Example:
  attestor batch --controls controls.yaml --evidence evidence.yaml --assessment fy26
  attestor batch --controls controls.yaml --assessment fy26 --workers 8 --output-dir ./findings`,
	RunE: runBatchAnalysis,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&controlsPath, "controls", "", "control catalog YAML (required)")
	batchCmd.Flags().StringVar(&evidencePath, "evidence", "", "evidence reference YAML")
	batchCmd.Flags().StringVar(&inheritancePath, "inheritance", "", "provider inheritance YAML")
	batchCmd.Flags().StringVar(&assessmentID, "assessment", "", "assessment identifier (required)")
	batchCmd.Flags().BoolVar(&noRetrieval, "no-retrieval", false, "skip vector retrieval, use evidence metadata only")
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 0, "concurrent analyses (default from config)")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "./attestor-findings", "output directory for finding JSON files")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total batch timeout")
	_ = batchCmd.MarkFlagRequired("controls")
	_ = batchCmd.MarkFlagRequired("assessment")
}

func runBatchAnalysis(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	workers := batchWorkers
	if workers <= 0 {
		workers = cfg.Concurrency.AnalysisWorkers
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	setup, err := buildAnalysisSetup(ctx, cfg)
	if err != nil {
		return err
	}
	defer setup.close()

	if err := os.MkdirAll(batchOutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Analyzing %d controls for assessment %s with %d workers\n\n",
		len(setup.controls), assessmentID, workers)

	summary := setup.analyzer.AnalyzeBatch(ctx, setup.controls, setup.evidence, assessmentID, workers)

	needsReview := 0
	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.ControlID, r.Err)
			continue
		}

		path := filepath.Join(batchOutputDir, sanitizeFilename(r.ControlID)+".json")
		out, err := json.MarshalIndent(r.Finding, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: marshal finding: %v\n", r.ControlID, err)
			continue
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: write finding: %v\n", r.ControlID, err)
			continue
		}

		marker := "✓"
		if r.Finding.ReviewState != "" && !r.Finding.Final() {
			marker = "◔"
			needsReview++
		}
		fmt.Fprintf(os.Stderr, "%s %s: %s (confidence %d, %s)\n",
			marker, r.ControlID, r.Finding.Status, r.Finding.Confidence, r.Finding.ReviewState)
	}

	fmt.Fprintf(os.Stderr, "\nBatch complete: %d analyzed, %d failed, %d need review\n",
		summary.Succeeded, summary.Failed, needsReview)
	fmt.Fprintf(os.Stderr, "Findings written to %s\n", batchOutputDir)

	if summary.Failed > 0 {
		return fmt.Errorf("%d control(s) failed", summary.Failed)
	}
	return nil
}

// sanitizeFilename keeps control IDs safe as file names.
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "-",
		"(", "", ")", "",
	)
	s = replacer.Replace(s)
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
