package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/veridia/attestor/internal/chunk"
	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/pipeline"
)

var (
	ingestAssessment   string
	ingestControlScope string
	ingestWorkers      int
	ingestTimeout      time.Duration
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest extracted document text into the vector index",
	Long: `Ingest chunks extracted document text, embeds each chunk, and writes
the vectors plus metadata (detected control identifiers, assessment-method
tags) to the configured vector index.

Documents are processed concurrently; one document's failure never aborts
the others. A vector dimensionality mismatch stops the whole batch because
it indicates a deployment misconfiguration.

Example:
  attestor ingest policies/*.txt --assessment fy26
  attestor ingest scan-report.txt --assessment fy26 --control-scope SC-7`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestAssessment, "assessment", "", "assessment identifier to tag chunks with")
	ingestCmd.Flags().StringVar(&ingestControlScope, "control-scope", "", "control identifier to scope all documents to")
	ingestCmd.Flags().IntVar(&ingestWorkers, "workers", 0, "concurrent documents (default from config)")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 10*time.Minute, "total ingestion timeout")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	workers := ingestWorkers
	if workers <= 0 {
		workers = cfg.Concurrency.IngestWorkers
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	idx, closeIndex, err := newIndex(ctx, cfg, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer closeIndex()

	p := pipeline.New(pipeline.NewFileSource(""), chunk.New(cfg.Chunker), embedder, idx, verbose)

	docs := make([]model.Document, len(args))
	for i, path := range args {
		docs[i] = model.Document{
			ID:           uuid.NewString(),
			Title:        filepath.Base(path),
			AssessmentID: ingestAssessment,
			ControlScope: ingestControlScope,
		}
	}

	summary, err := p.IngestBatch(ctx, docs, args, workers)
	if err != nil {
		return fmt.Errorf("ingest aborted: %w", err)
	}

	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Document.Title, r.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d chunks indexed\n", r.Document.Title, r.Chunks)
	}
	fmt.Fprintf(os.Stderr, "\nIngested %d of %d documents (%d failed)\n",
		summary.Succeeded, len(summary.Results), summary.Failed)

	if summary.Failed > 0 {
		return fmt.Errorf("%d document(s) failed", summary.Failed)
	}
	return nil
}
