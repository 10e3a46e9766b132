// Package pipeline orchestrates document ingestion: extracted text is
// chunked, embedded, and written to the vector index, advancing the
// document's status at each stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/veridia/attestor/internal/chunk"
	"github.com/veridia/attestor/internal/embed"
	"github.com/veridia/attestor/internal/index"
	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/worker"
)

// ErrExtractionFailed marks documents whose text could not be obtained. The
// document is marked failed and never reaches chunking.
var ErrExtractionFailed = errors.New("extraction failed")

// Pipeline ingests documents. Documents are independent: one failure never
// aborts sibling ingestions, except a dimension mismatch, which is a
// configuration error and stops the whole batch.
type Pipeline struct {
	source   Source
	chunker  *chunk.Chunker
	embedder embed.Provider
	idx      index.Index
	verbose  bool
}

// New wires an ingestion pipeline.
func New(source Source, chunker *chunk.Chunker, embedder embed.Provider, idx index.Index, verbose bool) *Pipeline {
	return &Pipeline{
		source:   source,
		chunker:  chunker,
		embedder: embedder,
		idx:      idx,
		verbose:  verbose,
	}
}

// IngestResult is the per-document outcome.
type IngestResult struct {
	Document model.Document
	Chunks   int
	Err      error
}

// GetError implements worker.Result.
func (r *IngestResult) GetError() error { return r.Err }

// IngestDocument runs the sequential stages for one document: extract,
// chunk, embed, index. The returned document carries the final status; on
// failure its Error field records the cause.
func (p *Pipeline) IngestDocument(ctx context.Context, doc model.Document, ref string) *IngestResult {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	doc.Status = model.StatusUploaded

	text, err := p.source.ExtractedText(ctx, ref)
	if err != nil {
		return p.fail(doc, 0, fmt.Errorf("%w: %v", ErrExtractionFailed, err))
	}
	doc.Status = model.StatusExtracted
	p.logf("document %s: extracted %d characters\n", doc.ID, len(text))

	chunks := p.chunker.Split(doc.ID, text)
	doc.Status = model.StatusChunked
	p.logf("document %s: %d chunks\n", doc.ID, len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return p.fail(doc, len(chunks), fmt.Errorf("embed document %s: %w", doc.ID, err))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	doc.Status = model.StatusEmbedded

	for _, c := range chunks {
		entry := index.Entry{
			ChunkID:      c.ID,
			DocumentID:   doc.ID,
			AssessmentID: doc.AssessmentID,
			ControlIDs:   c.ControlIDs,
			Method:       c.Method,
			Text:         c.Text,
			Vector:       c.Embedding,
		}
		if doc.ControlScope != "" {
			entry.ControlIDs = appendScope(entry.ControlIDs, doc.ControlScope)
		}
		if err := p.idx.Upsert(ctx, entry); err != nil {
			return p.fail(doc, len(chunks), fmt.Errorf("index chunk %s: %w", c.ID, err))
		}
	}

	p.logf("document %s: indexed\n", doc.ID)
	return &IngestResult{Document: doc, Chunks: len(chunks)}
}

func (p *Pipeline) fail(doc model.Document, chunks int, err error) *IngestResult {
	doc.Status = model.StatusFailed
	doc.Error = err.Error()
	p.logf("document %s: %v\n", doc.ID, err)
	return &IngestResult{Document: doc, Chunks: chunks, Err: err}
}

// BatchSummary reports a multi-document ingestion.
type BatchSummary struct {
	Results   []IngestResult
	Succeeded int
	Failed    int
}

type ingestJob struct {
	pipeline *Pipeline
	doc      model.Document
	ref      string
	fatal    func(error)
}

func (j *ingestJob) Execute(ctx context.Context) worker.Result {
	result := j.pipeline.IngestDocument(ctx, j.doc, j.ref)
	if errors.Is(result.Err, index.ErrDimensionMismatch) {
		// Misconfigured dimensionality would corrupt the index; stop
		// scheduling further documents instead of failing them one by one.
		j.fatal(result.Err)
	}
	return result
}

// IngestBatch ingests documents concurrently on a bounded worker pool. refs
// maps one-to-one onto docs. Per-document failures land in the summary; a
// dimension mismatch additionally aborts the batch and is returned as an
// error.
func (p *Pipeline) IngestBatch(ctx context.Context, docs []model.Document, refs []string, workers int) (*BatchSummary, error) {
	if len(docs) != len(refs) {
		return nil, fmt.Errorf("got %d documents but %d text references", len(docs), len(refs))
	}

	batchCtx, abort := context.WithCancel(ctx)
	defer abort()

	var mu sync.Mutex
	var fatalErr error
	fatal := func(err error) {
		mu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		mu.Unlock()
		abort()
	}

	pool := worker.NewPool(batchCtx, workers)
	pool.Start()

	for i := range docs {
		pool.Submit(&ingestJob{pipeline: p, doc: docs[i], ref: refs[i], fatal: fatal})
	}

	summary := &BatchSummary{}
	for _, result := range pool.Wait() {
		ir := result.(*IngestResult)
		summary.Results = append(summary.Results, *ir)
		if ir.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Document.ID < summary.Results[j].Document.ID
	})

	mu.Lock()
	defer mu.Unlock()
	return summary, fatalErr
}

func appendScope(ids []string, scope string) []string {
	for _, id := range ids {
		if id == scope {
			return ids
		}
	}
	return append(ids, scope)
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
