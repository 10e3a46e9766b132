package analyze

import (
	"context"
	"sort"

	"github.com/veridia/attestor/internal/catalog"
	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/worker"
)

// BatchResult is the per-control outcome of a batch run.
type BatchResult struct {
	ControlID string
	Finding   *model.Finding
	Err       error
}

// GetError implements worker.Result.
func (r *BatchResult) GetError() error { return r.Err }

// BatchSummary reports a batch run. One control's failure never aborts its
// siblings; cancellation stops scheduling between controls but findings
// already produced stand.
type BatchSummary struct {
	Results   []BatchResult
	Succeeded int
	Failed    int
}

type analysisJob struct {
	analyzer *Analyzer
	req      Request
}

func (j *analysisJob) Execute(ctx context.Context) worker.Result {
	f, err := j.analyzer.Analyze(ctx, j.req)
	return &BatchResult{ControlID: j.req.Control.ID, Finding: f, Err: err}
}

// AnalyzeBatch analyzes every control concurrently on a bounded worker pool,
// pairing each control with its linked evidence from the catalog.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, controls []model.ControlRequirement, evidence []model.EvidenceRef, assessmentID string, workers int) *BatchSummary {
	pool := worker.NewPool(ctx, workers)
	pool.Start()

	for _, control := range controls {
		pool.Submit(&analysisJob{
			analyzer: a,
			req: Request{
				Control:          control,
				Evidence:         catalog.EvidenceForControl(evidence, control.ID),
				AssessmentID:     assessmentID,
				IncludeRetrieval: true,
			},
		})
	}

	summary := &BatchSummary{}
	for _, result := range pool.Wait() {
		br := result.(*BatchResult)
		summary.Results = append(summary.Results, *br)
		if br.Err != nil {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}
	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].ControlID < summary.Results[j].ControlID
	})
	return summary
}
