// Package analyze implements the control analyzer: it fuses the control
// requirement, linked evidence metadata, retrieved document context, and
// provider inheritance into a structured finding with a confidence score.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/veridia/attestor/internal/gate"
	"github.com/veridia/attestor/internal/inherit"
	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/reason"
	"github.com/veridia/attestor/internal/retrieve"
	"github.com/veridia/attestor/internal/store/finding"
)

// ErrAnalysisInFlight is returned when a second analysis is requested for a
// control+assessment pair that is already being analyzed. Requests are
// rejected rather than queued so callers never produce duplicate findings.
var ErrAnalysisInFlight = errors.New("analysis already in flight for this control and assessment")

// Completer is the reasoning client the analyzer calls. *reason.Invoker
// satisfies it; tests substitute fakes.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req reason.Request) (*reason.Response, error)
}

// Retriever fetches document context for a query. *retrieve.Engine satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, queryText string, opts retrieve.Options) ([]retrieve.Result, error)
}

// Request describes one control analysis.
type Request struct {
	Control          model.ControlRequirement
	Evidence         []model.EvidenceRef
	AssessmentID     string
	IncludeRetrieval bool
}

// Analyzer produces findings. Safe for concurrent use across distinct
// control+assessment pairs; concurrent analysis of the same pair is rejected.
type Analyzer struct {
	retriever  Retriever
	resolver   *inherit.Resolver
	reasoner   Completer
	reviewGate *gate.Gate
	findings   finding.Store

	inheritConfidence int
	verbose           bool

	mu       sync.Mutex
	inFlight map[string]bool
}

// New wires an analyzer. reasoner may be nil, which forces the heuristic
// path for every non-inherited control. retriever may be nil when no index
// is available.
func New(retriever Retriever, resolver *inherit.Resolver, reasoner Completer, reviewGate *gate.Gate, findings finding.Store, cfg model.InheritanceConfig, verbose bool) *Analyzer {
	inheritConfidence := cfg.InheritConfidence
	if inheritConfidence <= 0 {
		inheritConfidence = model.DefaultConfig().Inheritance.InheritConfidence
	}
	return &Analyzer{
		retriever:         retriever,
		resolver:          resolver,
		reasoner:          reasoner,
		reviewGate:        reviewGate,
		findings:          findings,
		inheritConfidence: inheritConfidence,
		verbose:           verbose,
		inFlight:          make(map[string]bool),
	}
}

// Analyze runs the full determination flow for one control and persists the
// resulting finding as a new version.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*model.Finding, error) {
	key := req.Control.ID + "|" + req.AssessmentID
	if err := a.acquire(key); err != nil {
		return nil, err
	}
	defer a.release(key)

	f, err := a.determine(ctx, req)
	if err != nil {
		return nil, err
	}

	f.ControlID = req.Control.ID
	f.AssessmentID = req.AssessmentID
	f.ReviewState = model.ReviewPending
	f.CreatedAt = time.Now().UTC()

	a.reviewGate.Admit(f)

	if a.findings != nil {
		if err := a.findings.Save(ctx, f); err != nil {
			return nil, fmt.Errorf("persist finding for %s: %w", req.Control.ID, err)
		}
	}
	return f, nil
}

func (a *Analyzer) determine(ctx context.Context, req Request) (*model.Finding, error) {
	// Fully inherited controls use the provider's pre-approved narrative;
	// no retrieval, no reasoning call.
	if a.resolver != nil {
		if rec := a.resolver.Inherited(req.Control.ID); rec != nil {
			a.logf("control %s: inherited from %s, skipping reasoning\n", req.Control.ID, rec.Provider)
			return &model.Finding{
				Status:     model.StatusMet,
				Confidence: a.inheritConfidence,
				Narrative:  rec.Narrative,
				Inherited:  true,
			}, nil
		}
	}

	if len(req.Evidence) == 0 {
		a.logf("control %s: no linked evidence\n", req.Control.ID)
		return zeroEvidenceFinding(req.Control), nil
	}

	var excerpts []retrieve.Result
	if req.IncludeRetrieval && a.retriever != nil {
		results, err := a.retriever.Retrieve(ctx, req.Control.QueryText(), retrieve.Options{
			ControlID:    req.Control.ID,
			AssessmentID: req.AssessmentID,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			// Retrieval trouble degrades the analysis, it does not stop it:
			// the reasoning request proceeds on evidence metadata alone.
			a.logf("control %s: retrieval failed, proceeding without context: %v\n", req.Control.ID, err)
		}
		if err == nil && len(results) == 0 {
			a.logf("control %s: retrieval returned no qualifying context\n", req.Control.ID)
		}
		excerpts = results
	}

	if a.reasoner == nil {
		return heuristicFinding(req.Control, req.Evidence), nil
	}

	var sharedNotes []string
	if a.resolver != nil {
		sharedNotes = a.resolver.SharedNotes(req.Control.ID)
	}
	prompt := buildPrompt(req.Control, req.Evidence, excerpts, sharedNotes)

	f, err := a.reasonOnce(ctx, prompt, req.Evidence)
	if errors.Is(err, reason.ErrMalformedResponse) {
		a.logf("control %s: malformed response, retrying with format reminder\n", req.Control.ID)
		f, err = a.reasonOnce(ctx, prompt+formatReminder, req.Evidence)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		a.logf("control %s: reasoning failed, using heuristic fallback: %v\n", req.Control.ID, err)
		return heuristicFinding(req.Control, req.Evidence), nil
	}
	return f, nil
}

func (a *Analyzer) reasonOnce(ctx context.Context, prompt string, evidence []model.EvidenceRef) (*model.Finding, error) {
	resp, err := a.reasoner.Complete(ctx, reason.Request{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, err
	}

	f, err := parseResponse(resp.Text, evidence)
	if err != nil {
		return nil, err
	}
	f.ModelUsed = resp.Model
	if f.ModelUsed == "" {
		f.ModelUsed = a.reasoner.Name()
	}
	return f, nil
}

// zeroEvidenceFinding defaults toward Not Met when nothing is linked to the
// control; confidence stays low because absence of linked evidence is weaker
// than evidence of absence.
func zeroEvidenceFinding(control model.ControlRequirement) *model.Finding {
	return &model.Finding{
		Status:     model.StatusNotMet,
		Confidence: 25,
		Narrative: fmt.Sprintf(
			"No evidence is linked to control %s. Determined Not Met by default; link evidence and re-analyze.",
			control.ID),
		Gaps:      []string{"No evidence items are linked to this control."},
		ModelUsed: model.FallbackModel,
	}
}

func (a *Analyzer) acquire(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight[key] {
		return ErrAnalysisInFlight
	}
	a.inFlight[key] = true
	return nil
}

func (a *Analyzer) release(key string) {
	a.mu.Lock()
	delete(a.inFlight, key)
	a.mu.Unlock()
}

func (a *Analyzer) logf(format string, args ...any) {
	if a.verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
