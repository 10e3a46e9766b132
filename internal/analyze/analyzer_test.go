package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/veridia/attestor/internal/gate"
	"github.com/veridia/attestor/internal/inherit"
	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/reason"
	"github.com/veridia/attestor/internal/retrieve"
	"github.com/veridia/attestor/internal/store/finding"
)

type scriptedCompleter struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	prompts []string
}

func (c *scriptedCompleter) Name() string { return "scripted" }

func (c *scriptedCompleter) Complete(_ context.Context, req reason.Request) (*reason.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.prompts)
	c.prompts = append(c.prompts, req.Prompt)
	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.replies) {
		return &reason.Response{Text: c.replies[i], Model: "scripted-1"}, nil
	}
	return nil, fmt.Errorf("%w: no more scripted replies", reason.ErrUnavailable)
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

type stubRetriever struct {
	results []retrieve.Result
	err     error
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, _ retrieve.Options) ([]retrieve.Result, error) {
	return s.results, s.err
}

func testControl() model.ControlRequirement {
	return model.ControlRequirement{
		ID:     "AC-2",
		Family: "Access Control",
		Text:   "The organization manages system accounts.",
		Objectives: []string{
			"Account types are identified and documented.",
		},
	}
}

func testEvidence() []model.EvidenceRef {
	return []model.EvidenceRef{
		{ID: "ev-1", Title: "Access Control Policy", Type: "policy", ControlIDs: []string{"AC-2"}},
		{ID: "ev-2", Title: "Quarterly Access Review", Type: "report", ControlIDs: []string{"AC-2"}},
	}
}

const goodReply = `{"determination": "met", "confidence": 88, "narrative": "The policy and review export cover the control.", "evidence_analysis": {"ev-1": {"contribution": "Policy defines account management.", "weight": 60}, "ev-2": {"contribution": "Export shows quarterly reviews occur.", "weight": 40}}, "gaps_identified": [], "recommendations": []}`

func newTestAnalyzer(completer Completer, resolver *inherit.Resolver) (*Analyzer, *finding.MemoryStore) {
	store := finding.NewMemoryStore()
	g := gate.New(model.GateConfig{AutoAcceptThreshold: 80})
	a := New(&stubRetriever{}, resolver, completer, g, store, model.InheritanceConfig{InheritConfidence: 95}, false)
	return a, store
}

func TestAnalyze_WellFormedResponse(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{goodReply}}
	a, store := newTestAnalyzer(completer, nil)

	f, err := a.Analyze(context.Background(), Request{
		Control:          testControl(),
		Evidence:         testEvidence(),
		AssessmentID:     "fy26",
		IncludeRetrieval: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.Status != model.StatusMet || f.Confidence != 88 {
		t.Errorf("unexpected determination: %s %d", f.Status, f.Confidence)
	}
	if f.ReviewState != model.ReviewAutoAccepted {
		t.Errorf("confidence 88 >= 80 must auto-accept, got %s", f.ReviewState)
	}
	if len(f.Evidence) != 2 {
		t.Errorf("expected 2 contributions, got %d", len(f.Evidence))
	}
	if f.ModelUsed != "scripted-1" {
		t.Errorf("expected model identifier recorded, got %q", f.ModelUsed)
	}

	stored, err := store.Latest(context.Background(), "AC-2", "fy26")
	if err != nil {
		t.Fatalf("finding not persisted: %v", err)
	}
	if stored.Version != 1 {
		t.Errorf("expected version 1, got %d", stored.Version)
	}
}

func TestAnalyze_InheritedShortCircuit(t *testing.T) {
	resolver := inherit.NewResolver([]model.InheritanceRecord{
		{ControlID: "AC-2", Provider: "aws-govcloud", Responsibility: model.ResponsibilityInherited,
			Narrative: "Account management for the platform layer is provided by AWS."},
	}, nil)

	completer := &scriptedCompleter{}
	a, _ := newTestAnalyzer(completer, resolver)

	f, err := a.Analyze(context.Background(), Request{
		Control:          testControl(),
		Evidence:         testEvidence(),
		AssessmentID:     "fy26",
		IncludeRetrieval: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if completer.callCount() != 0 {
		t.Error("inherited control must not invoke the reasoning service")
	}
	if !f.Inherited || f.Status != model.StatusMet || f.Confidence != 95 {
		t.Errorf("unexpected inherited finding: %+v", f)
	}
	if f.Narrative == "" {
		t.Error("expected the pre-approved narrative")
	}
	if f.ReviewState != model.ReviewAutoAccepted {
		t.Errorf("inherited finding at confidence 95 must auto-accept, got %s", f.ReviewState)
	}
}

func TestAnalyze_MalformedThenRepaired(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"I think the control is met!", goodReply}}
	a, _ := newTestAnalyzer(completer, nil)

	f, err := a.Analyze(context.Background(), Request{
		Control: testControl(), Evidence: testEvidence(), AssessmentID: "fy26",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if completer.callCount() != 2 {
		t.Fatalf("expected exactly one repair retry, got %d calls", completer.callCount())
	}
	if !strings.Contains(completer.prompts[1], "could not be parsed") {
		t.Error("repair retry must carry the stricter format reminder")
	}
	if f.Status != model.StatusMet || f.FromFallback() {
		t.Errorf("repaired response must be used, got %+v", f)
	}
}

func TestAnalyze_MalformedTwiceFallsBack(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"not json", "still not json"}}
	a, _ := newTestAnalyzer(completer, nil)

	f, err := a.Analyze(context.Background(), Request{
		Control: testControl(), Evidence: testEvidence(), AssessmentID: "fy26",
	})
	if err != nil {
		t.Fatalf("fallback must not surface an error: %v", err)
	}

	if f.ModelUsed != model.FallbackModel {
		t.Errorf("fallback finding must carry the sentinel, got %q", f.ModelUsed)
	}
	if f.Confidence > 50 {
		t.Errorf("fallback confidence must be capped at 50, got %d", f.Confidence)
	}
	if f.ReviewState != model.ReviewNeedsReview {
		t.Errorf("fallback finding must require review, got %s", f.ReviewState)
	}
	// Both linked items have expected types, so the heuristic lands on Met.
	if f.Status != model.StatusMet {
		t.Errorf("expected heuristic Met with typed evidence, got %s", f.Status)
	}
}

func TestAnalyze_ServiceUnavailableFallsBack(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{fmt.Errorf("%w: connection refused", reason.ErrUnavailable)}}
	a, _ := newTestAnalyzer(completer, nil)

	f, err := a.Analyze(context.Background(), Request{
		Control: testControl(), Evidence: testEvidence(), AssessmentID: "fy26",
	})
	if err != nil {
		t.Fatalf("unavailable service must not surface an error: %v", err)
	}
	if !f.FromFallback() {
		t.Error("expected the heuristic fallback finding")
	}
}

func TestAnalyze_ZeroEvidence(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{goodReply}}
	a, _ := newTestAnalyzer(completer, nil)

	f, err := a.Analyze(context.Background(), Request{
		Control: testControl(), AssessmentID: "fy26", IncludeRetrieval: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if completer.callCount() != 0 {
		t.Error("zero-evidence analysis must not invoke the reasoning service")
	}
	if f.Status != model.StatusNotMet {
		t.Errorf("expected Not Met, got %s", f.Status)
	}
	if f.Confidence > 30 {
		t.Errorf("zero-evidence confidence must be at most 30, got %d", f.Confidence)
	}
}

func TestAnalyze_WeightSumOverLimitRejected(t *testing.T) {
	overweight := `{"determination": "met", "confidence": 90, "narrative": "n", "evidence_analysis": {"ev-1": {"contribution": "c", "weight": 80}, "ev-2": {"contribution": "c", "weight": 80}}}`
	completer := &scriptedCompleter{replies: []string{overweight, overweight}}
	a, _ := newTestAnalyzer(completer, nil)

	f, err := a.Analyze(context.Background(), Request{
		Control: testControl(), Evidence: testEvidence(), AssessmentID: "fy26",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.FromFallback() {
		t.Error("weights summing past the limit must be treated as malformed")
	}
}

func TestAnalyze_ConcurrentSameControlRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	completer := &blockingCompleter{started: started, release: release}
	a, _ := newTestAnalyzer(completer, nil)

	req := Request{Control: testControl(), Evidence: testEvidence(), AssessmentID: "fy26"}

	done := make(chan error, 1)
	go func() {
		_, err := a.Analyze(context.Background(), req)
		done <- err
	}()

	<-started
	_, err := a.Analyze(context.Background(), req)
	if !errors.Is(err, ErrAnalysisInFlight) {
		t.Errorf("expected ErrAnalysisInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first analysis failed: %v", err)
	}

	// The pair is free again once the first analysis finishes.
	if _, err := a.Analyze(context.Background(), req); err != nil {
		t.Errorf("expected re-analysis to proceed, got %v", err)
	}
}

type blockingCompleter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *blockingCompleter) Name() string { return "blocking" }

func (c *blockingCompleter) Complete(_ context.Context, _ reason.Request) (*reason.Response, error) {
	c.once.Do(func() { close(c.started) })
	<-c.release
	return &reason.Response{Text: goodReply, Model: "blocking-1"}, nil
}

func TestAnalyze_ReanalysisAppendsVersion(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{goodReply, goodReply}}
	a, store := newTestAnalyzer(completer, nil)

	req := Request{Control: testControl(), Evidence: testEvidence(), AssessmentID: "fy26"}
	ctx := context.Background()

	if _, err := a.Analyze(ctx, req); err != nil {
		t.Fatalf("first analysis: %v", err)
	}
	second, err := a.Analyze(ctx, req)
	if err != nil {
		t.Fatalf("second analysis: %v", err)
	}
	if second.Version != 2 {
		t.Errorf("re-analysis must append a new version, got %d", second.Version)
	}

	versions, err := store.Versions(ctx, "AC-2", "fy26")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("prior version must be preserved, got %d versions", len(versions))
	}
}

func TestAnalyzeBatch(t *testing.T) {
	replies := make([]string, 4)
	for i := range replies {
		replies[i] = goodReply
	}
	completer := &scriptedCompleter{replies: replies}
	a, store := newTestAnalyzer(completer, nil)

	controls := []model.ControlRequirement{
		{ID: "AC-2", Text: "Account management."},
		{ID: "AU-12", Text: "Audit record generation."},
		{ID: "SC-7", Text: "Boundary protection."},
	}
	evidence := []model.EvidenceRef{
		{ID: "ev-1", Type: "policy", ControlIDs: []string{"AC-2", "AU-12", "SC-7"}},
	}

	summary := a.AnalyzeBatch(context.Background(), controls, evidence, "fy26", 2)

	if summary.Succeeded != 3 || summary.Failed != 0 {
		t.Fatalf("expected 3 successes, got %d/%d", summary.Succeeded, summary.Failed)
	}
	if len(summary.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(summary.Results))
	}
	for i := 1; i < len(summary.Results); i++ {
		if summary.Results[i].ControlID < summary.Results[i-1].ControlID {
			t.Error("results must be sorted by control ID")
		}
	}

	findings, err := store.ByAssessment(context.Background(), "fy26")
	if err != nil {
		t.Fatalf("by assessment: %v", err)
	}
	if len(findings) != 3 {
		t.Errorf("expected 3 persisted findings, got %d", len(findings))
	}
}

func TestParseResponse_DropsUnknownEvidenceIDs(t *testing.T) {
	reply := `{"determination": "partially_met", "confidence": 55, "narrative": "n", "evidence_analysis": {"ev-1": {"contribution": "c", "weight": 50}, "invented-id": {"contribution": "c", "weight": 50}}}`
	f, err := parseResponse(reply, testEvidence())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Evidence) != 1 || f.Evidence[0].EvidenceID != "ev-1" {
		t.Errorf("invented evidence IDs must be dropped, got %v", f.Evidence)
	}
}

func TestParseResponse_NormalizesDetermination(t *testing.T) {
	reply := `{"determination": "Not Met", "confidence": 10, "narrative": "n"}`
	f, err := parseResponse(reply, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Status != model.StatusNotMet {
		t.Errorf("expected not_met, got %s", f.Status)
	}
}

func TestParseResponse_StripsMarkdownFences(t *testing.T) {
	reply := "```json\n" + goodReply + "\n```"
	f, err := parseResponse(reply, testEvidence())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Status != model.StatusMet {
		t.Errorf("expected met, got %s", f.Status)
	}
}

func TestHeuristicFinding_NoTypedEvidence(t *testing.T) {
	f := heuristicFinding(testControl(), []model.EvidenceRef{
		{ID: "ev-9", Type: "napkin-sketch"},
	})
	if f.Status != model.StatusNotMet {
		t.Errorf("unrecognized evidence types must not count, got %s", f.Status)
	}
	if f.ModelUsed != model.FallbackModel {
		t.Errorf("expected fallback sentinel, got %q", f.ModelUsed)
	}
}
