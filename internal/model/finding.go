package model

import "time"

// FallbackModel is the sentinel recorded in Finding.ModelUsed when the
// deterministic heuristic produced the finding instead of a reasoning model.
// Downstream consumers key off this value; never reuse it for a real model.
const FallbackModel = "heuristic-fallback"

// Finding is the structured outcome of analyzing one control within one
// assessment: a determination, a confidence score, and the rationale that a
// human reviewer can audit.
type Finding struct {
	ID              string         `json:"id"`
	ControlID       string         `json:"control_id"`
	AssessmentID    string         `json:"assessment_id"`
	Version         int            `json:"version"`                   // Re-analysis appends a new version; prior ones are kept
	Status          FindingStatus  `json:"status"`
	Confidence      int            `json:"confidence"`                // 0-100
	Narrative       string         `json:"narrative"`
	Evidence        []Contribution `json:"evidence,omitempty"`
	Gaps            []string       `json:"gaps,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	ModelUsed       string         `json:"model_used"`
	ReviewState     ReviewState    `json:"review_state"`
	Inherited       bool           `json:"inherited,omitempty"`       // Built from a pre-approved inheritance narrative
	CreatedAt       time.Time      `json:"created_at"`
}

// Contribution records how much one evidence item contributed to the
// determination. Weights across a finding sum to at most 100.
type Contribution struct {
	EvidenceID string `json:"evidence_id"`
	Summary    string `json:"summary,omitempty"`
	Weight     int    `json:"weight"` // 0-100
}

// FindingStatus is the determination for a control.
type FindingStatus string

const (
	StatusMet           FindingStatus = "met"
	StatusNotMet        FindingStatus = "not_met"
	StatusPartiallyMet  FindingStatus = "partially_met"
	StatusNotApplicable FindingStatus = "not_applicable"
)

// ReviewState tracks a finding through the human-review gate.
type ReviewState string

const (
	ReviewPending      ReviewState = "pending"
	ReviewAutoAccepted ReviewState = "auto_accepted"
	ReviewNeedsReview  ReviewState = "needs_review"
	ReviewApproved     ReviewState = "approved"
	ReviewOverridden   ReviewState = "overridden"
)

// Final reports whether the finding may be treated as final for reporting.
// Only auto-accepted and human-approved findings qualify.
func (f *Finding) Final() bool {
	return f.ReviewState == ReviewAutoAccepted || f.ReviewState == ReviewApproved
}

// FromFallback reports whether the finding was produced by the deterministic
// heuristic rather than a reasoning model.
func (f *Finding) FromFallback() bool {
	return f.ModelUsed == FallbackModel
}
