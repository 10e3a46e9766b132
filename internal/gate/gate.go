// Package gate routes findings between automated acceptance and human
// review based on the analyzer's confidence.
package gate

import (
	"fmt"

	"github.com/veridia/attestor/internal/model"
)

// Gate assigns the initial review state to new findings and validates the
// transitions a reviewer may apply afterwards.
type Gate struct {
	autoAcceptThreshold int
}

// New builds a gate. A non-positive threshold falls back to the default.
func New(cfg model.GateConfig) *Gate {
	threshold := cfg.AutoAcceptThreshold
	if threshold <= 0 {
		threshold = model.DefaultConfig().Gate.AutoAcceptThreshold
	}
	return &Gate{autoAcceptThreshold: threshold}
}

// Threshold returns the auto-accept confidence threshold.
func (g *Gate) Threshold() int { return g.autoAcceptThreshold }

// Admit sets the finding's initial review state. Findings produced by the
// heuristic fallback always require review, whatever their confidence.
func (g *Gate) Admit(f *model.Finding) {
	if f.FromFallback() {
		f.ReviewState = model.ReviewNeedsReview
		return
	}
	if f.Confidence >= g.autoAcceptThreshold {
		f.ReviewState = model.ReviewAutoAccepted
		return
	}
	f.ReviewState = model.ReviewNeedsReview
}

// Transition applies a reviewer decision. Only findings awaiting review can
// be approved or overridden; auto-accepted findings can be overridden but
// never demoted back to pending.
func (g *Gate) Transition(f *model.Finding, to model.ReviewState) error {
	switch to {
	case model.ReviewApproved:
		if f.ReviewState != model.ReviewNeedsReview {
			return fmt.Errorf("cannot approve finding in state %s", f.ReviewState)
		}
	case model.ReviewOverridden:
		if f.ReviewState != model.ReviewNeedsReview && f.ReviewState != model.ReviewAutoAccepted {
			return fmt.Errorf("cannot override finding in state %s", f.ReviewState)
		}
	default:
		return fmt.Errorf("reviewers may only approve or override, not set %s", to)
	}
	f.ReviewState = to
	return nil
}
