package analyze

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/reason"
)

// weightSumTolerance allows evidence weights to overshoot 100 slightly
// before the response is rejected as malformed.
const weightSumTolerance = 5

// reasoningResponse mirrors the JSON contract of the reasoning service.
type reasoningResponse struct {
	Determination    string                      `json:"determination"`
	Confidence       float64                     `json:"confidence"`
	Narrative        string                      `json:"narrative"`
	EvidenceAnalysis map[string]evidenceAnalysis `json:"evidence_analysis"`
	GapsIdentified   []string                    `json:"gaps_identified"`
	Recommendations  []string                    `json:"recommendations"`
}

type evidenceAnalysis struct {
	Contribution string  `json:"contribution"`
	Weight       float64 `json:"weight"`
}

// parseResponse validates the model's reply and converts it into a Finding
// skeleton. Unknown evidence IDs are dropped; structural defects are
// reported as ErrMalformedResponse so the caller can run the repair retry.
func parseResponse(text string, evidence []model.EvidenceRef) (*model.Finding, error) {
	var resp reasoningResponse
	if err := json.Unmarshal([]byte(extractJSON(text)), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", reason.ErrMalformedResponse, err)
	}

	status, err := parseDetermination(resp.Determination)
	if err != nil {
		return nil, err
	}

	if resp.Confidence < 0 || resp.Confidence > 100 {
		return nil, fmt.Errorf("%w: confidence %.0f outside 0-100", reason.ErrMalformedResponse, resp.Confidence)
	}
	if resp.Narrative == "" {
		return nil, fmt.Errorf("%w: empty narrative", reason.ErrMalformedResponse)
	}

	known := make(map[string]bool, len(evidence))
	for _, e := range evidence {
		known[e.ID] = true
	}

	var contributions []model.Contribution
	var weightSum float64
	for id, ea := range resp.EvidenceAnalysis {
		if !known[id] {
			continue // The model invented an ID; keep only verifiable ones
		}
		if ea.Weight < 0 || ea.Weight > 100 {
			return nil, fmt.Errorf("%w: weight %.0f for %s outside 0-100", reason.ErrMalformedResponse, ea.Weight, id)
		}
		weightSum += ea.Weight
		contributions = append(contributions, model.Contribution{
			EvidenceID: id,
			Summary:    ea.Contribution,
			Weight:     int(ea.Weight),
		})
	}
	if weightSum > 100+weightSumTolerance {
		return nil, fmt.Errorf("%w: evidence weights sum to %.0f", reason.ErrMalformedResponse, weightSum)
	}

	return &model.Finding{
		Status:          status,
		Confidence:      int(resp.Confidence),
		Narrative:       resp.Narrative,
		Evidence:        contributions,
		Gaps:            resp.GapsIdentified,
		Recommendations: resp.Recommendations,
	}, nil
}

func parseDetermination(s string) (model.FindingStatus, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
	switch model.FindingStatus(normalized) {
	case model.StatusMet, model.StatusNotMet, model.StatusPartiallyMet, model.StatusNotApplicable:
		return model.FindingStatus(normalized), nil
	}
	return "", fmt.Errorf("%w: unknown determination %q", reason.ErrMalformedResponse, s)
}

// extractJSON strips markdown fences and surrounding prose, keeping the
// outermost JSON object. Models occasionally wrap JSON despite instructions.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
