package analyze

import (
	"fmt"
	"strings"

	"github.com/veridia/attestor/internal/model"
)

// fallbackConfidenceCeiling caps the confidence of heuristic findings. The
// heuristic looks only at evidence metadata, so its output is never trusted
// enough for auto-acceptance.
const fallbackConfidenceCeiling = 50

// expectedEvidenceTypes are the evidence categories the heuristic treats as
// substantive when no reasoning model is available.
var expectedEvidenceTypes = map[string]bool{
	"policy":     true,
	"procedure":  true,
	"plan":       true,
	"report":     true,
	"scan":       true,
	"screenshot": true,
	"config":     true,
	"log":        true,
	"diagram":    true,
}

// heuristicFinding builds a deterministic non-AI finding: Met when at least
// one linked evidence item has an expected type, Not Met otherwise. The
// model_used sentinel makes the fallback origin visible downstream.
func heuristicFinding(control model.ControlRequirement, evidence []model.EvidenceRef) *model.Finding {
	var matched []string
	for _, e := range evidence {
		if expectedEvidenceTypes[strings.ToLower(strings.TrimSpace(e.Type))] {
			matched = append(matched, e.ID)
		}
	}

	f := &model.Finding{
		ControlID: control.ID,
		ModelUsed: model.FallbackModel,
	}

	if len(matched) == 0 {
		f.Status = model.StatusNotMet
		f.Confidence = 20
		f.Narrative = fmt.Sprintf(
			"Automated reasoning was unavailable for control %s and none of the %d linked evidence items has a recognized evidence type. Determined Not Met by deterministic fallback; manual review required.",
			control.ID, len(evidence))
		f.Gaps = []string{"No evidence of an expected type is linked to this control."}
		return f
	}

	// Confidence grows with corroborating items but stays under the ceiling.
	confidence := 30 + 5*len(matched)
	if confidence > fallbackConfidenceCeiling {
		confidence = fallbackConfidenceCeiling
	}

	f.Status = model.StatusMet
	f.Confidence = confidence
	f.Narrative = fmt.Sprintf(
		"Automated reasoning was unavailable for control %s. %d linked evidence item(s) of expected types were found (%s). Determined Met by deterministic fallback; manual review required.",
		control.ID, len(matched), strings.Join(matched, ", "))
	for _, id := range matched {
		f.Evidence = append(f.Evidence, model.Contribution{
			EvidenceID: id,
			Summary:    "Counted by type match only; content not analyzed.",
			Weight:     100 / len(matched),
		})
	}
	return f
}
