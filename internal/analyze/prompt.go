package analyze

import (
	"fmt"
	"strings"

	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/retrieve"
)

const systemPrompt = `You are a compliance assessor. You judge whether the provided evidence satisfies a regulatory control requirement. Base your determination ONLY on the evidence and context provided; never assume evidence that is not listed. Respond with a single JSON object and nothing else, conforming to:
{
  "determination": "met" | "not_met" | "partially_met" | "not_applicable",
  "confidence": <number 0-100>,
  "narrative": "<string>",
  "evidence_analysis": {"<evidence_id>": {"contribution": "<string>", "weight": <number 0-100>}},
  "gaps_identified": ["<string>"],
  "recommendations": ["<string>"]
}
Weights across all evidence must sum to at most 100.`

// formatReminder is appended on the repair retry after a malformed response.
const formatReminder = `

IMPORTANT: your previous reply could not be parsed. Respond with ONLY the JSON object described in the system instructions - no prose, no markdown fences, no commentary before or after the JSON.`

// buildPrompt assembles the structured request for one control: requirement
// and objectives, linked evidence metadata, retrieved context excerpts with
// their sources and similarity scores, and any shared-responsibility notes.
func buildPrompt(control model.ControlRequirement, evidence []model.EvidenceRef, context []retrieve.Result, sharedNotes []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "CONTROL %s (%s)\nRequirement: %s\n", control.ID, control.Family, control.Text)
	if len(control.Objectives) > 0 {
		b.WriteString("Assessment objectives:\n")
		for _, o := range control.Objectives {
			fmt.Fprintf(&b, "- %s\n", o)
		}
	}

	b.WriteString("\nLINKED EVIDENCE\n")
	if len(evidence) == 0 {
		b.WriteString("(none)\n")
	}
	for _, e := range evidence {
		fmt.Fprintf(&b, "- id=%s type=%s title=%q", e.ID, e.Type, e.Title)
		if e.Description != "" {
			fmt.Fprintf(&b, " description=%q", e.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRETRIEVED CONTEXT\n")
	if len(context) == 0 {
		b.WriteString("(no document excerpts cleared the similarity threshold)\n")
	}
	for _, r := range context {
		fmt.Fprintf(&b, "[source=%s similarity=%.2f]\n%s\n\n", r.DocumentID, r.Similarity, r.Text)
	}

	if len(sharedNotes) > 0 {
		b.WriteString("SHARED RESPONSIBILITY\n")
		b.WriteString("The following responsibilities are shared with an infrastructure provider; judge only the customer-side portion:\n")
		for _, note := range sharedNotes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	return b.String()
}
