package model

// ControlRequirement is a single requirement from a regulatory control
// framework. Read-only to the pipeline; seeded by an external import.
type ControlRequirement struct {
	ID         string   `json:"id" yaml:"id"`                           // e.g. "AC-2", "AU-12(3)"
	Family     string   `json:"family,omitempty" yaml:"family,omitempty"` // Domain/family tag, e.g. "Access Control"
	Text       string   `json:"text" yaml:"text"`                       // Requirement statement
	Objectives []string `json:"objectives,omitempty" yaml:"objectives,omitempty"`
}

// QueryText returns the text used to embed the control as a retrieval query:
// the requirement statement followed by its assessment objectives.
func (c ControlRequirement) QueryText() string {
	text := c.Text
	for _, obj := range c.Objectives {
		text += "\n" + obj
	}
	return text
}

// EvidenceRef describes an evidence artifact linked to one or more controls.
// Consumed, never owned, by the pipeline.
type EvidenceRef struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Type        string   `json:"type" yaml:"type"` // e.g. "policy", "screenshot", "scan-report", "config-export"
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	ControlIDs  []string `json:"control_ids,omitempty" yaml:"control_ids,omitempty"`
}
