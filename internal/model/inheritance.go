package model

// InheritanceRecord states whether a control is satisfied by a named
// infrastructure provider rather than the organization itself.
type InheritanceRecord struct {
	ControlID      string         `json:"control_id" yaml:"control_id"`
	Provider       string         `json:"provider" yaml:"provider"` // e.g. "aws-govcloud", "azure"
	Responsibility Responsibility `json:"responsibility" yaml:"responsibility"`
	Narrative      string         `json:"narrative,omitempty" yaml:"narrative,omitempty"` // Pre-approved narrative text
}

// Responsibility classifies who satisfies the control.
type Responsibility string

const (
	ResponsibilityInherited Responsibility = "inherited"
	ResponsibilityShared    Responsibility = "shared"
	ResponsibilityCustomer  Responsibility = "customer"
)
