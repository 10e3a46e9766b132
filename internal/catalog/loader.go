// Package catalog loads control-framework seed data: control requirements,
// evidence references, and provider inheritance records. The catalog is
// read-only to the pipeline; an external import process maintains the files.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/veridia/attestor/internal/model"
)

type controlsFile struct {
	Controls []model.ControlRequirement `yaml:"controls"`
}

type evidenceFile struct {
	Evidence []model.EvidenceRef `yaml:"evidence"`
}

type inheritanceFile struct {
	Records []model.InheritanceRecord `yaml:"records"`
}

// LoadControls reads control requirements from a YAML file.
func LoadControls(path string) ([]model.ControlRequirement, error) {
	var file controlsFile
	if err := read(path, &file); err != nil {
		return nil, err
	}
	for i, c := range file.Controls {
		if c.ID == "" {
			return nil, fmt.Errorf("%s: control %d has no id", path, i)
		}
		if c.Text == "" {
			return nil, fmt.Errorf("%s: control %s has no requirement text", path, c.ID)
		}
	}
	return file.Controls, nil
}

// LoadEvidence reads evidence references from a YAML file.
func LoadEvidence(path string) ([]model.EvidenceRef, error) {
	var file evidenceFile
	if err := read(path, &file); err != nil {
		return nil, err
	}
	for i, e := range file.Evidence {
		if e.ID == "" {
			return nil, fmt.Errorf("%s: evidence %d has no id", path, i)
		}
	}
	return file.Evidence, nil
}

// LoadInheritance reads provider inheritance records from a YAML file.
func LoadInheritance(path string) ([]model.InheritanceRecord, error) {
	var file inheritanceFile
	if err := read(path, &file); err != nil {
		return nil, err
	}
	for i, r := range file.Records {
		if r.ControlID == "" || r.Provider == "" {
			return nil, fmt.Errorf("%s: record %d needs both control_id and provider", path, i)
		}
		switch r.Responsibility {
		case model.ResponsibilityInherited, model.ResponsibilityShared, model.ResponsibilityCustomer:
		default:
			return nil, fmt.Errorf("%s: record %d has unknown responsibility %q", path, i, r.Responsibility)
		}
	}
	return file.Records, nil
}

// EvidenceForControl returns the evidence references linked to a control.
func EvidenceForControl(evidence []model.EvidenceRef, controlID string) []model.EvidenceRef {
	var out []model.EvidenceRef
	for _, e := range evidence {
		for _, id := range e.ControlIDs {
			if id == controlID {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

func read(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
