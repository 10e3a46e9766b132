// Package inherit resolves whether a control's requirement is satisfied by a
// named infrastructure provider rather than the organization itself.
package inherit

import (
	"strings"

	"github.com/veridia/attestor/internal/model"
)

// Resolver answers inheritance lookups against a loaded provider catalog,
// scoped to the infrastructure providers declared for the current
// assessment.
type Resolver struct {
	byControl map[string][]model.InheritanceRecord
	providers map[string]bool // Declared providers; empty means all apply
}

// NewResolver indexes the catalog records. providers lists the
// infrastructure providers declared for the assessment; records from other
// providers are invisible to Resolve.
func NewResolver(records []model.InheritanceRecord, providers []string) *Resolver {
	byControl := make(map[string][]model.InheritanceRecord)
	for _, rec := range records {
		key := normalize(rec.ControlID)
		byControl[key] = append(byControl[key], rec)
	}

	declared := make(map[string]bool, len(providers))
	for _, p := range providers {
		declared[normalize(p)] = true
	}

	return &Resolver{byControl: byControl, providers: declared}
}

// Resolve returns zero or more inheritance records for the control, one per
// declared provider that covers it.
func (r *Resolver) Resolve(controlID string) []model.InheritanceRecord {
	var out []model.InheritanceRecord
	for _, rec := range r.byControl[normalize(controlID)] {
		if len(r.providers) == 0 || r.providers[normalize(rec.Provider)] {
			out = append(out, rec)
		}
	}
	return out
}

// Inherited returns the first fully-inherited record for the control, or nil.
// A non-nil result lets the analyzer skip the reasoning service entirely and
// reuse the provider's pre-approved narrative.
func (r *Resolver) Inherited(controlID string) *model.InheritanceRecord {
	for _, rec := range r.Resolve(controlID) {
		if rec.Responsibility == model.ResponsibilityInherited {
			return &rec
		}
	}
	return nil
}

// SharedNotes returns the narratives of shared-responsibility records for
// the control, for inclusion in the reasoning request.
func (r *Resolver) SharedNotes(controlID string) []string {
	var notes []string
	for _, rec := range r.Resolve(controlID) {
		if rec.Responsibility == model.ResponsibilityShared && rec.Narrative != "" {
			notes = append(notes, rec.Provider+": "+rec.Narrative)
		}
	}
	return notes
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
