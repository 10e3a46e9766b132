// Package finding persists analysis findings with full version history.
// Re-analyzing a control appends a new version; prior versions are never
// overwritten, so reviewers can audit how a determination changed.
package finding

import (
	"context"
	"errors"

	"github.com/veridia/attestor/internal/model"
)

// ErrNotFound is returned when no finding matches the lookup.
var ErrNotFound = errors.New("finding not found")

// Store persists findings.
type Store interface {
	// Save appends the finding as the next version for its control and
	// assessment, assigning ID, Version, and CreatedAt.
	Save(ctx context.Context, f *model.Finding) error

	// Latest returns the newest version for the control and assessment.
	Latest(ctx context.Context, controlID, assessmentID string) (*model.Finding, error)

	// Versions returns all versions for the control and assessment, oldest
	// first.
	Versions(ctx context.Context, controlID, assessmentID string) ([]model.Finding, error)

	// ByAssessment returns the latest version of every finding in the
	// assessment.
	ByAssessment(ctx context.Context, assessmentID string) ([]model.Finding, error)

	// UpdateReview changes the review state of the finding with the given ID.
	UpdateReview(ctx context.Context, id string, state model.ReviewState) error
}
