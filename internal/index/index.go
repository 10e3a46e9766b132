// Package index stores chunk vectors plus metadata and answers
// nearest-neighbor similarity queries. All vectors in one index share a
// fixed dimensionality; a mismatch on upsert is a configuration error, not a
// runtime-recoverable one.
package index

import (
	"context"
	"errors"

	"github.com/veridia/attestor/internal/model"
)

// ErrDimensionMismatch marks a vector whose length differs from the index's
// fixed dimensionality. Fatal: ingestion must stop rather than silently
// corrupt the index.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Entry is one stored chunk vector with the metadata queries filter on.
type Entry struct {
	ChunkID      string
	DocumentID   string
	AssessmentID string
	ControlIDs   []string
	Method       model.AssessmentMethod
	Text         string
	Vector       []float32
}

// Filter restricts a similarity query. Zero values match everything.
type Filter struct {
	ControlID    string
	DocumentID   string
	AssessmentID string
	Method       model.AssessmentMethod
}

// Candidate is one query hit. Similarity is 1 - cosine distance, in [0,1]
// for non-negative vectors; higher is closer.
type Candidate struct {
	ChunkID    string
	DocumentID string
	Text       string
	Vector     []float32
	Similarity float64
}

// Index is the vector store contract.
type Index interface {
	// Upsert stores or replaces entries keyed by chunk ID.
	Upsert(ctx context.Context, entries ...Entry) error

	// Query returns up to topK candidates ordered by descending similarity.
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Candidate, error)

	// Dimensions returns the index's fixed vector length.
	Dimensions() int
}

func matches(e Entry, f Filter) bool {
	if f.ControlID != "" {
		found := false
		for _, id := range e.ControlIDs {
			if id == f.ControlID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DocumentID != "" && e.DocumentID != f.DocumentID {
		return false
	}
	if f.AssessmentID != "" && e.AssessmentID != f.AssessmentID {
		return false
	}
	if f.Method != "" && e.Method != f.Method {
		return false
	}
	return true
}
