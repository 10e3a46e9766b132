package finding

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridia/attestor/internal/model"
)

// MemoryStore keeps findings in process memory. Suitable for single runs and
// tests; history is lost when the process exits.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string][]model.Finding // control|assessment -> versions, oldest first
	byID     map[string]key
}

type key struct {
	group string
	index int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions: make(map[string][]model.Finding),
		byID:     make(map[string]key),
	}
}

func groupKey(controlID, assessmentID string) string {
	return controlID + "|" + assessmentID
}

// Save appends the finding as the next version for its control and assessment.
func (s *MemoryStore) Save(_ context.Context, f *model.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group := groupKey(f.ControlID, f.AssessmentID)
	f.ID = uuid.NewString()
	f.Version = len(s.versions[group]) + 1
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	s.versions[group] = append(s.versions[group], *f)
	s.byID[f.ID] = key{group: group, index: len(s.versions[group]) - 1}
	return nil
}

// Latest returns the newest version for the control and assessment.
func (s *MemoryStore) Latest(_ context.Context, controlID, assessmentID string) (*model.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[groupKey(controlID, assessmentID)]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	latest := versions[len(versions)-1]
	return &latest, nil
}

// Versions returns all versions for the control and assessment, oldest first.
func (s *MemoryStore) Versions(_ context.Context, controlID, assessmentID string) ([]model.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[groupKey(controlID, assessmentID)]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	out := make([]model.Finding, len(versions))
	copy(out, versions)
	return out, nil
}

// ByAssessment returns the latest version of every finding in the assessment.
func (s *MemoryStore) ByAssessment(_ context.Context, assessmentID string) ([]model.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Finding
	for _, versions := range s.versions {
		latest := versions[len(versions)-1]
		if latest.AssessmentID == assessmentID {
			out = append(out, latest)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ControlID < out[j].ControlID })
	return out, nil
}

// UpdateReview changes the review state of the finding with the given ID.
func (s *MemoryStore) UpdateReview(_ context.Context, id string, state model.ReviewState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.versions[k.group][k.index].ReviewState = state
	return nil
}
