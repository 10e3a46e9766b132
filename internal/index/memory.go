package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-memory Index for tests, local runs, and small corpora.
// Safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	dimensions int
	entries    map[string]Entry
}

// NewMemory creates an empty in-memory index fixed at the given
// dimensionality.
func NewMemory(dimensions int) *Memory {
	return &Memory{
		dimensions: dimensions,
		entries:    make(map[string]Entry),
	}
}

// Dimensions returns the fixed vector length.
func (m *Memory) Dimensions() int { return m.dimensions }

// Upsert stores or replaces entries keyed by chunk ID.
func (m *Memory) Upsert(_ context.Context, entries ...Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if len(e.Vector) != m.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index is fixed at %d",
				ErrDimensionMismatch, e.ChunkID, len(e.Vector), m.dimensions)
		}
		m.entries[e.ChunkID] = e
	}
	return nil
}

// Query returns up to topK candidates ordered by descending cosine
// similarity, ties broken by chunk ID for determinism.
func (m *Memory) Query(_ context.Context, vector []float32, topK int, filter Filter) ([]Candidate, error) {
	if len(vector) != m.dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index is fixed at %d",
			ErrDimensionMismatch, len(vector), m.dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]Candidate, 0, len(m.entries))
	for _, e := range m.entries {
		if !matches(e, filter) {
			continue
		}
		candidates = append(candidates, Candidate{
			ChunkID:    e.ChunkID,
			DocumentID: e.DocumentID,
			Text:       e.Text,
			Vector:     e.Vector,
			Similarity: CosineSimilarity(vector, e.Vector),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// CosineSimilarity computes the cosine of the angle between two equal-length
// vectors; zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
