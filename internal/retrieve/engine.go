// Package retrieve queries the vector index and applies diversity-aware
// re-ranking (Maximal Marginal Relevance) to the candidate pool.
package retrieve

import (
	"context"
	"fmt"

	"github.com/veridia/attestor/internal/cache"
	"github.com/veridia/attestor/internal/embed"
	"github.com/veridia/attestor/internal/index"
	"github.com/veridia/attestor/internal/model"
)

// Result is one retrieved chunk. Ephemeral: it lives only as long as the
// analysis request that produced it.
type Result struct {
	ChunkID    string
	DocumentID string
	Text       string
	Similarity float64 // Similarity to the query, 0-1, higher is closer
	Rank       int     // 1-based position after re-ranking, best first
}

// Options scopes a single retrieval.
type Options struct {
	ControlID    string
	AssessmentID string
	Method       model.AssessmentMethod
}

// Engine resolves queries to vectors, fetches a candidate pool from the
// index, drops candidates below the similarity threshold, and re-ranks the
// rest with MMR.
type Engine struct {
	embedder embed.Provider
	idx      index.Index
	cache    cache.Cache
	cfg      model.RetrievalConfig
}

// NewEngine creates a retrieval engine. The cache memoizes query-text
// embeddings; pass cache.Disabled{} to turn that off.
func NewEngine(embedder embed.Provider, idx index.Index, c cache.Cache, cfg model.RetrievalConfig) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.7
	}
	if cfg.Lambda <= 0 || cfg.Lambda > 1 {
		cfg.Lambda = 0.7
	}
	if cfg.PoolMultiplier <= 0 {
		cfg.PoolMultiplier = 2
	}
	if c == nil {
		c = cache.Disabled{}
	}
	return &Engine{embedder: embedder, idx: idx, cache: c, cfg: cfg}
}

// Retrieve embeds the query text and delegates to RetrieveVector.
func (e *Engine) Retrieve(ctx context.Context, queryText string, opts Options) ([]Result, error) {
	key := cache.Key("query-embedding", e.embedder.Name(), queryText)
	if cached, ok := e.cache.Get(key); ok {
		if vector, ok := cached.([]float32); ok {
			return e.RetrieveVector(ctx, vector, opts)
		}
	}

	vector, err := e.embedder.EmbedOne(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	e.cache.Set(key, vector)

	return e.RetrieveVector(ctx, vector, opts)
}

// RetrieveVector runs similarity search and MMR re-ranking for an
// already-embedded query. An empty result is valid, not an error: it means
// no candidate cleared the similarity threshold.
func (e *Engine) RetrieveVector(ctx context.Context, vector []float32, opts Options) ([]Result, error) {
	pool := e.cfg.PoolMultiplier * e.cfg.TopK

	candidates, err := e.idx.Query(ctx, vector, pool, index.Filter{
		ControlID:    opts.ControlID,
		AssessmentID: opts.AssessmentID,
		Method:       opts.Method,
	})
	if err != nil {
		return nil, fmt.Errorf("index query: %w", err)
	}

	// Threshold first: a candidate below it never appears in output, no
	// matter how much diversity it would add.
	qualified := candidates[:0]
	for _, c := range candidates {
		if c.Similarity >= e.cfg.Threshold {
			qualified = append(qualified, c)
		}
	}

	selected := mmr(qualified, e.cfg.Lambda, e.cfg.TopK)

	results := make([]Result, len(selected))
	for i, c := range selected {
		results[i] = Result{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Similarity: c.Similarity,
			Rank:       i + 1,
		}
	}
	return results, nil
}

// mmr iteratively selects the candidate maximizing
//
//	lambda*sim(query, c) - (1-lambda)*max(sim(c, selected))
//
// until topK are chosen or the pool is exhausted. Candidates arrive sorted
// by descending query similarity; ties in MMR score fall back to that
// original rank, keeping the selection stable.
func mmr(pool []index.Candidate, lambda float64, topK int) []index.Candidate {
	if len(pool) == 0 || topK <= 0 {
		return nil
	}

	selected := make([]index.Candidate, 0, topK)
	remaining := make([]index.Candidate, len(pool))
	copy(remaining, pool)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		bestScore := mmrScore(remaining[0], selected, lambda)
		for i := 1; i < len(remaining); i++ {
			score := mmrScore(remaining[i], selected, lambda)
			if score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

func mmrScore(c index.Candidate, selected []index.Candidate, lambda float64) float64 {
	maxRedundancy := 0.0
	for _, s := range selected {
		if sim := index.CosineSimilarity(c.Vector, s.Vector); sim > maxRedundancy {
			maxRedundancy = sim
		}
	}
	return lambda*c.Similarity - (1-lambda)*maxRedundancy
}
