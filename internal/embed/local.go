package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/veridia/attestor/internal/model"
)

// DefaultLocalDimensions is the vector length the local provider uses when
// none is configured.
const DefaultLocalDimensions = 256

// LocalProvider is a locally computed embedding backend: a deterministic
// feature-hashing bag-of-words embedder. It needs no network access and
// always produces identical vectors for identical text, which makes it the
// offline and test backend. Semantic quality is far below a model-backed
// provider; similarity still tracks lexical overlap.
type LocalProvider struct {
	dimensions int
}

// NewLocalProvider creates a local feature-hashing provider.
func NewLocalProvider(cfg model.EmbeddingConfig) *LocalProvider {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultLocalDimensions
	}
	return &LocalProvider{dimensions: dims}
}

// Name returns the provider name.
func (p *LocalProvider) Name() string { return "local" }

// Dimensions returns the vector length.
func (p *LocalProvider) Dimensions() int { return p.dimensions }

// EmbedOne embeds a single text.
func (p *LocalProvider) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return p.embed(text), nil
}

// EmbedBatch embeds a batch of texts, preserving order.
func (p *LocalProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.embed(text)
	}
	return vectors, nil
}

func (p *LocalProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimensions)

	tokens := tokenize(text)
	for _, token := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		bucket := int(h.Sum32()) % p.dimensions
		if bucket < 0 {
			bucket += p.dimensions
		}
		vec[bucket]++
	}
	// Word bigrams capture a little phrase structure.
	for i := 0; i+1 < len(tokens); i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tokens[i] + " " + tokens[i+1]))
		bucket := int(h.Sum32()) % p.dimensions
		if bucket < 0 {
			bucket += p.dimensions
		}
		vec[bucket]++
	}

	normalize(vec)
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
