package embed

import (
	"context"
	"math"
	"testing"

	"github.com/veridia/attestor/internal/model"
)

func TestLocalProvider_Deterministic(t *testing.T) {
	p := NewLocalProvider(model.EmbeddingConfig{Dimensions: 128})

	first, err := p.EmbedOne(context.Background(), "Access is revoked within 24 hours of termination.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.EmbedOne(context.Background(), "Access is revoked within 24 hours of termination.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != 128 {
		t.Fatalf("expected 128 dimensions, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("vectors differ at dimension %d", i)
		}
	}
}

func TestLocalProvider_UnitNorm(t *testing.T) {
	p := NewLocalProvider(model.EmbeddingConfig{})

	vec, err := p.EmbedOne(context.Background(), "audit logging enabled on all systems")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("expected unit norm, got squared magnitude %f", sum)
	}
}

func TestLocalProvider_SimilarTextCloser(t *testing.T) {
	p := NewLocalProvider(model.EmbeddingConfig{})
	ctx := context.Background()

	query, _ := p.EmbedOne(ctx, "account access is revoked upon employee termination")
	near, _ := p.EmbedOne(ctx, "access for terminated employee accounts is revoked promptly")
	far, _ := p.EmbedOne(ctx, "the cafeteria menu rotates weekly among four cuisines")

	if cosine(query, near) <= cosine(query, far) {
		t.Errorf("expected lexically similar text to score higher: near=%f far=%f",
			cosine(query, near), cosine(query, far))
	}
}

func TestLocalProvider_BatchPreservesOrder(t *testing.T) {
	p := NewLocalProvider(model.EmbeddingConfig{})
	ctx := context.Background()

	texts := []string{"first text", "second text", "third text"}
	batch, err := p.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(batch))
	}

	for i, text := range texts {
		single, _ := p.EmbedOne(ctx, text)
		for d := range single {
			if batch[i][d] != single[d] {
				t.Fatalf("batch vector %d differs from single embedding at dimension %d", i, d)
			}
		}
	}
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot // Inputs are unit-normalized
}
