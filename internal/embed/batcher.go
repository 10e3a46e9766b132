package embed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/worker"
)

const (
	defaultMaxBatch   = 64
	defaultMaxRetries = 3
)

// sleepFunc is the sleep used between retries (injectable for tests).
var sleepFunc = time.Sleep

// Batcher wraps a Provider with the operational contract the pipeline needs:
// batches larger than the backend's request limit are split and reassembled
// transparently, rejected batches are retried with exponential backoff and
// jitter up to a bounded attempt count, and every call first clears the
// backend's rate limit. A batch that still fails surfaces a BatchError with
// the offending item indices; there is no partial success.
type Batcher struct {
	provider   Provider
	limiter    *worker.Limiter
	maxBatch   int
	maxRetries int
}

// NewBatcher wraps provider. The limiter may be shared across components.
func NewBatcher(provider Provider, limiter *worker.Limiter, cfg model.EmbeddingConfig) *Batcher {
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Batcher{
		provider:   provider,
		limiter:    limiter,
		maxBatch:   maxBatch,
		maxRetries: maxRetries,
	}
}

// Name returns the wrapped provider's name.
func (b *Batcher) Name() string { return b.provider.Name() }

// Dimensions returns the wrapped provider's vector length.
func (b *Batcher) Dimensions() int { return b.provider.Dimensions() }

// EmbedOne embeds a single text through the same retry path as batches.
func (b *Batcher) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts of any count, splitting into backend-sized
// sub-batches and reassembling results in input order.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for offset := 0; offset < len(texts); offset += b.maxBatch {
		end := offset + b.maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		sub, err := b.embedWithRetry(ctx, texts[offset:end])
		if err != nil {
			indices := make([]int, 0, end-offset)
			for i := offset; i < end; i++ {
				indices = append(indices, i)
			}
			return nil, &BatchError{Indices: indices, Err: err}
		}
		vectors = append(vectors, sub...)
	}

	return vectors, nil
}

func (b *Batcher) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < b.maxRetries; attempt++ {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx, b.provider.Name()); err != nil {
				return nil, err
			}
		}

		vectors, err := b.provider.EmbedBatch(ctx, texts)
		if err == nil {
			if err := b.checkDimensions(vectors); err != nil {
				return nil, err // Configuration error, retrying cannot help
			}
			return vectors, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		lastErr = err
		if attempt < b.maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			backoff += time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
			sleepFunc(backoff)
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", b.maxRetries, lastErr)
}

func (b *Batcher) checkDimensions(vectors [][]float32) error {
	want := b.provider.Dimensions()
	if want <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("embedding %d has %d dimensions, provider is configured for %d", i, len(v), want)
		}
	}
	return nil
}
