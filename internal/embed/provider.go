package embed

import (
	"context"
	"fmt"
	"strings"
)

// Provider turns text into fixed-length numeric vectors. Callers never care
// which backend sits behind the interface; the concrete provider is selected
// once at startup from configuration.
type Provider interface {
	// Name returns the provider name, used as the rate-limiter key.
	Name() string

	// Dimensions returns the fixed vector length this provider produces.
	Dimensions() int

	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds a batch of texts, returning one vector per text in
	// input order. The batch must not exceed the backend's request limits;
	// use Batcher for transparent splitting.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// BatchError reports a batch that was rejected after the bounded retries
// were exhausted. There is no partial success: no vector from the batch is
// usable.
type BatchError struct {
	// Indices are the positions of the offending items within the batch
	// submitted by the caller.
	Indices []int
	Err     error
}

func (e *BatchError) Error() string {
	if len(e.Indices) == 0 {
		return fmt.Sprintf("embedding batch failed: %v", e.Err)
	}
	parts := make([]string, len(e.Indices))
	for i, idx := range e.Indices {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("embedding batch failed (items %s): %v", strings.Join(parts, ","), e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
