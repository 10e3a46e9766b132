package reason

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/worker"
)

const defaultMaxRetries = 3

// sleepFunc is the sleep used between retries (injectable for tests).
var sleepFunc = time.Sleep

// Invoker wraps a Provider with the call discipline the analyzer needs:
// every call first clears the backend's rate limit, transport failures are
// retried with exponential backoff and jitter up to a bounded attempt count,
// and context cancellation cuts the retry loop short.
type Invoker struct {
	provider   Provider
	limiter    *worker.Limiter
	maxRetries int
}

// NewInvoker wraps provider. The limiter may be shared across components.
func NewInvoker(provider Provider, limiter *worker.Limiter, cfg model.ReasoningConfig) *Invoker {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Invoker{
		provider:   provider,
		limiter:    limiter,
		maxRetries: maxRetries,
	}
}

// Name returns the wrapped provider's name.
func (v *Invoker) Name() string { return v.provider.Name() }

// Complete sends the request, retrying transport failures. Malformed content
// is not retried here; the analyzer owns the repair pass because it rewrites
// the prompt.
func (v *Invoker) Complete(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < v.maxRetries; attempt++ {
		if v.limiter != nil {
			if err := v.limiter.Wait(ctx, v.provider.Name()); err != nil {
				return nil, err
			}
		}

		resp, err := v.provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, ErrUnavailable) {
			return nil, err // Provider rejected the request, retrying cannot help
		}

		lastErr = err
		if attempt < v.maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			backoff += time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
			sleepFunc(backoff)
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", v.maxRetries, lastErr)
}

// IsAvailable reports whether the wrapped provider is reachable.
func (v *Invoker) IsAvailable(ctx context.Context) bool {
	return v.provider.IsAvailable(ctx)
}
