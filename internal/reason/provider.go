// Package reason talks to the reasoning service that judges whether
// retrieved evidence satisfies a control requirement. Providers return the
// model's raw text; parsing and validation belong to the analyzer.
package reason

import (
	"context"
	"errors"
)

// ErrUnavailable marks transport-level failures: the reasoning backend could
// not be reached or refused the request. The analyzer retries these before
// falling back to the heuristic path.
var ErrUnavailable = errors.New("reasoning service unavailable")

// ErrMalformedResponse marks replies that came back but could not be parsed
// into a determination. The analyzer retries once with a repair prompt, then
// falls back to the heuristic path.
var ErrMalformedResponse = errors.New("malformed reasoning response")

// Provider defines the interface for reasoning backends.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends one analysis request and returns the model's output.
	Complete(ctx context.Context, req Request) (*Response, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Request contains the input for one reasoning call.
type Request struct {
	// System sets the model's role and output contract
	System string

	// Prompt is the assembled control + evidence prompt
	Prompt string

	// Model overrides the configured model for this call
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// Response contains the model's raw output.
type Response struct {
	// Text is the model's reply, expected to be a JSON object
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}
