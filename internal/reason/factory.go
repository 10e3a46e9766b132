package reason

import (
	"fmt"
	"strings"

	"github.com/veridia/attestor/internal/model"
)

// NewProvider creates a reasoning provider based on configuration. An empty
// provider name disables the reasoning service; the analyzer then relies on
// its heuristic path for every control.
func NewProvider(config model.ReasoningConfig) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown reasoning provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}
