package embed

import (
	"fmt"
	"strings"

	"github.com/veridia/attestor/internal/model"
)

// NewProvider creates an embedding provider from configuration.
func NewProvider(cfg model.EmbeddingConfig) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg)

	case "ollama":
		return NewOllamaProvider(cfg)

	case "local", "":
		return NewLocalProvider(cfg), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama, local)", cfg.Provider)
	}
}
