package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/veridia/attestor/internal/cache"
	"github.com/veridia/attestor/internal/embed"
	"github.com/veridia/attestor/internal/index"
	"github.com/veridia/attestor/internal/model"
	"github.com/veridia/attestor/internal/reason"
	"github.com/veridia/attestor/internal/worker"
)

// loadConfig builds the effective configuration: defaults, then the config
// file viper located, then environment-supplied API keys. Flag overrides are
// applied by the individual commands.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	if path := viper.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Output.Verbose = verbose

	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Reasoning.APIKey == "" {
		switch cfg.Reasoning.Provider {
		case "openai":
			cfg.Reasoning.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.Reasoning.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.Reasoning.Provider == "ollama" && cfg.Reasoning.BaseURL == "" {
		cfg.Reasoning.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}

	return cfg, nil
}

// newEmbedder builds the configured embedding provider wrapped in the
// batching/retry/rate-limit layer.
func newEmbedder(cfg *model.Config) (embed.Provider, error) {
	provider, err := embed.NewProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	limiter := worker.NewLimiter(cfg.Embedding.RateLimit, cfg.Embedding.Burst)
	return embed.NewBatcher(provider, limiter, cfg.Embedding), nil
}

// newIndex builds the configured vector index. The returned closer releases
// backend connections; it is a no-op for the memory backend.
func newIndex(ctx context.Context, cfg *model.Config, dimensions int) (index.Index, func(), error) {
	switch cfg.Index.Backend {
	case "", "memory":
		return index.NewMemory(dimensions), func() {}, nil

	case "postgres":
		if cfg.Index.DSN == "" {
			return nil, nil, fmt.Errorf("postgres index backend requires index.dsn")
		}
		pg, err := index.NewPostgres(ctx, cfg.Index.DSN, dimensions)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		return pg, pg.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown index backend: %s (supported: memory, postgres)", cfg.Index.Backend)
	}
}

// newCache builds the TTL cache, or a no-op when caching is disabled.
func newCache(cfg *model.Config) cache.Cache {
	if !cfg.Cache.Enabled {
		return cache.Disabled{}
	}
	return cache.NewMemory(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
}

// newReasoner builds the reasoning client, nil when no provider is
// configured (the analyzer then uses its heuristic path).
func newReasoner(cfg *model.Config) (*reason.Invoker, error) {
	provider, err := reason.NewProvider(cfg.Reasoning)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}
	limiter := worker.NewLimiter(cfg.Reasoning.RateLimit, cfg.Reasoning.Burst)
	return reason.NewInvoker(provider, limiter, cfg.Reasoning), nil
}
