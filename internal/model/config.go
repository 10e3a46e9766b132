package model

import "time"

// Config is the process-wide configuration tree. Built once at startup from
// defaults, config file, environment, and flags; injected explicitly into
// every component constructor.
type Config struct {
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Index       IndexConfig       `yaml:"index"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Reasoning   ReasoningConfig   `yaml:"reasoning"`
	Inheritance InheritanceConfig `yaml:"inheritance"`
	Gate        GateConfig        `yaml:"gate"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Cache       CacheConfig       `yaml:"cache"`
	Output      OutputConfig      `yaml:"output"`
}

// ChunkerConfig controls document segmentation.
type ChunkerConfig struct {
	Window  int     `yaml:"window"`  // Target chunk size in bytes; cuts snap to rune boundaries
	Overlap int     `yaml:"overlap"` // Overlap between consecutive chunks
	Slack   float64 `yaml:"slack"`   // Boundary-snapping slack as a fraction of window
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	Provider   string  `yaml:"provider"` // "openai", "ollama", "local"
	Model      string  `yaml:"model"`
	APIKey     string  `yaml:"api_key,omitempty"`
	BaseURL    string  `yaml:"base_url,omitempty"`
	Timeout    int     `yaml:"timeout"` // seconds
	MaxBatch   int     `yaml:"max_batch"`
	Dimensions int     `yaml:"dimensions"` // Fixed per deployment; mismatch is fatal
	MaxRetries int     `yaml:"max_retries"`
	RateLimit  float64 `yaml:"rate_limit"` // requests per second to the backend
	Burst      int     `yaml:"burst"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Backend string `yaml:"backend"` // "memory" or "postgres"
	DSN     string `yaml:"dsn,omitempty"`
}

// RetrievalConfig tunes similarity search and MMR re-ranking.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	Threshold      float64 `yaml:"threshold"` // Minimum similarity (0-1)
	Lambda         float64 `yaml:"lambda"`    // MMR relevance/diversity trade-off
	PoolMultiplier int     `yaml:"pool_multiplier"` // Candidate pool = multiplier * top_k
}

// ReasoningConfig selects and tunes the reasoning backend.
type ReasoningConfig struct {
	Provider   string  `yaml:"provider"` // "openai", "anthropic", "ollama"
	Model      string  `yaml:"model"`
	APIKey     string  `yaml:"api_key,omitempty"`
	BaseURL    string  `yaml:"base_url,omitempty"`
	Timeout    int     `yaml:"timeout"` // seconds
	MaxTokens  int     `yaml:"max_tokens"`
	MaxRetries int     `yaml:"max_retries"`
	RateLimit  float64 `yaml:"rate_limit"`
	Burst      int     `yaml:"burst"`
}

// InheritanceConfig locates the provider-responsibility catalog.
type InheritanceConfig struct {
	CatalogPath       string   `yaml:"catalog_path,omitempty"`
	Providers         []string `yaml:"providers,omitempty"` // Infrastructure providers declared for the assessment
	InheritConfidence int      `yaml:"inherit_confidence"`  // Confidence assigned to inherited findings
}

// GateConfig tunes the human-review gate.
type GateConfig struct {
	AutoAcceptThreshold int `yaml:"auto_accept_threshold"`
}

// ConcurrencyConfig bounds the worker pools.
type ConcurrencyConfig struct {
	IngestWorkers   int `yaml:"ingest_workers"`
	AnalysisWorkers int `yaml:"analysis_workers"`
}

// CacheConfig tunes in-memory caching of query embeddings.
type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// OutputConfig controls CLI output behavior.
type OutputConfig struct {
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the built-in defaults. Thresholds and the MMR lambda
// are starting points, not tuned values; override them per deployment.
func DefaultConfig() *Config {
	return &Config{
		Chunker: ChunkerConfig{
			Window:  1000,
			Overlap: 200,
			Slack:   0.1,
		},
		Embedding: EmbeddingConfig{
			Provider:   "local",
			Timeout:    30,
			MaxBatch:   64,
			Dimensions: 256,
			MaxRetries: 3,
			RateLimit:  5,
			Burst:      5,
		},
		Index: IndexConfig{
			Backend: "memory",
		},
		Retrieval: RetrievalConfig{
			TopK:           10,
			Threshold:      0.7,
			Lambda:         0.7,
			PoolMultiplier: 2,
		},
		Reasoning: ReasoningConfig{
			Provider:   "",
			Timeout:    60,
			MaxTokens:  2000,
			MaxRetries: 3,
			RateLimit:  2,
			Burst:      2,
		},
		Inheritance: InheritanceConfig{
			InheritConfidence: 95,
		},
		Gate: GateConfig{
			AutoAcceptThreshold: 80,
		},
		Concurrency: ConcurrencyConfig{
			IngestWorkers:   4,
			AnalysisWorkers: 4,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             15 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Output: OutputConfig{},
	}
}
