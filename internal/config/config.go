// Package config holds all sooqsearch configuration as explicit structs.
// Configuration is loaded from a YAML file and then overridden by
// environment variables, so deployments can run file-less.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Parser    ParserConfig    `yaml:"parser"`
	HotCache  HotCacheConfig  `yaml:"hot_cache"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig configures the Postgres connection pool.
type StoreConfig struct {
	DSN     string `yaml:"dsn"`
	PoolMin int    `yaml:"pool_min"`
	PoolMax int    `yaml:"pool_max"`
}

// ParserConfig configures the tiered parser and its caches.
type ParserConfig struct {
	Tier1ConfidenceThreshold    float64       `yaml:"tier1_confidence_threshold"`
	SemanticCacheSimilarity     float64       `yaml:"semantic_cache_similarity_threshold"`
	ExactCacheTTL               time.Duration `yaml:"exact_cache_ttl"`
	ExactCacheSize              int           `yaml:"exact_cache_size"`
	Tier3Timeout                time.Duration `yaml:"tier3_timeout"`
	Tier4Timeout                time.Duration `yaml:"tier4_timeout"`
	SemanticCacheEvictInterval  time.Duration `yaml:"semantic_cache_evict_interval"`
	SemanticCacheStaleAfter     time.Duration `yaml:"semantic_cache_stale_after"`
	SemanticCacheMaxAge         time.Duration `yaml:"semantic_cache_max_age"`
	SemanticCacheMinHits        int           `yaml:"semantic_cache_min_hits"`
}

// HotCacheConfig configures the in-memory catalog snapshot.
type HotCacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	TopNCategories  int           `yaml:"top_n_categories"`
}

// RetrievalConfig configures the orchestrator.
type RetrievalConfig struct {
	CategoryGateLow        float64       `yaml:"category_confidence_gate_low"`
	CategoryGateHigh       float64       `yaml:"category_confidence_gate_high"`
	VectorMethodMinConf    float64       `yaml:"vector_method_min_confidence"`
	ResultCacheTTL         time.Duration `yaml:"result_cache_ttl"`
	ResultCacheSize        int           `yaml:"result_cache_size"`
	DefaultLimit           int           `yaml:"default_limit"`
	MaxFallbackDepth       int           `yaml:"max_fallback_depth"`
	CandidatePoolSize      int           `yaml:"candidate_pool_size"`
}

// LLMConfig configures the completion collaborator. Any OpenAI-compatible
// JSON endpoint works; the core only needs chat completions.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// EmbeddingConfig configures the embedding collaborator.
type EmbeddingConfig struct {
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// LoggingConfig configures the categorized debug logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Dir        string          `yaml:"dir"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the configuration defaults. Every recognized option has
// one.
func Default() Config {
	return Config{
		Store: StoreConfig{
			PoolMin: 5,
			PoolMax: 20,
		},
		Parser: ParserConfig{
			Tier1ConfidenceThreshold:   0.80,
			SemanticCacheSimilarity:    0.92,
			ExactCacheTTL:              time.Hour,
			ExactCacheSize:             10000,
			Tier3Timeout:               500 * time.Millisecond,
			Tier4Timeout:               1500 * time.Millisecond,
			SemanticCacheEvictInterval: 24 * time.Hour,
			SemanticCacheStaleAfter:    7 * 24 * time.Hour,
			SemanticCacheMaxAge:        30 * 24 * time.Hour,
			SemanticCacheMinHits:       2,
		},
		HotCache: HotCacheConfig{
			TTL:            5 * time.Minute,
			TopNCategories: 500,
		},
		Retrieval: RetrievalConfig{
			CategoryGateLow:     0.70,
			CategoryGateHigh:    0.85,
			VectorMethodMinConf: 0.7,
			ResultCacheTTL:      2 * time.Minute,
			ResultCacheSize:     2000,
			DefaultLimit:        20,
			MaxFallbackDepth:    5,
			CandidatePoolSize:   100,
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// Load reads YAML from path (when non-empty) over the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides maps the documented environment variables onto the
// config. Unset variables leave the current value untouched.
func (c *Config) applyEnvOverrides() {
	envString(&c.Store.DSN, "DATABASE_URL")
	envInt(&c.Store.PoolMin, "STORE_POOL_MIN")
	envInt(&c.Store.PoolMax, "STORE_POOL_MAX")

	envMillis(&c.HotCache.TTL, "HOT_CACHE_TTL_MS")
	envInt(&c.HotCache.TopNCategories, "HOT_CACHE_TOP_N_CATEGORIES")

	envFloat(&c.Parser.Tier1ConfidenceThreshold, "TIER1_CONFIDENCE_THRESHOLD")
	envFloat(&c.Parser.SemanticCacheSimilarity, "SEMANTIC_CACHE_SIMILARITY_THRESHOLD")
	envSeconds(&c.Parser.ExactCacheTTL, "EXACT_CACHE_TTL_S")

	envFloat(&c.Retrieval.CategoryGateLow, "CATEGORY_CONFIDENCE_GATE_LOW")
	envFloat(&c.Retrieval.CategoryGateHigh, "CATEGORY_CONFIDENCE_GATE_HIGH")
	envFloat(&c.Retrieval.VectorMethodMinConf, "VECTOR_METHOD_MIN_CONFIDENCE")

	envString(&c.LLM.APIKey, "LLM_API_KEY")
	envString(&c.LLM.BaseURL, "LLM_BASE_URL")
	envString(&c.LLM.Model, "LLM_MODEL")

	envString(&c.Embedding.APIKey, "EMBEDDING_API_KEY")
	envString(&c.Embedding.BaseURL, "EMBEDDING_BASE_URL")
	envString(&c.Embedding.Model, "EMBEDDING_MODEL")
	envInt(&c.Embedding.Dimension, "EMBEDDING_DIMENSION")
}

func (c *Config) validate() error {
	if c.Store.PoolMin < 0 || c.Store.PoolMax < c.Store.PoolMin {
		return fmt.Errorf("invalid pool bounds: min=%d max=%d", c.Store.PoolMin, c.Store.PoolMax)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Parser.SemanticCacheSimilarity < 0 || c.Parser.SemanticCacheSimilarity > 1 {
		return fmt.Errorf("semantic cache similarity threshold out of range: %v", c.Parser.SemanticCacheSimilarity)
	}
	return nil
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envMillis(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}

func envSeconds(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}
