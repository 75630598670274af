package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if got, want := cfg.HotCache.TTL, 5*time.Minute; got != want {
		t.Errorf("HotCache.TTL = %v, want %v", got, want)
	}
	if got, want := cfg.HotCache.TopNCategories, 500; got != want {
		t.Errorf("TopNCategories = %d, want %d", got, want)
	}
	if got, want := cfg.Parser.Tier1ConfidenceThreshold, 0.80; got != want {
		t.Errorf("Tier1ConfidenceThreshold = %v, want %v", got, want)
	}
	if got, want := cfg.Parser.SemanticCacheSimilarity, 0.92; got != want {
		t.Errorf("SemanticCacheSimilarity = %v, want %v", got, want)
	}
	if got, want := cfg.Parser.ExactCacheTTL, time.Hour; got != want {
		t.Errorf("ExactCacheTTL = %v, want %v", got, want)
	}
	if got, want := cfg.Retrieval.CategoryGateLow, 0.70; got != want {
		t.Errorf("CategoryGateLow = %v, want %v", got, want)
	}
	if got, want := cfg.Retrieval.CategoryGateHigh, 0.85; got != want {
		t.Errorf("CategoryGateHigh = %v, want %v", got, want)
	}
	if got, want := cfg.Store.PoolMin, 5; got != want {
		t.Errorf("PoolMin = %d, want %d", got, want)
	}
	if got, want := cfg.Store.PoolMax, 20; got != want {
		t.Errorf("PoolMax = %d, want %d", got, want)
	}
	if got, want := cfg.Embedding.Dimension, 1536; got != want {
		t.Errorf("Embedding.Dimension = %d, want %d", got, want)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("hot_cache:\n  top_n_categories: 100\nstore:\n  dsn: postgres://file\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("HOT_CACHE_TTL_MS", "60000")
	t.Setenv("TIER1_CONFIDENCE_THRESHOLD", "0.9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if got, want := cfg.HotCache.TopNCategories, 100; got != want {
		t.Errorf("file value TopNCategories = %d, want %d", got, want)
	}
	if got, want := cfg.Store.DSN, "postgres://env"; got != want {
		t.Errorf("env must override file: DSN = %q, want %q", got, want)
	}
	if got, want := cfg.HotCache.TTL, time.Minute; got != want {
		t.Errorf("HOT_CACHE_TTL_MS: TTL = %v, want %v", got, want)
	}
	if got, want := cfg.Parser.Tier1ConfidenceThreshold, 0.9; got != want {
		t.Errorf("threshold = %v, want %v", got, want)
	}
}

func TestLoad_InvalidDimension(t *testing.T) {
	t.Setenv("EMBEDDING_DIMENSION", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for zero embedding dimension")
	}
}
