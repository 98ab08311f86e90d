package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RAG_RRF_K", "")
	t.Setenv("RAG_USE_COMPRESSION", "")
	t.Setenv("RAG_CONTEXT_MAX_DOCS", "")
	t.Setenv("RAG_REDUNDANCY_THRESHOLD", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("ELASTIC_URLS", "")

	cfg := Load()
	if cfg.RAGRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.RAGRRFK)
	}
	if !cfg.RAGUseCompression {
		t.Fatalf("expected compression on by default")
	}
	if cfg.RAGContextMaxDocs != 8 || cfg.RAGRedundancyThreshold != 0.95 {
		t.Fatalf("unexpected compression defaults: %d %v", cfg.RAGContextMaxDocs, cfg.RAGRedundancyThreshold)
	}
	if cfg.ChunkSize != 900 || cfg.ChunkOverlap != 100 || cfg.ClauseSplitThreshold != 1200 {
		t.Fatalf("unexpected chunking defaults: %d/%d/%d", cfg.ChunkSize, cfg.ChunkOverlap, cfg.ClauseSplitThreshold)
	}
	if len(cfg.ElasticURLs) != 1 || cfg.ElasticURLs[0] != "http://localhost:9200" {
		t.Fatalf("unexpected elastic urls: %v", cfg.ElasticURLs)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RAG_RRF_K", "75")
	t.Setenv("RAG_USE_COMPRESSION", "false")
	t.Setenv("RAG_REDUNDANCY_THRESHOLD", "0.9")
	t.Setenv("ELASTIC_URLS", "http://es1:9200, ,http://es2:9200")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("CHUNK_SIZE", "not-a-number")

	cfg := Load()
	if cfg.RAGRRFK != 75 || cfg.RAGUseCompression || cfg.RAGRedundancyThreshold != 0.9 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if len(cfg.ElasticURLs) != 2 || cfg.ElasticURLs[1] != "http://es2:9200" {
		t.Fatalf("unexpected elastic urls: %v", cfg.ElasticURLs)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.ChunkSize != 900 {
		t.Fatalf("expected invalid int to fall back, got %d", cfg.ChunkSize)
	}
}

func TestLoadRetrievalProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	body := `
rrf_k: 40
fusion_weights:
  Lexical: 2.0
  semantic: -1
  bm25: 3
fusion_caps:
  semantic: 24
strategy_caps:
  section: 15
  article: 0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	profile, err := LoadRetrievalProfile(path)
	if err != nil {
		t.Fatalf("LoadRetrievalProfile() error = %v", err)
	}
	if profile.RRFK != 40 {
		t.Fatalf("expected rrf k 40, got %d", profile.RRFK)
	}
	if len(profile.FusionWeights) != 1 || profile.FusionWeights["lexical"] != 2.0 {
		t.Fatalf("unexpected weights: %v", profile.FusionWeights)
	}
	if profile.FusionCaps["semantic"] != 24 {
		t.Fatalf("unexpected fusion caps: %v", profile.FusionCaps)
	}
	if len(profile.StrategyCaps) != 1 || profile.StrategyCaps["section"] != 15 {
		t.Fatalf("unexpected strategy caps: %v", profile.StrategyCaps)
	}
}

func TestLoadRetrievalProfileEmptyPath(t *testing.T) {
	profile, err := LoadRetrievalProfile("")
	if err != nil || profile.RRFK != 0 || profile.FusionWeights != nil {
		t.Fatalf("expected empty profile, got %+v err=%v", profile, err)
	}
}

func TestLoadRetrievalProfileErrors(t *testing.T) {
	if _, err := LoadRetrievalProfile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("fusion_weights: [1, 2"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if _, err := LoadRetrievalProfile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
