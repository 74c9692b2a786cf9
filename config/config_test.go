package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunk.Size != 500 {
		t.Errorf("expected Chunk.Size=500, got %d", cfg.Chunk.Size)
	}
	if cfg.Embedding.Dimension != 1536 {
		t.Errorf("expected Dimension=1536, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Embedding.Model != "text-embedding-ada-002" {
		t.Errorf("expected ada-002 model, got %s", cfg.Embedding.Model)
	}
	if cfg.Index.Namespace != "ns1" {
		t.Errorf("expected Namespace=ns1, got %s", cfg.Index.Namespace)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.LLM.Model != "gpt-4" {
		t.Errorf("expected LLM model gpt-4, got %s", cfg.LLM.Model)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("expected Port=5000, got %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "docqa.yaml")

	content := `
chunk:
  size: 256
embedding:
  provider: mock
  dimension: 64
  timeout_secs: 5
retrieve:
  top_k: 3
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Chunk.Size != 256 {
		t.Errorf("expected Chunk.Size=256, got %d", cfg.Chunk.Size)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("expected mock provider, got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Timeout() != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Embedding.Timeout())
	}
	if cfg.Retrieve.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieve.TopK)
	}
	// Unset keys keep their defaults.
	if cfg.Embedding.Concurrency != 8 {
		t.Errorf("expected Concurrency=8, got %d", cfg.Embedding.Concurrency)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, DataDir), 0755); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, DataDir, "config.yaml")

	content := `
index:
  namespace: docs
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.Namespace != "docs" {
		t.Errorf("expected Namespace=docs, got %s", cfg.Index.Namespace)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	cfg := DefaultConfig()
	cfg.Index.Provider = "pinecone"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Index.Provider != "pinecone" {
		t.Errorf("expected pinecone, got %s", loaded.Index.Provider)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunk.Size = 0 }},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"zero concurrency", func(c *Config) { c.Embedding.Concurrency = 0 }},
		{"unknown embedding provider", func(c *Config) { c.Embedding.Provider = "voyage" }},
		{"unknown index provider", func(c *Config) { c.Index.Provider = "chroma" }},
		{"empty namespace", func(c *Config) { c.Index.Namespace = "" }},
		{"euclidean metric", func(c *Config) { c.Index.Metric = "euclidean" }},
		{"unknown llm", func(c *Config) { c.LLM.Provider = "claude" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIndexDBPath(t *testing.T) {
	cfg := DefaultConfig()
	path := cfg.IndexDBPath("/home/user/project")
	expected := filepath.Join("/home/user/project", ".docqa", "index.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg.Index.Path = "/var/lib/docqa/index.db"
	if got := cfg.IndexDBPath("/home/user/project"); got != cfg.Index.Path {
		t.Errorf("absolute path should be kept, got %s", got)
	}
}
