package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DataDir is the per-project directory holding the local index.
const DataDir = ".docqa"

// Config holds all configuration for docqa.
type Config struct {
	Chunk     ChunkConfig     `yaml:"chunk"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	LLM       LLMConfig       `yaml:"llm"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ChunkConfig holds chunking configuration.
type ChunkConfig struct {
	Size int `yaml:"size"` // characters per chunk
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // "openai", "mock"
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"` // Environment variable for API key
	BaseURL           string  `yaml:"base_url"`
	Dimension         int     `yaml:"dimension"`
	Concurrency       int     `yaml:"concurrency"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
}

// Timeout returns the per-call embedding timeout.
func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Provider   string         `yaml:"provider"` // "bolt", "pinecone", "memory"
	Name       string         `yaml:"name"`
	Namespace  string         `yaml:"namespace"`
	Metric     string         `yaml:"metric"`
	Path       string         `yaml:"path"`
	AutoCreate bool           `yaml:"auto_create"`
	Pinecone   PineconeConfig `yaml:"pinecone"`
}

// PineconeConfig holds settings for the hosted index.
type PineconeConfig struct {
	Host      string `yaml:"host"` // data plane host; resolved from the control plane when empty
	APIKeyEnv string `yaml:"api_key_env"`
	Cloud     string `yaml:"cloud"`
	Region    string `yaml:"region"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
}

// LLMConfig holds generative model configuration.
type LLMConfig struct {
	Provider    string `yaml:"provider"` // "openai", "echo"
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	BaseURL     string `yaml:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CacheConfig holds extracted-text cache configuration.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
	MaxEntries int `yaml:"max_entries"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunk: ChunkConfig{
			Size: 500,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-ada-002",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   1536,
			Concurrency: 8,
			TimeoutSecs: 30,
			MaxRetries:  2,
		},
		Index: IndexConfig{
			Provider:  "bolt",
			Name:      "rag-agent",
			Namespace: "ns1",
			Metric:    "cosine",
			Path:      filepath.Join(DataDir, "index.db"),
			Pinecone: PineconeConfig{
				APIKeyEnv: "PINECONE_API_KEY",
				Cloud:     "aws",
				Region:    "us-east-1",
			},
		},
		Retrieve: RetrieveConfig{
			TopK: 10,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4",
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 120,
		},
		Cache: CacheConfig{
			TTLMinutes: 60,
			MaxEntries: 256,
		},
		Server: ServerConfig{
			Port: 5000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docqa.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "docqa.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, DataDir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Chunk.Size <= 0 {
		return fmt.Errorf("chunk.size must be positive, got %d", c.Chunk.Size)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.Concurrency <= 0 {
		return fmt.Errorf("embedding.concurrency must be positive, got %d", c.Embedding.Concurrency)
	}
	if c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("embedding.max_retries must not be negative")
	}
	switch c.Embedding.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedding.Provider)
	}
	switch c.Index.Provider {
	case "bolt", "pinecone", "memory":
	default:
		return fmt.Errorf("unknown index provider: %q", c.Index.Provider)
	}
	if c.Index.Namespace == "" {
		return fmt.Errorf("index.namespace is required")
	}
	if c.Index.Metric != "cosine" {
		return fmt.Errorf("unsupported index metric: %q", c.Index.Metric)
	}
	switch c.LLM.Provider {
	case "openai", "echo":
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}
	return nil
}

// IndexDBPath returns the path to the local index database for a project dir.
func (c *Config) IndexDBPath(dir string) string {
	if filepath.IsAbs(c.Index.Path) {
		return c.Index.Path
	}
	return filepath.Join(dir, c.Index.Path)
}

// EnsureDataDir ensures the directory holding the index database exists.
func (c *Config) EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Dir(c.IndexDBPath(dir)), 0755)
}
