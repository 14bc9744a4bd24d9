package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for kbrag.
type Config struct {
	Chunk     ChunkConfig     `yaml:"chunk"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ChunkConfig controls character-window chunking.
type ChunkConfig struct {
	Size      int `yaml:"size"`
	Overlap   int `yaml:"overlap"`
	MaxChunks int `yaml:"max_chunks"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider     string        `yaml:"provider"` // "openai", "sdk", "mock"
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	APIKeyEnv    string        `yaml:"api_key_env"` // Environment variable for API key
	Dimension    int           `yaml:"dimension"`
	Timeout      time.Duration `yaml:"timeout"`
	CacheSize    int           `yaml:"cache_size"` // Query embedding cache entries (0 = disabled)
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	RetryLengths []int         `yaml:"retry_lengths"` // Truncation lengths for degraded retries
}

// SearchConfig holds retrieval configuration.
type SearchConfig struct {
	Threshold     float64 `yaml:"threshold"`
	MaxResults    int     `yaml:"max_results"`
	MinCandidates int     `yaml:"min_candidates"`
}

// IngestConfig holds knowledge-base ingestion configuration.
type IngestConfig struct {
	Includes         []string      `yaml:"includes"`
	Excludes         []string      `yaml:"excludes"`
	LargeDocChars    int           `yaml:"large_doc_chars"`
	PauseEveryChunks int           `yaml:"pause_every_chunks"`
	Pause            time.Duration `yaml:"pause"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunk: ChunkConfig{
			Size:      3000,
			Overlap:   200,
			MaxChunks: 500,
		},
		Embedding: EmbeddingConfig{
			Provider:     "openai",
			Model:        "text-embedding-3-small",
			BaseURL:      "https://api.openai.com/v1",
			APIKeyEnv:    "OPENAI_API_KEY",
			Dimension:    1536,
			Timeout:      60 * time.Second,
			CacheSize:    256,
			CacheTTL:     10 * time.Minute,
			RetryLengths: []int{2000, 1000},
		},
		Search: SearchConfig{
			Threshold:     0.2,
			MaxResults:    3,
			MinCandidates: 20,
		},
		Ingest: IngestConfig{
			Includes:         []string{"**/*.txt", "**/*.md"},
			Excludes:         []string{"**/.git/**", "**/.kbrag/**", "**/node_modules/**"},
			LargeDocChars:    1000000,
			PauseEveryChunks: 5,
			Pause:            time.Second,
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

// LoadFromDir loads configuration from a directory (looks for kbrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "kbrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".kbrag", "config.yaml")
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

// APIKey reads the embedding API key from the configured environment variable.
func (c *Config) APIKey() string {
	if c.Embedding.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// StoreDBPath returns the path to the vector database.
func StoreDBPath(dir string) string {
	return filepath.Join(dir, ".kbrag", "vectors.db")
}

// EnsureDataDir ensures the .kbrag directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".kbrag"), 0755)
}
