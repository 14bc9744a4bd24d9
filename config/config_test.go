package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chunk.Size != 3000 {
		t.Errorf("expected Chunk.Size=3000, got %d", cfg.Chunk.Size)
	}
	if cfg.Chunk.Overlap != 200 {
		t.Errorf("expected Chunk.Overlap=200, got %d", cfg.Chunk.Overlap)
	}
	if cfg.Chunk.MaxChunks != 500 {
		t.Errorf("expected Chunk.MaxChunks=500, got %d", cfg.Chunk.MaxChunks)
	}
	if cfg.Search.Threshold != 0.2 {
		t.Errorf("expected Threshold=0.2, got %f", cfg.Search.Threshold)
	}
	if cfg.Search.MaxResults != 3 {
		t.Errorf("expected MaxResults=3, got %d", cfg.Search.MaxResults)
	}
	require.Equal(t, []int{2000, 1000}, cfg.Embedding.RetryLengths)
	require.Equal(t, 1000000, cfg.Ingest.LargeDocChars)
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
	configPath := filepath.Join(tmpDir, "kbrag.yaml")

	content := `
chunk:
  size: 1000
embedding:
  provider: mock
  timeout: 5s
search:
  max_results: 5
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	require.Equal(t, 1000, cfg.Chunk.Size)
	require.Equal(t, 200, cfg.Chunk.Overlap, "unset keys keep their defaults")
	require.Equal(t, "mock", cfg.Embedding.Provider)
	require.Equal(t, 5*time.Second, cfg.Embedding.Timeout)
	require.Equal(t, 5, cfg.Search.MaxResults)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "kbrag.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("chunk: [unclosed"), 0644))

	_, err := Load(configPath)
	require.Error(t, err)
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".kbrag"), 0755))

	content := `
search:
  threshold: 0.35
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".kbrag", "config.yaml"), []byte(content), 0644))

	cfg, err := LoadFromDir(tmpDir)
	require.NoError(t, err)
	require.Equal(t, 0.35, cfg.Search.Threshold)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kbrag.yaml")
	cfg := DefaultConfig()
	cfg.Search.MaxResults = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, loaded.Search.MaxResults)
}

func TestAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.APIKeyEnv = "KBRAG_TEST_KEY"
	t.Setenv("KBRAG_TEST_KEY", "sk-test")
	require.Equal(t, "sk-test", cfg.APIKey())

	cfg.Embedding.APIKeyEnv = ""
	require.Equal(t, "", cfg.APIKey())
}

func TestStoreDBPath(t *testing.T) {
	path := StoreDBPath("/home/user/kb")
	expected := filepath.Join("/home/user/kb", ".kbrag", "vectors.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}
}
