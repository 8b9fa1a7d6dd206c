package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.Model)
	assert.Equal(t, 3072, cfg.Embedder.Dimension)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 0.2, cfg.LLM.Temperature)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, "docs", cfg.Collections.Knowledge)
	assert.Equal(t, "audit_logs", cfg.Collections.Audit)
	assert.Equal(t, 5, cfg.Query.TopK)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesWithDefaultsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
embedder:
  model: text-embedding-3-small
  dimension: 1536
vector_store:
  type: qdrant
  qdrant:
    url: http://qdrant:6333
collections:
  knowledge: corpus
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 1536, cfg.Embedder.Dimension)
	assert.Equal(t, "http://qdrant:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, 30, cfg.VectorStore.Qdrant.TimeoutSecs)
	assert.Equal(t, "corpus", cfg.Collections.Knowledge)
	assert.Equal(t, "audit_logs", cfg.Collections.Audit)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBrokenConfigs(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg.Embedder.Dimension = -1
	assert.Error(t, cfg.Validate())
	cfg.Embedder.Dimension = 3072

	cfg.Collections.Audit = cfg.Collections.Knowledge
	assert.Error(t, cfg.Validate())
	cfg.Collections.Audit = "audit_logs"

	cfg.VectorStore.Type = "qdrant"
	cfg.VectorStore.Qdrant = nil
	assert.Error(t, cfg.Validate())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	cfg.Server.Addr = ":9999"

	require.NoError(t, Save(path, cfg))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", reloaded.Server.Addr)
}
