package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "memory", cfg.Graph.Backend)
	assert.Equal(t, "memory", cfg.Memory.Backend)
	assert.Equal(t, "memory", cfg.Retrieval.Backend)
	assert.Equal(t, 70, cfg.Tutor.PassThreshold)
	assert.Equal(t, 40, cfg.Tutor.PartialFloor)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MOSAIC_GRAPH_BACKEND", "neo4j")
	t.Setenv("MOSAIC_GRAPH_URI", "bolt://graph.internal:7687")
	t.Setenv("MOSAIC_TUTOR_PASS_THRESHOLD", "80")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "neo4j", cfg.Graph.Backend)
	assert.Equal(t, "bolt://graph.internal:7687", cfg.Graph.URI)
	assert.Equal(t, 80, cfg.Tutor.PassThreshold)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mosaic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: ":9090"
memory:
  backend: redis
  addr: cache.internal:6379
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Listen)
	assert.Equal(t, "redis", cfg.Memory.Backend)
	assert.Equal(t, "cache.internal:6379", cfg.Memory.Addr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MOSAIC_MODEL_PROVIDER", "carrier-pigeon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	t.Setenv("MOSAIC_TUTOR_PARTIAL_FLOOR", "90")
	_, err := Load("")
	assert.Error(t, err)
}
