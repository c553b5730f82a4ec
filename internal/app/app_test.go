package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsearch/docsearch/internal/config"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	dir := t.TempDir()
	cfg.Storage.DataDir = dir
	cfg.Storage.SQLitePath = filepath.Join(dir, "metadata.db")
	cfg.Storage.VectorDir = filepath.Join(dir, "vector_index")
	cfg.Embedding.Dim = 4
	return cfg
}

func TestNew_WiresSQLiteBackendsByDefault(t *testing.T) {
	a, err := New(context.Background(), newTestConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.NotNil(t, a.Metadata)
	assert.NotNil(t, a.Lexical)
	assert.NotNil(t, a.Vector)
	assert.NotNil(t, a.Embedder)
	assert.NotNil(t, a.Index)
	assert.NotNil(t, a.Runner)
	assert.NotNil(t, a.Search)
}

func TestNew_RunnerStartStop(t *testing.T) {
	a, err := New(context.Background(), newTestConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	a.Runner.Start(ctx)
	cancel()
	a.Runner.Stop()
}
