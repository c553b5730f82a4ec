package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsearch/docsearch/internal/model"
)

// testPostgresDSN returns the DSN configured for integration testing, or
// skips the test. These exercise real schema DDL and extensions
// (pgvector's hnsw operator class) that no in-memory fake can stand in for.
func testPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("DOCSEARCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DOCSEARCH_TEST_POSTGRES_DSN not set, skipping postgres-backed store tests")
	}
	return dsn
}

func TestPostgresMetadataStore_SourceRoundTrip(t *testing.T) {
	dsn := testPostgresDSN(t)
	ctx := context.Background()

	s, err := NewPostgresMetadataStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	src := &model.Source{ID: "pg-src-1", Name: "docs", Path: "/tmp/docs"}
	require.NoError(t, s.UpsertSource(ctx, src))

	got, err := s.GetSource(ctx, "pg-src-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "docs", got.Name)
}

func TestPostgresFTSIndex_Search(t *testing.T) {
	dsn := testPostgresDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	idx, err := NewPostgresFTSIndex(ctx, pool)
	require.NoError(t, err)

	chunks := []*model.Chunk{{ID: "pg-c1", DocID: "pg-d1", Text: "the quick brown fox"}}
	require.NoError(t, idx.UpsertChunks(ctx, chunks, nil, nil))

	hits, err := idx.Search(ctx, "fox", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "pg-c1", hits[0].ChunkID)
}

func TestPostgresVectorStore_Query(t *testing.T) {
	dsn := testPostgresDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	vs, err := NewPostgresVectorStore(ctx, pool, 3)
	require.NoError(t, err)

	chunks := []*model.Chunk{{ID: "pg-vc1", DocID: "pg-vd1"}}
	embeddings := [][]float32{{1, 0, 0}}
	require.NoError(t, vs.UpsertEmbeddings(ctx, chunks, embeddings))

	hits, err := vs.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "pg-vc1", hits[0].ChunkID)
}
