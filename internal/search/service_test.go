package search

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsearch/docsearch/internal/model"
	"github.com/localsearch/docsearch/internal/store"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func newTestSearchService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()

	metadata, err := store.NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = metadata.Close() })

	lexical, err := store.NewSQLiteFTS5Index("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	vector, err := store.NewHNSWVectorStore(db, filepath.Join(t.TempDir(), "vector_index"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vector.Close() })

	doc := &model.Document{ID: "doc-1", SourceID: "src-1", URI: "file:///a.md", Title: "Apples"}
	require.NoError(t, metadata.UpsertDocument(ctx, doc))
	chunk1 := &model.Chunk{ID: "chunk-1", DocID: "doc-1", Text: "apples are great fruit"}
	require.NoError(t, metadata.UpsertChunk(ctx, chunk1))

	require.NoError(t, lexical.UpsertChunks(ctx, []*model.Chunk{chunk1}, map[string]string{"doc-1": "Apples"}, map[string]string{"doc-1": "file:///a.md"}))
	require.NoError(t, vector.UpsertEmbeddings(ctx, []*model.Chunk{chunk1}, [][]float32{{1, 0, 0}}))

	return &Service{
		Metadata: metadata,
		Lexical:  lexical,
		Vector:   vector,
		Embedder: &stubEmbedder{vec: []float32{1, 0, 0}},
	}
}

func TestService_Search_ReturnsHydratedResult(t *testing.T) {
	s := newTestSearchService(t)
	results, err := s.Search(context.Background(), "apples", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-1", results[0].ChunkID)
	assert.Equal(t, "Apples", results[0].DocTitle)
	assert.Equal(t, "file:///a.md", results[0].DocURI)
	assert.Greater(t, results[0].Score, 0.0)
}

func TestService_Search_EmptyQuery_DoesNotPanicOrError(t *testing.T) {
	s := newTestSearchService(t)
	results, err := s.Search(context.Background(), "", 10)
	assert.NoError(t, err)
	assert.NotNil(t, results)
}

func TestService_Search_LimitsResults(t *testing.T) {
	ctx := context.Background()
	s := newTestSearchService(t)

	for i := 2; i <= 5; i++ {
		id := "chunk-" + string(rune('0'+i))
		chunk := &model.Chunk{ID: id, DocID: "doc-1", Text: "apples are tasty fruit number"}
		require.NoError(t, s.Metadata.UpsertChunk(ctx, chunk))
		require.NoError(t, s.Lexical.UpsertChunks(ctx, []*model.Chunk{chunk}, map[string]string{"doc-1": "Apples"}, map[string]string{"doc-1": "file:///a.md"}))
		require.NoError(t, s.Vector.UpsertEmbeddings(ctx, []*model.Chunk{chunk}, [][]float32{{1, 0, 0}}))
	}

	results, err := s.Search(ctx, "apples", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
