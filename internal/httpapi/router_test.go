package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsearch/docsearch/internal/chunk"
	"github.com/localsearch/docsearch/internal/extract"
	"github.com/localsearch/docsearch/internal/index"
	"github.com/localsearch/docsearch/internal/model"
	"github.com/localsearch/docsearch/internal/search"
	"github.com/localsearch/docsearch/internal/store"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()

	metadata, err := store.NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = metadata.Close() })

	lexical, err := store.NewSQLiteFTS5Index("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = lexical.Close() })

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	vector, err := store.NewHNSWVectorStore(db, filepath.Join(t.TempDir(), "vector_index"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = vector.Close() })

	embedder := &fakeEmbedder{dim: 4}

	indexSvc := &index.Service{
		Metadata:           metadata,
		Lexical:            lexical,
		Vector:             vector,
		Extractor:          extract.NewRegistry(extract.Config{}),
		Chunker:            chunk.NewChunker(),
		Embedder:           embedder,
		ChunkSizeTokens:    50,
		ChunkOverlapTokens: 5,
	}

	searchSvc := &search.Service{
		Metadata: metadata,
		Lexical:  lexical,
		Vector:   vector,
		Embedder: embedder,
	}

	return Deps{Metadata: metadata, Index: indexSvc, Search: searchSvc}
}

func TestHealth_ReturnsOK(t *testing.T) {
	router := NewRouter(newTestDeps(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateAndListSources(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	reqBody, _ := json.Marshal(map[string]any{"name": "docs", "path": "/tmp/docs"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sources/", bytes.NewReader(reqBody))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "docs", created.Name)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/sources/", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var sources []*model.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sources))
	require.Len(t, sources, 1)
	assert.Equal(t, created.ID, sources[0].ID)
}

func TestCreateSource_MissingFields_ReturnsBadRequest(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	reqBody, _ := json.Marshal(map[string]any{"name": "docs"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sources/", bytes.NewReader(reqBody))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanSource_UnknownID_ReturnsNotFound(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sources/does-not-exist/scan", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanSource_EnqueuesPendingJob(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)
	ctx := context.Background()

	source := &model.Source{ID: "src-1", Name: "docs", Path: t.TempDir()}
	require.NoError(t, deps.Metadata.UpsertSource(ctx, source))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sources/src-1/scan", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, model.JobTypeScanSource, job.Type)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, "src-1", job.Payload["source_id"])

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID, nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetJob_UnknownID_ReturnsNotFound(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDocuments_RequiresSourceID(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/documents/", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentsAndChunks_RoundTrip(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)
	ctx := context.Background()

	doc := &model.Document{ID: "doc-1", SourceID: "src-1", URI: "file:///a.md", Title: "Apples"}
	require.NoError(t, deps.Metadata.UpsertDocument(ctx, doc))
	chunkRow := &model.Chunk{ID: "chunk-1", DocID: "doc-1", Text: "apples are great"}
	require.NoError(t, deps.Metadata.UpsertChunk(ctx, chunkRow))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/documents/?source_id=src-1", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []*model.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/documents/doc-1", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/documents/doc-1/chunks", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var chunks []*model.Chunk
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chunks))
	require.Len(t, chunks, 1)
	assert.Equal(t, "chunk-1", chunks[0].ID)
}

func TestSearch_ReturnsResults(t *testing.T) {
	deps := newTestDeps(t)
	router := NewRouter(deps)
	ctx := context.Background()

	doc := &model.Document{ID: "doc-1", SourceID: "src-1", URI: "file:///a.md", Title: "Apples"}
	require.NoError(t, deps.Metadata.UpsertDocument(ctx, doc))
	chunkRow := &model.Chunk{ID: "chunk-1", DocID: "doc-1", Text: "apples are great fruit"}
	require.NoError(t, deps.Metadata.UpsertChunk(ctx, chunkRow))
	require.NoError(t, deps.Search.Lexical.UpsertChunks(ctx, []*model.Chunk{chunkRow}, map[string]string{"doc-1": "Apples"}, map[string]string{"doc-1": "file:///a.md"}))
	require.NoError(t, deps.Search.Vector.UpsertEmbeddings(ctx, []*model.Chunk{chunkRow}, [][]float32{{1, 0, 0, 0}}))

	reqBody, _ := json.Marshal(map[string]any{"query": "apples", "top_k": 5})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(reqBody))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []*search.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-1", results[0].ChunkID)
}

func TestSearch_InvalidBody_ReturnsBadRequest(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte("not json")))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
