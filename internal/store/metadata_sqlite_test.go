package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsearch/docsearch/internal/model"
)

func newTestMetadataStore(t *testing.T) *SQLiteMetadataStore {
	t.Helper()
	s, err := NewSQLiteMetadataStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteMetadataStore_SourceRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	src := &model.Source{ID: "src-1", Name: "docs", Path: "/tmp/docs", Config: map[string]string{"recursive": "true"}}
	require.NoError(t, s.UpsertSource(ctx, src))

	got, err := s.GetSource(ctx, "src-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "docs", got.Name)
	assert.Equal(t, "true", got.Config["recursive"])
	assert.False(t, got.CreatedAt.IsZero())

	src.Name = "docs-renamed"
	require.NoError(t, s.UpsertSource(ctx, src))

	got2, err := s.GetSource(ctx, "src-1")
	require.NoError(t, err)
	assert.Equal(t, "docs-renamed", got2.Name)
	assert.Equal(t, got.CreatedAt.Unix(), got2.CreatedAt.Unix())

	list, err := s.ListSources(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLiteMetadataStore_GetSource_NotFound(t *testing.T) {
	s := newTestMetadataStore(t)
	got, err := s.GetSource(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteMetadataStore_DocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	doc := &model.Document{
		ID: "doc-1", SourceID: "src-1", URI: "file:///tmp/a.md",
		Title: "A", MimeType: "text/markdown", SizeBytes: 128,
		MTime: time.Now().UTC(), DocHash: "abc123", Status: model.DocumentStatusNew,
	}
	require.NoError(t, s.UpsertDocument(ctx, doc))

	got, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.DocumentStatusNew, got.Status)

	byURI, err := s.GetDocumentByURI(ctx, "src-1", "file:///tmp/a.md")
	require.NoError(t, err)
	require.NotNil(t, byURI)
	assert.Equal(t, "doc-1", byURI.ID)

	list, err := s.ListDocumentsBySource(ctx, "src-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.MarkDocumentDeleted(ctx, "doc-1"))
	got2, err := s.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, model.DocumentStatusDeleted, got2.Status)
}

func TestSQLiteMetadataStore_ChunkRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	c1 := &model.Chunk{ID: "chunk-1", DocID: "doc-1", ChunkIndex: 0, Text: "hello", StartOffset: 0, EndOffset: 5, ChunkHash: "h1"}
	c2 := &model.Chunk{ID: "chunk-2", DocID: "doc-1", ChunkIndex: 1, Text: "world", StartOffset: 5, EndOffset: 10, ChunkHash: "h2"}
	require.NoError(t, s.UpsertChunk(ctx, c1))
	require.NoError(t, s.UpsertChunk(ctx, c2))

	list, err := s.ListChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "chunk-1", list[0].ID)

	got, err := s.GetChunk(ctx, "chunk-2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "world", got.Text)

	require.NoError(t, s.DeleteChunks(ctx, "doc-1"))
	list2, err := s.ListChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, list2)
}

func TestSQLiteMetadataStore_JobLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestMetadataStore(t)

	job := &model.Job{ID: "job-1", Type: model.JobTypeIndexDoc, Status: model.JobStatusPending, Payload: map[string]string{"doc_id": "doc-1"}}
	require.NoError(t, s.UpsertJob(ctx, job))

	pending, err := s.GetPendingJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "doc-1", pending[0].Payload["doc_id"])

	job.Status = model.JobStatusRunning
	job.Progress = 0.5
	require.NoError(t, s.UpsertJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, got.Status)
	assert.Equal(t, 0.5, got.Progress)

	pendingAfter, err := s.GetPendingJobs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pendingAfter)

	all, err := s.ListJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
