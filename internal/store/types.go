// Package store provides the persistence ports for the indexing pipeline —
// MetadataStore, LexicalIndex and VectorStore — plus their SQLite/HNSW and
// Postgres/pgvector backends.
package store

import (
	"context"

	"github.com/localsearch/docsearch/internal/model"
)

// MetadataStore persists Sources, Documents, Chunks and Jobs, and exposes
// the queue queries the JobRunner polls.
type MetadataStore interface {
	UpsertSource(ctx context.Context, src *model.Source) error
	GetSource(ctx context.Context, id string) (*model.Source, error)
	ListSources(ctx context.Context) ([]*model.Source, error)

	UpsertDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	GetDocumentByURI(ctx context.Context, sourceID, uri string) (*model.Document, error)
	ListDocumentsBySource(ctx context.Context, sourceID string) ([]*model.Document, error)
	MarkDocumentDeleted(ctx context.Context, id string) error

	UpsertChunk(ctx context.Context, chunk *model.Chunk) error
	ListChunks(ctx context.Context, docID string) ([]*model.Chunk, error)
	GetChunk(ctx context.Context, id string) (*model.Chunk, error)
	DeleteChunks(ctx context.Context, docID string) error

	UpsertJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context) ([]*model.Job, error)
	GetPendingJobs(ctx context.Context, limit int) ([]*model.Job, error)

	Close() error
}

// LexicalHit is a single scored result from the LexicalIndex.
type LexicalHit struct {
	ChunkID string
	Score   float64
}

// LexicalIndex is the inverted-index port over chunk text.
type LexicalIndex interface {
	// UpsertChunks indexes chunks, denormalizing title/uri from the parent
	// document. Idempotent: any existing row for a chunk_id is replaced.
	UpsertChunks(ctx context.Context, chunks []*model.Chunk, titles, uris map[string]string) error
	DeleteDoc(ctx context.Context, docID string) error
	// Search returns up to topK hits ranked by relevance, higher is better.
	// A lexical-syntax error in query must not raise; it returns an empty list.
	Search(ctx context.Context, query string, topK int) ([]LexicalHit, error)
	Close() error
}

// VectorHit is a single scored result from the VectorStore.
type VectorHit struct {
	ChunkID string
	Score   float32
}

// VectorStore is the approximate-nearest-neighbor port over chunk embeddings.
// The method comments describe the HNSW backend; the pgvector backend keeps
// one row per chunk instead, upserting in place, deleting rows in DeleteDoc
// and querying without oversampling.
type VectorStore interface {
	// UpsertEmbeddings marks any prior mapping for each chunk deleted, then
	// inserts a fresh mapping and adds the L2-normalized vector to the ANN
	// index. len(chunks) must equal len(embeddings).
	UpsertEmbeddings(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error
	DeleteDoc(ctx context.Context, docID string) error
	// Query returns up to topK nearest hits by inner product over
	// L2-normalized vectors, after oversampling and filtering soft-deleted
	// and unknown sidecar rows.
	Query(ctx context.Context, vector []float32, topK int) ([]VectorHit, error)
	// Compact rebuilds the ANN index from only the undeleted mappings.
	// Optional maintenance operation, not on the core hot path.
	Compact(ctx context.Context) error
	Close() error
}
