package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/localsearch/docsearch/internal/model"
)

// PostgresVectorStore implements VectorStore using the pgvector extension,
// for `vector_backend: pgvector`.
type PostgresVectorStore struct {
	pool *pgxpool.Pool
	dim  int
}

var _ VectorStore = (*PostgresVectorStore)(nil)

func NewPostgresVectorStore(ctx context.Context, pool *pgxpool.Pool, dim int) (*PostgresVectorStore, error) {
	s := &PostgresVectorStore{pool: pool, dim: dim}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize pgvector schema: %w", err)
	}
	return s, nil
}

func (s *PostgresVectorStore) initSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS chunk_embeddings (
		chunk_id  TEXT PRIMARY KEY,
		doc_id    TEXT NOT NULL,
		embedding VECTOR(%d) NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_doc ON chunk_embeddings(doc_id);
	CREATE INDEX IF NOT EXISTS idx_chunk_embeddings_ann
		ON chunk_embeddings USING hnsw (embedding vector_cosine_ops);
	`, s.dim))
	return err
}

func (s *PostgresVectorStore) UpsertEmbeddings(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks/embeddings length mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, c := range chunks {
		vec := embeddings[i]
		if len(vec) != s.dim {
			return fmt.Errorf("embedding dimension mismatch for chunk %s: expected %d, got %d", c.ID, s.dim, len(vec))
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO chunk_embeddings(chunk_id, doc_id, embedding)
			VALUES ($1, $2, $3)
			ON CONFLICT(chunk_id) DO UPDATE SET
				doc_id = excluded.doc_id, embedding = excluded.embedding
		`, c.ID, c.DocID, pgvector.NewVector(vec))
		if err != nil {
			return fmt.Errorf("failed to upsert embedding for chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresVectorStore) DeleteDoc(ctx context.Context, docID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunk_embeddings WHERE doc_id = $1`, docID)
	return err
}

func (s *PostgresVectorStore) Query(ctx context.Context, vector []float32, topK int) ([]VectorHit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, 1 - (embedding <=> $1) AS score
		FROM chunk_embeddings
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(&h.ChunkID, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Compact is a no-op: pgvector's HNSW index is maintained by Postgres
// itself and has no userspace compaction step.
func (s *PostgresVectorStore) Compact(ctx context.Context) error {
	return nil
}

func (s *PostgresVectorStore) Close() error {
	return nil
}
