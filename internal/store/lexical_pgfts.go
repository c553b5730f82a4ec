package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localsearch/docsearch/internal/model"
)

// PostgresFTSIndex implements LexicalIndex using Postgres's built-in
// tsvector/ts_rank full-text search, for `lexical_backend: pg_fts`.
type PostgresFTSIndex struct {
	pool *pgxpool.Pool
}

var _ LexicalIndex = (*PostgresFTSIndex)(nil)

func NewPostgresFTSIndex(ctx context.Context, pool *pgxpool.Pool) (*PostgresFTSIndex, error) {
	idx := &PostgresFTSIndex{pool: pool}
	if err := idx.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize pg_fts schema: %w", err)
	}
	return idx, nil
}

func (s *PostgresFTSIndex) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS fts_chunks (
		chunk_id TEXT PRIMARY KEY,
		doc_id   TEXT NOT NULL,
		title    TEXT NOT NULL DEFAULT '',
		uri      TEXT NOT NULL DEFAULT '',
		text     TEXT NOT NULL,
		tsv      TSVECTOR GENERATED ALWAYS AS (to_tsvector('english', coalesce(title, '') || ' ' || text)) STORED
	);
	CREATE INDEX IF NOT EXISTS idx_fts_chunks_tsv ON fts_chunks USING GIN(tsv);
	CREATE INDEX IF NOT EXISTS idx_fts_chunks_doc ON fts_chunks(doc_id);
	`)
	return err
}

func (s *PostgresFTSIndex) UpsertChunks(ctx context.Context, chunks []*model.Chunk, titles, uris map[string]string) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
			INSERT INTO fts_chunks(chunk_id, doc_id, title, uri, text)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT(chunk_id) DO UPDATE SET
				doc_id = excluded.doc_id, title = excluded.title,
				uri = excluded.uri, text = excluded.text
		`, c.ID, c.DocID, titles[c.DocID], uris[c.DocID], c.Text)
		if err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresFTSIndex) DeleteDoc(ctx context.Context, docID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM fts_chunks WHERE doc_id = $1`, docID)
	return err
}

func (s *PostgresFTSIndex) Search(ctx context.Context, query string, topK int) ([]LexicalHit, error) {
	if query == "" {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, ts_rank(tsv, plainto_tsquery('english', $1)) AS score
		FROM fts_chunks
		WHERE tsv @@ plainto_tsquery('english', $1)
		ORDER BY score DESC
		LIMIT $2
	`, query, topK)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.ChunkID, &h.Score); err != nil {
			return nil, fmt.Errorf("failed to scan lexical hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PostgresFTSIndex) Close() error {
	return nil
}
