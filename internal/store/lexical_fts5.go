package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)

	"github.com/localsearch/docsearch/internal/model"
)

// SQLiteFTS5Index implements LexicalIndex using SQLite's FTS5 extension.
type SQLiteFTS5Index struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

var _ LexicalIndex = (*SQLiteFTS5Index)(nil)

// NewSQLiteFTS5Index opens (creating if absent) an FTS5 lexical index at path.
// An empty path opens an in-memory index, for tests.
func NewSQLiteFTS5Index(path string) (*SQLiteFTS5Index, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &SQLiteFTS5Index{db: db, path: path}
	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteFTS5Index) initSchema() error {
	schema := `
	CREATE VIRTUAL TABLE IF NOT EXISTS fts_chunks USING fts5(
		chunk_id UNINDEXED,
		doc_id UNINDEXED,
		title,
		uri UNINDEXED,
		text,
		tokenize='unicode61'
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertChunks replaces any existing rows for each chunk_id, then inserts
// the fresh row with title/uri denormalized from the parent document.
func (s *SQLiteFTS5Index) UpsertChunks(ctx context.Context, chunks []*model.Chunk, titles, uris map[string]string) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("lexical index is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleteStmt, err := tx.PrepareContext(ctx, `DELETE FROM fts_chunks WHERE chunk_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer deleteStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO fts_chunks(chunk_id, doc_id, title, uri, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insertStmt.Close()

	for _, c := range chunks {
		if _, err := deleteStmt.ExecContext(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to delete existing chunk %s: %w", c.ID, err)
		}
		if _, err := insertStmt.ExecContext(ctx, c.ID, c.DocID, titles[c.DocID], uris[c.DocID], c.Text); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteDoc removes all rows for a document.
func (s *SQLiteFTS5Index) DeleteDoc(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("lexical index is closed")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM fts_chunks WHERE doc_id = ?`, docID)
	return err
}

// Search returns up to topK chunk hits, bm25() negated so higher is better.
// A malformed FTS5 MATCH query returns an empty list rather than an error.
func (s *SQLiteFTS5Index) Search(ctx context.Context, query string, topK int) ([]LexicalHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, bm25(fts_chunks) AS score
		FROM fts_chunks
		WHERE fts_chunks MATCH ?
		ORDER BY score
		LIMIT ?
	`, query, topK)
	if err != nil {
		if strings.Contains(err.Error(), "fts5:") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var chunkID string
		var score float64
		if err := rows.Scan(&chunkID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan lexical hit: %w", err)
		}
		hits = append(hits, LexicalHit{ChunkID: chunkID, Score: -score})
	}
	return hits, rows.Err()
}

// Close closes the underlying database handle.
func (s *SQLiteFTS5Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
