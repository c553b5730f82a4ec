package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)

	"github.com/localsearch/docsearch/internal/model"
)

// SQLiteMetadataStore implements MetadataStore over a single-writer SQLite
// database in WAL journal mode.
type SQLiteMetadataStore struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

var _ MetadataStore = (*SQLiteMetadataStore)(nil)

// NewSQLiteMetadataStore opens (creating if absent) the metadata database at
// path. An empty path opens an in-memory database, for tests.
func NewSQLiteMetadataStore(path string) (*SQLiteMetadataStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &SQLiteMetadataStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// DB returns the underlying connection, for backends (e.g. the vector
// sidecar) that share this process's single SQLite writer.
func (s *SQLiteMetadataStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteMetadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		path       TEXT NOT NULL,
		config     TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT PRIMARY KEY,
		source_id  TEXT NOT NULL,
		uri        TEXT NOT NULL UNIQUE,
		title      TEXT NOT NULL DEFAULT '',
		mime_type  TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		mtime      TEXT NOT NULL,
		doc_hash   TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source_id);

	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		doc_id       TEXT NOT NULL,
		chunk_index  INTEGER NOT NULL,
		text         TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset   INTEGER NOT NULL,
		chunk_hash   TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id, chunk_index);

	CREATE TABLE IF NOT EXISTS jobs (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		status     TEXT NOT NULL,
		progress   REAL NOT NULL DEFAULT 0,
		error      TEXT NOT NULL DEFAULT '',
		payload    TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const timeLayout = time.RFC3339Nano

func (s *SQLiteMetadataStore) UpsertSource(ctx context.Context, src *model.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now

	cfg, err := encodeStringMap(src.Config)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sources(id, name, path, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			config = excluded.config,
			updated_at = excluded.updated_at
	`, src.ID, src.Name, src.Path, cfg, src.CreatedAt.Format(timeLayout), src.UpdatedAt.Format(timeLayout))
	return err
}

func (s *SQLiteMetadataStore) GetSource(ctx context.Context, id string) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, path, config, created_at, updated_at FROM sources WHERE id = ?`, id)
	return scanSource(row)
}

func (s *SQLiteMetadataStore) ListSources(ctx context.Context) ([]*model.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, path, config, created_at, updated_at FROM sources ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*model.Source, error) {
	var src model.Source
	var cfg, createdAt, updatedAt string
	if err := row.Scan(&src.ID, &src.Name, &src.Path, &cfg, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m, err := decodeStringMap(cfg)
	if err != nil {
		return nil, err
	}
	src.Config = m
	src.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	src.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &src, nil
}

func (s *SQLiteMetadataStore) UpsertDocument(ctx context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents(id, source_id, uri, title, mime_type, size_bytes, mtime, doc_hash, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			uri = excluded.uri,
			title = excluded.title,
			mime_type = excluded.mime_type,
			size_bytes = excluded.size_bytes,
			mtime = excluded.mtime,
			doc_hash = excluded.doc_hash,
			status = excluded.status,
			updated_at = excluded.updated_at
	`, doc.ID, doc.SourceID, doc.URI, doc.Title, doc.MimeType, doc.SizeBytes,
		doc.MTime.Format(timeLayout), doc.DocHash, string(doc.Status),
		doc.CreatedAt.Format(timeLayout), doc.UpdatedAt.Format(timeLayout))
	return err
}

func (s *SQLiteMetadataStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelect+` WHERE id = ?`, id)
	return scanDocument(row)
}

func (s *SQLiteMetadataStore) GetDocumentByURI(ctx context.Context, sourceID, uri string) (*model.Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelect+` WHERE source_id = ? AND uri = ?`, sourceID, uri)
	return scanDocument(row)
}

func (s *SQLiteMetadataStore) ListDocumentsBySource(ctx context.Context, sourceID string) ([]*model.Document, error) {
	rows, err := s.db.QueryContext(ctx, documentSelect+` WHERE source_id = ? ORDER BY created_at`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteMetadataStore) MarkDocumentDeleted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(model.DocumentStatusDeleted), time.Now().UTC().Format(timeLayout), id)
	return err
}

const documentSelect = `SELECT id, source_id, uri, title, mime_type, size_bytes, mtime, doc_hash, status, created_at, updated_at FROM documents`

func scanDocument(row rowScanner) (*model.Document, error) {
	var d model.Document
	var mtime, createdAt, updatedAt, status string
	if err := row.Scan(&d.ID, &d.SourceID, &d.URI, &d.Title, &d.MimeType, &d.SizeBytes,
		&mtime, &d.DocHash, &status, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	d.MTime, _ = time.Parse(timeLayout, mtime)
	d.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	d.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &d, nil
}

func (s *SQLiteMetadataStore) UpsertChunk(ctx context.Context, chunk *model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = now
	}
	chunk.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks(id, doc_id, chunk_index, text, start_offset, end_offset, chunk_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc_id = excluded.doc_id,
			chunk_index = excluded.chunk_index,
			text = excluded.text,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			chunk_hash = excluded.chunk_hash,
			updated_at = excluded.updated_at
	`, chunk.ID, chunk.DocID, chunk.ChunkIndex, chunk.Text, chunk.StartOffset, chunk.EndOffset,
		chunk.ChunkHash, chunk.CreatedAt.Format(timeLayout), chunk.UpdatedAt.Format(timeLayout))
	return err
}

func (s *SQLiteMetadataStore) ListChunks(ctx context.Context, docID string) ([]*model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelect+` WHERE doc_id = ? ORDER BY chunk_index ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteMetadataStore) GetChunk(ctx context.Context, id string) (*model.Chunk, error) {
	row := s.db.QueryRowContext(ctx, chunkSelect+` WHERE id = ?`, id)
	return scanChunk(row)
}

func (s *SQLiteMetadataStore) DeleteChunks(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID)
	return err
}

const chunkSelect = `SELECT id, doc_id, chunk_index, text, start_offset, end_offset, chunk_hash, created_at, updated_at FROM chunks`

func scanChunk(row rowScanner) (*model.Chunk, error) {
	var c model.Chunk
	var createdAt, updatedAt string
	if err := row.Scan(&c.ID, &c.DocID, &c.ChunkIndex, &c.Text, &c.StartOffset, &c.EndOffset,
		&c.ChunkHash, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	c.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &c, nil
}

func (s *SQLiteMetadataStore) UpsertJob(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	payload, err := encodeStringMap(job.Payload)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs(id, type, status, progress, error, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			status = excluded.status,
			progress = excluded.progress,
			error = excluded.error,
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, job.ID, string(job.Type), string(job.Status), job.Progress, job.Error, payload,
		job.CreatedAt.Format(timeLayout), job.UpdatedAt.Format(timeLayout))
	return err
}

func (s *SQLiteMetadataStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, jobSelect+` WHERE id = ?`, id)
	return scanJob(row)
}

func (s *SQLiteMetadataStore) ListJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := s.db.QueryContext(ctx, jobSelect+` ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLiteMetadataStore) GetPendingJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		jobSelect+` WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		string(model.JobStatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

const jobSelect = `SELECT id, type, status, progress, error, payload, created_at, updated_at FROM jobs`

func scanJob(row rowScanner) (*model.Job, error) {
	var j model.Job
	var jobType, status, payload, createdAt, updatedAt string
	if err := row.Scan(&j.ID, &jobType, &status, &j.Progress, &j.Error, &payload, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	j.Type = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	m, err := decodeStringMap(payload)
	if err != nil {
		return nil, err
	}
	j.Payload = m
	j.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	j.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &j, nil
}

func (s *SQLiteMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
