package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localsearch/docsearch/internal/model"
)

// PostgresMetadataStore implements MetadataStore over a pooled Postgres
// connection, for deployments with `metadata_backend: postgres`.
type PostgresMetadataStore struct {
	pool *pgxpool.Pool
}

var _ MetadataStore = (*PostgresMetadataStore)(nil)

// NewPostgresMetadataStore connects to dsn and ensures the schema exists.
func NewPostgresMetadataStore(ctx context.Context, dsn string) (*PostgresMetadataStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres metadata store: %w", err)
	}
	s := &PostgresMetadataStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize postgres schema: %w", err)
	}
	return s, nil
}

func (s *PostgresMetadataStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS sources (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		path       TEXT NOT NULL,
		config     JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT PRIMARY KEY,
		source_id  TEXT NOT NULL,
		uri        TEXT NOT NULL UNIQUE,
		title      TEXT NOT NULL DEFAULT '',
		mime_type  TEXT NOT NULL DEFAULT '',
		size_bytes BIGINT NOT NULL DEFAULT 0,
		mtime      TIMESTAMPTZ NOT NULL,
		doc_hash   TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
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
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id, chunk_index);

	CREATE TABLE IF NOT EXISTS jobs (
		id         TEXT PRIMARY KEY,
		type       TEXT NOT NULL,
		status     TEXT NOT NULL,
		progress   DOUBLE PRECISION NOT NULL DEFAULT 0,
		error      TEXT NOT NULL DEFAULT '',
		payload    JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs(status, created_at);
	`)
	return err
}

func (s *PostgresMetadataStore) UpsertSource(ctx context.Context, src *model.Source) error {
	now := time.Now().UTC()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now

	cfg, err := encodeStringMap(src.Config)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sources(id, name, path, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, path = excluded.path,
			config = excluded.config, updated_at = excluded.updated_at
	`, src.ID, src.Name, src.Path, cfg, src.CreatedAt, src.UpdatedAt)
	return err
}

func (s *PostgresMetadataStore) GetSource(ctx context.Context, id string) (*model.Source, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, path, config, created_at, updated_at FROM sources WHERE id = $1`, id)
	return pgScanSource(row)
}

func (s *PostgresMetadataStore) ListSources(ctx context.Context) ([]*model.Source, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, path, config, created_at, updated_at FROM sources ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Source
	for rows.Next() {
		src, err := pgScanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func pgScanSource(row pgx.Row) (*model.Source, error) {
	var src model.Source
	var cfg string
	if err := row.Scan(&src.ID, &src.Name, &src.Path, &cfg, &src.CreatedAt, &src.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	m, err := decodeStringMap(cfg)
	if err != nil {
		return nil, err
	}
	src.Config = m
	return &src, nil
}

func (s *PostgresMetadataStore) UpsertDocument(ctx context.Context, doc *model.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents(id, source_id, uri, title, mime_type, size_bytes, mtime, doc_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id, uri = excluded.uri, title = excluded.title,
			mime_type = excluded.mime_type, size_bytes = excluded.size_bytes,
			mtime = excluded.mtime, doc_hash = excluded.doc_hash,
			status = excluded.status, updated_at = excluded.updated_at
	`, doc.ID, doc.SourceID, doc.URI, doc.Title, doc.MimeType, doc.SizeBytes,
		doc.MTime, doc.DocHash, string(doc.Status), doc.CreatedAt, doc.UpdatedAt)
	return err
}

func (s *PostgresMetadataStore) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx, pgDocumentSelect+` WHERE id = $1`, id)
	return pgScanDocument(row)
}

func (s *PostgresMetadataStore) GetDocumentByURI(ctx context.Context, sourceID, uri string) (*model.Document, error) {
	row := s.pool.QueryRow(ctx, pgDocumentSelect+` WHERE source_id = $1 AND uri = $2`, sourceID, uri)
	return pgScanDocument(row)
}

func (s *PostgresMetadataStore) ListDocumentsBySource(ctx context.Context, sourceID string) ([]*model.Document, error) {
	rows, err := s.pool.Query(ctx, pgDocumentSelect+` WHERE source_id = $1 ORDER BY created_at`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		d, err := pgScanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresMetadataStore) MarkDocumentDeleted(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET status = $1, updated_at = $2 WHERE id = $3`,
		string(model.DocumentStatusDeleted), time.Now().UTC(), id)
	return err
}

const pgDocumentSelect = `SELECT id, source_id, uri, title, mime_type, size_bytes, mtime, doc_hash, status, created_at, updated_at FROM documents`

func pgScanDocument(row pgx.Row) (*model.Document, error) {
	var d model.Document
	var status string
	if err := row.Scan(&d.ID, &d.SourceID, &d.URI, &d.Title, &d.MimeType, &d.SizeBytes,
		&d.MTime, &d.DocHash, &status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	d.Status = model.DocumentStatus(status)
	return &d, nil
}

func (s *PostgresMetadataStore) UpsertChunk(ctx context.Context, chunk *model.Chunk) error {
	now := time.Now().UTC()
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = now
	}
	chunk.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO chunks(id, doc_id, chunk_index, text, start_offset, end_offset, chunk_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT(id) DO UPDATE SET
			doc_id = excluded.doc_id, chunk_index = excluded.chunk_index, text = excluded.text,
			start_offset = excluded.start_offset, end_offset = excluded.end_offset,
			chunk_hash = excluded.chunk_hash, updated_at = excluded.updated_at
	`, chunk.ID, chunk.DocID, chunk.ChunkIndex, chunk.Text, chunk.StartOffset, chunk.EndOffset,
		chunk.ChunkHash, chunk.CreatedAt, chunk.UpdatedAt)
	return err
}

func (s *PostgresMetadataStore) ListChunks(ctx context.Context, docID string) ([]*model.Chunk, error) {
	rows, err := s.pool.Query(ctx, pgChunkSelect+` WHERE doc_id = $1 ORDER BY chunk_index ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Chunk
	for rows.Next() {
		c, err := pgScanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresMetadataStore) GetChunk(ctx context.Context, id string) (*model.Chunk, error) {
	row := s.pool.QueryRow(ctx, pgChunkSelect+` WHERE id = $1`, id)
	return pgScanChunk(row)
}

func (s *PostgresMetadataStore) DeleteChunks(ctx context.Context, docID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE doc_id = $1`, docID)
	return err
}

const pgChunkSelect = `SELECT id, doc_id, chunk_index, text, start_offset, end_offset, chunk_hash, created_at, updated_at FROM chunks`

func pgScanChunk(row pgx.Row) (*model.Chunk, error) {
	var c model.Chunk
	if err := row.Scan(&c.ID, &c.DocID, &c.ChunkIndex, &c.Text, &c.StartOffset, &c.EndOffset,
		&c.ChunkHash, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresMetadataStore) UpsertJob(ctx context.Context, job *model.Job) error {
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	payload, err := encodeStringMap(job.Payload)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs(id, type, status, progress, error, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, status = excluded.status, progress = excluded.progress,
			error = excluded.error, payload = excluded.payload, updated_at = excluded.updated_at
	`, job.ID, string(job.Type), string(job.Status), job.Progress, job.Error, payload, job.CreatedAt, job.UpdatedAt)
	return err
}

func (s *PostgresMetadataStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, pgJobSelect+` WHERE id = $1`, id)
	return pgScanJob(row)
}

func (s *PostgresMetadataStore) ListJobs(ctx context.Context) ([]*model.Job, error) {
	rows, err := s.pool.Query(ctx, pgJobSelect+` ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := pgScanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *PostgresMetadataStore) GetPendingJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	rows, err := s.pool.Query(ctx, pgJobSelect+` WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(model.JobStatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := pgScanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

const pgJobSelect = `SELECT id, type, status, progress, error, payload, created_at, updated_at FROM jobs`

func pgScanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var jobType, status, payload string
	if err := row.Scan(&j.ID, &jobType, &status, &j.Progress, &j.Error, &payload, &j.CreatedAt, &j.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
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
	return &j, nil
}

func (s *PostgresMetadataStore) Close() error {
	s.pool.Close()
	return nil
}
