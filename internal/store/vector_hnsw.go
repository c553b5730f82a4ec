package store

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/localsearch/docsearch/internal/model"
)

// HNSWVectorStore implements VectorStore using coder/hnsw for the ANN graph
// and a sidecar table in the shared metadata database to map graph keys to
// chunk/doc identity and carry soft-delete state.
type HNSWVectorStore struct {
	mu        sync.RWMutex
	db        *sql.DB
	graph     *hnsw.Graph[uint64]
	dim       int
	indexPath string
	nextANNID uint64
	closed    bool
}

var _ VectorStore = (*HNSWVectorStore)(nil)

// NewHNSWVectorStore opens an HNSW-backed vector store. db is the shared
// metadata database connection, used for the sidecar table. dir is the
// vector_index directory holding the ANN snapshot.
func NewHNSWVectorStore(db *sql.DB, dir string, dim int) (*HNSWVectorStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create vector directory: %w", err)
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 32
	graph.EfSearch = 64
	graph.Ml = 0.25

	s := &HNSWVectorStore{
		db:        db,
		graph:     graph,
		dim:       dim,
		indexPath: filepath.Join(dir, "index.hnsw"),
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS vector_sidecar (
			ann_id  INTEGER PRIMARY KEY,
			chunk_id TEXT NOT NULL,
			doc_id   TEXT NOT NULL,
			deleted  INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_vector_sidecar_chunk ON vector_sidecar(chunk_id);
		CREATE INDEX IF NOT EXISTS idx_vector_sidecar_doc ON vector_sidecar(doc_id);
	`); err != nil {
		return nil, fmt.Errorf("failed to initialize vector sidecar schema: %w", err)
	}

	if err := s.loadSnapshot(); err != nil {
		return nil, fmt.Errorf("failed to load vector index snapshot: %w", err)
	}

	var maxID sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(ann_id) FROM vector_sidecar`).Scan(&maxID); err != nil {
		return nil, fmt.Errorf("failed to read max sidecar ann_id: %w", err)
	}
	if maxID.Valid {
		s.nextANNID = uint64(maxID.Int64)
	}

	return s, nil
}

func (s *HNSWVectorStore) loadSnapshot() error {
	f, err := os.Open(s.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return s.graph.Import(bufio.NewReader(f))
}

func (s *HNSWVectorStore) saveSnapshot() error {
	tmp := s.indexPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	if err := s.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.indexPath)
}

// UpsertEmbeddings marks every prior row for each chunk deleted, inserts a
// fresh sidecar row, and adds the L2-normalized vector to the ANN graph.
func (s *HNSWVectorStore) UpsertEmbeddings(ctx context.Context, chunks []*model.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks/embeddings length mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	markDeletedStmt, err := tx.PrepareContext(ctx,
		`UPDATE vector_sidecar SET deleted = 1 WHERE chunk_id = ?`)
	if err != nil {
		return err
	}
	defer markDeletedStmt.Close()

	insertStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vector_sidecar(ann_id, chunk_id, doc_id, deleted) VALUES (?, ?, ?, 0)`)
	if err != nil {
		return err
	}
	defer insertStmt.Close()

	for i, c := range chunks {
		vec := embeddings[i]
		if len(vec) != s.dim {
			return fmt.Errorf("embedding dimension mismatch for chunk %s: expected %d, got %d", c.ID, s.dim, len(vec))
		}

		if _, err := markDeletedStmt.ExecContext(ctx, c.ID); err != nil {
			return fmt.Errorf("failed to mark prior rows deleted for chunk %s: %w", c.ID, err)
		}

		normalized := make([]float32, len(vec))
		copy(normalized, vec)
		normalizeL2(normalized)

		s.nextANNID++
		annID := s.nextANNID
		s.graph.Add(hnsw.MakeNode(annID, normalized))

		if _, err := insertStmt.ExecContext(ctx, annID, c.ID, c.DocID); err != nil {
			return fmt.Errorf("failed to insert sidecar row for chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return s.saveSnapshot()
}

// DeleteDoc marks all sidecar rows for docID as deleted.
func (s *HNSWVectorStore) DeleteDoc(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}
	_, err := s.db.ExecContext(ctx, `UPDATE vector_sidecar SET deleted = 1 WHERE doc_id = ?`, docID)
	return err
}

// Query oversamples the ANN graph, joins against the sidecar, drops deleted
// or unmapped hits, and returns the first topK by similarity.
func (s *HNSWVectorStore) Query(ctx context.Context, vector []float32, topK int) ([]VectorHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if s.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(vector))
	copy(normalized, vector)
	normalizeL2(normalized)

	oversample := topK * 5
	if oversample < topK {
		oversample = topK
	}
	nodes := s.graph.Search(normalized, oversample)

	hits := make([]VectorHit, 0, len(nodes))
	for _, node := range nodes {
		var chunkID string
		var deleted bool
		err := s.db.QueryRowContext(ctx,
			`SELECT chunk_id, deleted FROM vector_sidecar WHERE ann_id = ?`, node.Key).
			Scan(&chunkID, &deleted)
		if err != nil {
			continue // unmapped ANN id, e.g. a dangling row from a crash before the sidecar write
		}
		if deleted {
			continue
		}
		distance := s.graph.Distance(normalized, node.Value)
		score := 1.0 - distance/2.0
		hits = append(hits, VectorHit{ChunkID: chunkID, Score: score})
		if len(hits) >= topK {
			break
		}
	}
	return hits, nil
}

// Compact rebuilds the ANN graph from only the undeleted sidecar mappings.
// Optional maintenance operation; not invoked from the core hot path.
func (s *HNSWVectorStore) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ann_id FROM vector_sidecar WHERE deleted = 0`)
	if err != nil {
		return fmt.Errorf("failed to list live sidecar rows: %w", err)
	}
	liveIDs := make(map[uint64]struct{})
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		liveIDs[id] = struct{}{}
	}
	rows.Close()

	rebuilt := hnsw.NewGraph[uint64]()
	rebuilt.Distance = s.graph.Distance
	rebuilt.M = s.graph.M
	rebuilt.EfSearch = s.graph.EfSearch
	rebuilt.Ml = s.graph.Ml

	for id := range liveIDs {
		if vec, ok := s.graph.Lookup(id); ok {
			rebuilt.Add(hnsw.MakeNode(id, vec))
		}
	}
	s.graph = rebuilt
	return s.saveSnapshot()
}

// Close flushes the current snapshot and releases resources.
func (s *HNSWVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.saveSnapshot()
}

func normalizeL2(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
