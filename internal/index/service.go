// Package index implements the indexing pipeline: scanning a Source for
// candidate documents, extracting and chunking their content, and keeping
// the lexical and vector indices in sync with the metadata store.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/localsearch/docsearch/internal/chunk"
	docerrors "github.com/localsearch/docsearch/internal/errors"
	"github.com/localsearch/docsearch/internal/extract"
	"github.com/localsearch/docsearch/internal/ingest"
	"github.com/localsearch/docsearch/internal/model"
	"github.com/localsearch/docsearch/internal/store"
)

// EmbeddingProvider is the subset of embed.EmbeddingProvider the indexing
// pipeline needs.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Service orchestrates the scan-and-index pipeline described by
// ScanSource and IndexDocument.
type Service struct {
	Metadata  store.MetadataStore
	Lexical   store.LexicalIndex
	Vector    store.VectorStore
	Extractor *extract.Registry
	Chunker   *chunk.Chunker
	Embedder  EmbeddingProvider

	ChunkSizeTokens    int
	ChunkOverlapTokens int
}

func now() time.Time { return time.Now().UTC() }

// ScanSource enumerates the Source's candidates, diffs them against stored
// Documents, indexes the work list in order, and reports progress on job.
func (s *Service) ScanSource(ctx context.Context, sourceID string, job *model.Job) error {
	source, err := s.Metadata.GetSource(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil {
		return docerrors.NotFound(docerrors.ErrCodeSourceNotFound, fmt.Sprintf("source %s not found", sourceID), nil)
	}

	job.Status = model.JobStatusRunning
	job.UpdatedAt = now()
	if err := s.Metadata.UpsertJob(ctx, job); err != nil {
		return err
	}

	var candidates []ingest.Candidate
	if strings.HasSuffix(source.Path, ".json") {
		candidates, err = ingest.ScanBookmarks(source)
	} else {
		candidates, err = ingest.ScanDirectory(source)
	}
	if err != nil {
		job.Status = model.JobStatusFailed
		job.Error = err.Error()
		job.UpdatedAt = now()
		_ = s.Metadata.UpsertJob(ctx, job)
		return err
	}

	existing, err := s.Metadata.ListDocumentsBySource(ctx, sourceID)
	if err != nil {
		job.Status = model.JobStatusFailed
		job.Error = err.Error()
		job.UpdatedAt = now()
		_ = s.Metadata.UpsertJob(ctx, job)
		return err
	}
	byURI := make(map[string]*model.Document, len(existing))
	for _, doc := range existing {
		byURI[doc.URI] = doc
	}

	seen := make(map[string]bool, len(candidates))
	var workList []string
	for _, c := range candidates {
		seen[c.URI] = true
		doc, found := byURI[c.URI]
		switch {
		case !found:
			newDoc := &model.Document{
				ID:        uuid.NewString(),
				SourceID:  sourceID,
				URI:       c.URI,
				Title:     c.Title,
				MimeType:  c.MimeType,
				SizeBytes: c.SizeBytes,
				MTime:     c.MTime,
				Status:    model.DocumentStatusNew,
				CreatedAt: now(),
				UpdatedAt: now(),
			}
			if err := s.Metadata.UpsertDocument(ctx, newDoc); err != nil {
				return err
			}
			workList = append(workList, newDoc.ID)
		case doc.MTime != c.MTime || doc.SizeBytes != c.SizeBytes:
			doc.MTime = c.MTime
			doc.SizeBytes = c.SizeBytes
			doc.Status = model.DocumentStatusChanged
			doc.UpdatedAt = now()
			if err := s.Metadata.UpsertDocument(ctx, doc); err != nil {
				return err
			}
			workList = append(workList, doc.ID)
		}
	}

	for _, doc := range existing {
		if seen[doc.URI] {
			continue
		}
		if err := s.Metadata.MarkDocumentDeleted(ctx, doc.ID); err != nil {
			return err
		}
		if err := s.Lexical.DeleteDoc(ctx, doc.ID); err != nil {
			slog.Warn("failed to remove deleted document from lexical index", slog.String("doc_id", doc.ID), slog.Any("error", err))
		}
		if err := s.Vector.DeleteDoc(ctx, doc.ID); err != nil {
			slog.Warn("failed to remove deleted document from vector index", slog.String("doc_id", doc.ID), slog.Any("error", err))
		}
		if err := s.Metadata.DeleteChunks(ctx, doc.ID); err != nil {
			slog.Warn("failed to delete chunks for deleted document", slog.String("doc_id", doc.ID), slog.Any("error", err))
		}
	}

	total := len(workList)
	for i, docID := range workList {
		if err := s.IndexDocument(ctx, docID); err != nil {
			slog.Warn("failed to index document", slog.String("doc_id", docID), slog.Any("error", err))
		}
		job.Progress = float64(i+1) / float64(total)
		job.UpdatedAt = now()
		if err := s.Metadata.UpsertJob(ctx, job); err != nil {
			return err
		}
	}
	if total == 0 {
		job.Progress = 1.0
	}

	job.Status = model.JobStatusDone
	job.UpdatedAt = now()
	return s.Metadata.UpsertJob(ctx, job)
}

// IndexDocument re-extracts, re-chunks and re-indexes a single document. It
// is idempotent: purging both indices before rewriting them.
func (s *Service) IndexDocument(ctx context.Context, docID string) error {
	doc, err := s.Metadata.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	content, err := s.Extractor.Extract(ctx, doc.URI, doc.MimeType)
	if err != nil {
		if errors.Is(err, extract.ErrNoExtractor) {
			return nil
		}
		doc.Status = model.DocumentStatusError
		doc.UpdatedAt = now()
		_ = s.Metadata.UpsertDocument(ctx, doc)
		return err
	}

	if content.Title != "" {
		doc.Title = content.Title
	}
	doc.DocHash = hashText(content.Text)
	doc.UpdatedAt = now()
	if err := s.Metadata.UpsertDocument(ctx, doc); err != nil {
		return err
	}

	drafts := s.Chunker.Chunk(content.Text, s.ChunkSizeTokens, s.ChunkOverlapTokens)

	if err := s.Lexical.DeleteDoc(ctx, doc.ID); err != nil {
		return s.failDocument(ctx, doc, err)
	}
	if err := s.Vector.DeleteDoc(ctx, doc.ID); err != nil {
		return s.failDocument(ctx, doc, err)
	}
	if err := s.Metadata.DeleteChunks(ctx, doc.ID); err != nil {
		return s.failDocument(ctx, doc, err)
	}

	chunks := make([]*model.Chunk, 0, len(drafts))
	texts := make([]string, 0, len(drafts))
	for _, d := range drafts {
		c := &model.Chunk{
			ID:          uuid.NewString(),
			DocID:       doc.ID,
			ChunkIndex:  d.ChunkIndex,
			Text:        d.Text,
			StartOffset: d.StartOffset,
			EndOffset:   d.EndOffset,
			ChunkHash:   hashText(d.Text),
			CreatedAt:   now(),
			UpdatedAt:   now(),
		}
		if err := s.Metadata.UpsertChunk(ctx, c); err != nil {
			return s.failDocument(ctx, doc, err)
		}
		chunks = append(chunks, c)
		texts = append(texts, c.Text)
	}

	if len(chunks) > 0 {
		titles := map[string]string{doc.ID: doc.Title}
		uris := map[string]string{doc.ID: doc.URI}
		if err := s.Lexical.UpsertChunks(ctx, chunks, titles, uris); err != nil {
			return s.failDocument(ctx, doc, err)
		}

		embeddings, err := s.Embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return s.failDocument(ctx, doc, err)
		}
		if err := s.Vector.UpsertEmbeddings(ctx, chunks, embeddings); err != nil {
			return s.failDocument(ctx, doc, err)
		}
	}

	doc.Status = model.DocumentStatusIndexed
	doc.UpdatedAt = now()
	return s.Metadata.UpsertDocument(ctx, doc)
}

func (s *Service) failDocument(ctx context.Context, doc *model.Document, cause error) error {
	doc.Status = model.DocumentStatusError
	doc.UpdatedAt = now()
	_ = s.Metadata.UpsertDocument(ctx, doc)
	return cause
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
