// Package app wires the storage backends, embedding provider, indexing
// pipeline and search service together from a loaded Config. It is the
// single composition root shared by every docsearchd subcommand.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/localsearch/docsearch/internal/chunk"
	"github.com/localsearch/docsearch/internal/config"
	"github.com/localsearch/docsearch/internal/embed"
	"github.com/localsearch/docsearch/internal/extract"
	"github.com/localsearch/docsearch/internal/index"
	"github.com/localsearch/docsearch/internal/search"
	"github.com/localsearch/docsearch/internal/store"
)

// App holds every long-lived dependency a docsearchd process needs.
type App struct {
	Config *config.Config

	Metadata store.MetadataStore
	Lexical  store.LexicalIndex
	Vector   store.VectorStore
	Embedder embed.EmbeddingProvider

	Index  *index.Service
	Runner *index.Runner
	Search *search.Service

	pgPool *pgxpool.Pool
}

// New builds an App from cfg, opening whichever backends the config
// selects and wiring them into the indexing and search services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if err := a.openMetadata(ctx); err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	if err := a.openLexical(ctx); err != nil {
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}
	if err := a.openVector(ctx); err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	a.openEmbedder()

	registry := extract.NewRegistry(extract.Config{
		WebFetchEnabled: cfg.WebFetch.Enabled,
		Timeout:         time.Duration(cfg.WebFetch.TimeoutSec) * time.Second,
		UserAgent:       cfg.WebFetch.UserAgent,
	})

	a.Index = &index.Service{
		Metadata:           a.Metadata,
		Lexical:            a.Lexical,
		Vector:             a.Vector,
		Extractor:          registry,
		Chunker:            chunk.NewChunker(),
		Embedder:           a.Embedder,
		ChunkSizeTokens:    cfg.Ingestion.ChunkSizeTokens,
		ChunkOverlapTokens: cfg.Ingestion.ChunkOverlapTokens,
	}
	a.Runner = &index.Runner{Service: a.Index}
	a.Search = &search.Service{
		Metadata: a.Metadata,
		Lexical:  a.Lexical,
		Vector:   a.Vector,
		Embedder: a.Embedder,
	}

	return a, nil
}

func (a *App) openMetadata(ctx context.Context) error {
	switch a.Config.MetadataBackend {
	case config.MetadataBackendPostgres:
		pool, err := pgxpool.New(ctx, a.Config.Postgres.DSN)
		if err != nil {
			return err
		}
		a.pgPool = pool
		pgMetadata, err := store.NewPostgresMetadataStore(ctx, a.Config.Postgres.DSN)
		if err != nil {
			return err
		}
		a.Metadata = pgMetadata
		return nil
	default:
		m, err := store.NewSQLiteMetadataStore(a.Config.Storage.SQLitePath)
		if err != nil {
			return err
		}
		a.Metadata = m
		return nil
	}
}

func (a *App) openLexical(ctx context.Context) error {
	switch a.Config.LexicalBackend {
	case config.LexicalBackendPGFTS:
		if a.pgPool == nil {
			pool, err := pgxpool.New(ctx, a.Config.Postgres.DSN)
			if err != nil {
				return err
			}
			a.pgPool = pool
		}
		idx, err := store.NewPostgresFTSIndex(ctx, a.pgPool)
		if err != nil {
			return err
		}
		a.Lexical = idx
		return nil
	default:
		idx, err := store.NewSQLiteFTS5Index(a.Config.Storage.SQLitePath)
		if err != nil {
			return err
		}
		a.Lexical = idx
		return nil
	}
}

func (a *App) openVector(ctx context.Context) error {
	switch a.Config.VectorBackend {
	case config.VectorBackendPGVector:
		if a.pgPool == nil {
			pool, err := pgxpool.New(ctx, a.Config.Postgres.DSN)
			if err != nil {
				return err
			}
			a.pgPool = pool
		}
		v, err := store.NewPostgresVectorStore(ctx, a.pgPool, a.Config.Embedding.Dim)
		if err != nil {
			return err
		}
		a.Vector = v
		return nil
	default:
		sqliteMeta, ok := a.Metadata.(*store.SQLiteMetadataStore)
		var db *sql.DB
		if ok {
			db = sqliteMeta.DB()
		} else {
			opened, err := sql.Open("sqlite", filepath.Join(a.Config.Storage.DataDir, "vector_sidecar.db")+"?_journal_mode=WAL")
			if err != nil {
				return err
			}
			db = opened
		}
		v, err := store.NewHNSWVectorStore(db, a.Config.Storage.VectorDir, a.Config.Embedding.Dim)
		if err != nil {
			return err
		}
		a.Vector = v
		return nil
	}
}

func (a *App) openEmbedder() {
	base := embed.NewHTTPEmbeddingProvider(
		a.Config.Embedding.BaseURL,
		a.Config.Embedding.ModelName,
		a.Config.Embedding.Dim,
		time.Duration(a.Config.Embedding.TimeoutSec)*time.Second,
	)

	cacheDir := filepath.Join(a.Config.Storage.DataDir, "cache", "embeddings")
	cache, err := embed.NewDiskCache(cacheDir)
	if err != nil {
		a.Embedder = base
		return
	}
	a.Embedder = embed.NewCachedEmbeddingProvider(base, cache)
}

// Close releases every backend connection the App opened.
func (a *App) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Vector != nil {
		record(a.Vector.Close())
	}
	if a.Lexical != nil {
		record(a.Lexical.Close())
	}
	if a.Metadata != nil {
		record(a.Metadata.Close())
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
	return firstErr
}
