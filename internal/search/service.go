package search

import (
	"context"
	"sort"

	"github.com/localsearch/docsearch/internal/store"
)

const (
	defaultLexicalTopK = 20
	defaultVectorTopK  = 20
)

// EmbeddingProvider is the subset of embed.EmbeddingProvider the search
// path needs to embed the query text.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ScoreBreakdown reports the lexical/vector contributions to a result's
// fused score, for debugging and client display.
type ScoreBreakdown struct {
	LexScore float64
	LexRank  int
	VecScore float64
	VecRank  int
}

// SearchResult is a single hydrated, ranked hit.
type SearchResult struct {
	ChunkID        string
	DocID          string
	Text           string
	DocTitle       string
	DocURI         string
	Score          float64
	ScoreBreakdown ScoreBreakdown
}

// hydratedChunk is the subset of Chunk+Document fields a SearchResult needs.
type hydratedChunk struct {
	ID       string
	DocID    string
	Text     string
	DocTitle string
	DocURI   string
}

// HydratedResult is a FusedResult joined with its Chunk and Document,
// passed through the Reranker before becoming a SearchResult.
type HydratedResult struct {
	Fused *FusedResult
	Chunk *hydratedChunk
}

// Service implements the hybrid lexical-plus-vector query path.
type Service struct {
	Metadata    store.MetadataStore
	Lexical     store.LexicalIndex
	Vector      store.VectorStore
	Embedder    EmbeddingProvider
	Reranker    Reranker
	Fusion      *RRFFusion
	LexicalTopK int
	VectorTopK  int
}

// Search runs the hybrid retrieval pipeline and returns the top `limit`
// results. An empty query is valid and must not panic or error.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	lexTopK := s.LexicalTopK
	if lexTopK <= 0 {
		lexTopK = defaultLexicalTopK
	}
	vecTopK := s.VectorTopK
	if vecTopK <= 0 {
		vecTopK = defaultVectorTopK
	}

	lex, err := s.Lexical.Search(ctx, query, lexTopK)
	if err != nil {
		return nil, err
	}

	var vec []store.VectorHit
	vectors, err := s.Embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) > 0 {
		vec, err = s.Vector.Query(ctx, vectors[0], vecTopK)
		if err != nil {
			return nil, err
		}
	}

	fusion := s.Fusion
	if fusion == nil {
		fusion = NewRRFFusion()
	}
	fused := fusion.Fuse(lex, vec)

	candidateCount := 2 * limit
	if candidateCount <= 0 || candidateCount > len(fused) {
		candidateCount = len(fused)
	}
	fused = fused[:candidateCount]

	hydrated := make([]*HydratedResult, 0, len(fused))
	docCache := make(map[string]*storeDocInfo)
	for _, f := range fused {
		chunk, err := s.Metadata.GetChunk(ctx, f.ChunkID)
		if err != nil || chunk == nil {
			continue
		}
		docInfo, ok := docCache[chunk.DocID]
		if !ok {
			doc, err := s.Metadata.GetDocument(ctx, chunk.DocID)
			if err != nil || doc == nil {
				docCache[chunk.DocID] = nil
				continue
			}
			docInfo = &storeDocInfo{title: doc.Title, uri: doc.URI}
			docCache[chunk.DocID] = docInfo
		}
		if docInfo == nil {
			continue
		}
		hydrated = append(hydrated, &HydratedResult{
			Fused: f,
			Chunk: &hydratedChunk{
				ID:       chunk.ID,
				DocID:    chunk.DocID,
				Text:     chunk.Text,
				DocTitle: docInfo.title,
				DocURI:   docInfo.uri,
			},
		})
	}

	reranker := s.Reranker
	if reranker == nil {
		reranker = NoOpReranker{}
	}
	reranked, err := reranker.Rerank(ctx, query, hydrated)
	if err != nil {
		return nil, err
	}

	if limit > 0 && limit < len(reranked) {
		reranked = reranked[:limit]
	}

	results := make([]*SearchResult, 0, len(reranked))
	for _, h := range reranked {
		results = append(results, &SearchResult{
			ChunkID:  h.Chunk.ID,
			DocID:    h.Chunk.DocID,
			Text:     h.Chunk.Text,
			DocTitle: h.Chunk.DocTitle,
			DocURI:   h.Chunk.DocURI,
			Score:    h.Fused.RRFScore,
			ScoreBreakdown: ScoreBreakdown{
				LexScore: h.Fused.LexScore,
				LexRank:  h.Fused.LexRank,
				VecScore: h.Fused.VecScore,
				VecRank:  h.Fused.VecRank,
			},
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

type storeDocInfo struct {
	title string
	uri   string
}
