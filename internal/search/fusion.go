// Package search implements the hybrid lexical+vector query path: parallel
// retrieval fused by Reciprocal Rank Fusion, then hydration and reranking.
package search

import (
	"sort"

	"github.com/localsearch/docsearch/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search, OpenSearch, etc.).
const DefaultRRFConstant = 60

// FusedResult is a single chunk's combined score after RRF fusion.
type FusedResult struct {
	ChunkID  string
	RRFScore float64
	LexScore float64
	LexRank  int
	VecScore float64
	VecRank  int
}

// RRFFusion combines lexical and vector search results using Reciprocal
// Rank Fusion: RRF_score(d) = Σ 1 / (k + rank_i).
type RRFFusion struct {
	K int
}

// NewRRFFusion creates an RRF fusion instance with the default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// Fuse combines lexical and vector hits, ranked 1-indexed within each list.
// Ties break by higher lexical score, then by chunk ID.
func (f *RRFFusion) Fuse(lex []store.LexicalHit, vec []store.VectorHit) []*FusedResult {
	k := f.K
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[string]*FusedResult, len(lex)+len(vec))
	getOrCreate := func(chunkID string) *FusedResult {
		r, ok := scores[chunkID]
		if !ok {
			r = &FusedResult{ChunkID: chunkID}
			scores[chunkID] = r
		}
		return r
	}

	for rank, hit := range lex {
		r := getOrCreate(hit.ChunkID)
		r.LexScore = hit.Score
		r.LexRank = rank + 1
		r.RRFScore += 1.0 / float64(k+rank+1)
	}
	for rank, hit := range vec {
		r := getOrCreate(hit.ChunkID)
		r.VecScore = float64(hit.Score)
		r.VecRank = rank + 1
		r.RRFScore += 1.0 / float64(k+rank+1)
	}

	results := make([]*FusedResult, 0, len(scores))
	for _, r := range scores {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].RRFScore != results[j].RRFScore {
			return results[i].RRFScore > results[j].RRFScore
		}
		if results[i].LexScore != results[j].LexScore {
			return results[i].LexScore > results[j].LexScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	return results
}
