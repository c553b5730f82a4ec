package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localsearch/docsearch/internal/store"
)

func TestRRFFusion_CombinesBothLists(t *testing.T) {
	f := NewRRFFusion()
	lex := []store.LexicalHit{{ChunkID: "a", Score: 5}, {ChunkID: "b", Score: 3}}
	vec := []store.VectorHit{{ChunkID: "b", Score: 0.9}, {ChunkID: "c", Score: 0.5}}

	results := f.Fuse(lex, vec)
	require.Len(t, results, 3)

	byID := map[string]*FusedResult{}
	for _, r := range results {
		byID[r.ChunkID] = r
	}

	assert.Equal(t, 1, byID["a"].LexRank)
	assert.Equal(t, 0, byID["a"].VecRank)
	assert.Equal(t, 1, byID["b"].VecRank)
	assert.Equal(t, 2, byID["b"].LexRank)
	assert.Greater(t, byID["b"].RRFScore, byID["a"].RRFScore)
	assert.Greater(t, byID["b"].RRFScore, byID["c"].RRFScore)
}

func TestRRFFusion_EmptyLists_ReturnsEmpty(t *testing.T) {
	f := NewRRFFusion()
	results := f.Fuse(nil, nil)
	assert.Empty(t, results)
}

func TestRRFFusion_TieBreaksByLexScoreThenChunkID(t *testing.T) {
	f := &RRFFusion{K: 60}
	lex := []store.LexicalHit{{ChunkID: "z", Score: 10}, {ChunkID: "y", Score: 1}}
	vec := []store.VectorHit{{ChunkID: "y", Score: 0.99}, {ChunkID: "z", Score: 0.01}}

	results := f.Fuse(lex, vec)
	require.Len(t, results, 2)
	// Both chunks appear once in each list at opposite ranks, so RRF scores tie;
	// the tie-break falls to lexical score, where "z" (10) beats "y" (1).
	assert.Equal(t, "z", results[0].ChunkID)
}
