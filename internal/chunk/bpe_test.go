package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_EmptyText_YieldsNoChunks(t *testing.T) {
	c := NewChunker()
	drafts := c.Chunk("", 100, 10)
	assert.Empty(t, drafts)
}

func TestChunker_ShortText_YieldsOneChunk(t *testing.T) {
	c := NewChunker()
	drafts := c.Chunk("a short sentence well under the window size", 512, 64)
	require.Len(t, drafts, 1)
	assert.Equal(t, 0, drafts[0].ChunkIndex)
}

func TestChunker_ZeroOverlap_NonOverlappingPartitions(t *testing.T) {
	c := NewChunker()
	text := strings.Repeat("token ", 2000)
	drafts := c.Chunk(text, 50, 0)
	require.True(t, len(drafts) > 1)
	for i, d := range drafts {
		assert.Equal(t, i, d.ChunkIndex)
	}
}

func TestChunker_OffsetsRecoveredWhenPossible(t *testing.T) {
	c := NewChunker()
	if c.enc == nil {
		t.Skip("encoder unavailable in this environment")
	}
	text := "The quick brown fox jumps over the lazy dog. " + strings.Repeat("filler words here. ", 100)
	drafts := c.Chunk(text, 20, 5)
	require.NotEmpty(t, drafts)
	first := drafts[0]
	if first.EndOffset > first.StartOffset {
		assert.Equal(t, first.Text, text[first.StartOffset:first.EndOffset])
	}
}

func TestChunker_FallbackByChars_WhenEncoderUnavailable(t *testing.T) {
	c := &Chunker{enc: nil}
	text := strings.Repeat("x", 1000)
	drafts := c.Chunk(text, 10, 2)
	require.NotEmpty(t, drafts)
	assert.Equal(t, text[:40], drafts[0].Text)
}

func TestRecoverOffsets_Miss_FallsBackToZeroZero(t *testing.T) {
	start, end, cursor := recoverOffsets("hello world", "not present", 0)
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)
	assert.Equal(t, 0, cursor)
}
