// Package chunk splits extracted document text into overlapping,
// token-bounded windows for embedding and indexing.
package chunk

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken approximates token-to-character length when the BPE encoder
// cannot be loaded; 4 chars/token is the commonly cited ratio for English
// prose with cl100k-family tokenizers.
const charsPerToken = 4

// Draft is a single chunk produced by Chunk, before it is persisted as a
// model.Chunk (which additionally carries an ID and a content hash).
type Draft struct {
	Text        string
	ChunkIndex  int
	StartOffset int
	EndOffset   int
}

// Chunker splits text into overlapping token windows.
type Chunker struct {
	enc *tiktoken.Tiktoken
}

// NewChunker loads a cl100k_base-compatible encoder. If the encoder cannot
// be loaded (e.g. no network access to fetch its vocabulary on first use),
// Chunk falls back to an approximate character-based window using
// charsPerToken.
func NewChunker() *Chunker {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	return &Chunker{enc: enc}
}

// Chunk splits text into a sliding window of size tokens, advancing by
// size-overlap tokens per step. 0 <= overlap < size must hold. Empty text
// yields no chunks.
func (c *Chunker) Chunk(text string, size, overlap int) []Draft {
	if text == "" {
		return nil
	}
	if c.enc == nil {
		return c.chunkByChars(text, size, overlap)
	}
	return c.chunkByTokens(text, size, overlap)
}

func (c *Chunker) chunkByTokens(text string, size, overlap int) []Draft {
	tokens := c.enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		return nil
	}

	step := size - overlap
	var drafts []Draft
	cursor := 0 // position in text to search forward from for offset recovery

	for start, idx := 0, 0; start < len(tokens); start += step {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}

		window := c.enc.Decode(tokens[start:end])
		startOffset, endOffset, next := recoverOffsets(text, window, cursor)
		cursor = next

		drafts = append(drafts, Draft{
			Text:        window,
			ChunkIndex:  idx,
			StartOffset: startOffset,
			EndOffset:   endOffset,
		})
		idx++

		if end == len(tokens) {
			break
		}
	}
	return drafts
}

// recoverOffsets searches for window in text starting at cursor. On a miss
// (the decoded window doesn't appear verbatim past cursor, which can happen
// after BPE round-trip normalization), offsets are left at (0, 0) per the
// documented approximation; the chunk's Text field remains authoritative.
func recoverOffsets(text, window string, cursor int) (start, end, nextCursor int) {
	if cursor > len(text) {
		cursor = len(text)
	}
	idx := strings.Index(text[cursor:], window)
	if idx < 0 {
		return 0, 0, cursor
	}
	start = cursor + idx
	end = start + len(window)
	return start, end, end
}

func (c *Chunker) chunkByChars(text string, sizeTokens, overlapTokens int) []Draft {
	size := sizeTokens * charsPerToken
	overlap := overlapTokens * charsPerToken
	step := size - overlap
	if step <= 0 {
		step = size
	}

	var drafts []Draft
	for start, idx := 0, 0; start < len(text); start += step {
		end := start + size
		if end > len(text) {
			end = len(text)
		}
		drafts = append(drafts, Draft{
			Text:        text[start:end],
			ChunkIndex:  idx,
			StartOffset: start,
			EndOffset:   end,
		})
		idx++
		if end == len(text) {
			break
		}
	}
	return drafts
}
