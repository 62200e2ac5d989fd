package ingestion

import (
	"strings"
	"unicode/utf8"
)

// Chunk is one segment of a split document.
type Chunk struct {
	// Text is the chunk content.
	Text string
	// Start is the byte offset of Text within the original document.
	Start int
}

// boundary is a separator the chunker prefers over a hard cut, with the
// offset past the match where the cut lands. Ordered most to least preferred.
type boundary struct {
	sep      string
	cutAfter int
}

// boundaries are tried in order: a markdown heading keeps the heading at the
// top of the next chunk, a blank line ends a paragraph, then a line break,
// then a sentence end.
var boundaries = []boundary{
	{sep: "\n#", cutAfter: 1},
	{sep: "\n\n", cutAfter: 2},
	{sep: "\n", cutAfter: 1},
	{sep: ". ", cutAfter: 2},
}

// Chunker splits document text into overlapping chunks. Sizes and offsets
// are measured in bytes. Splitting is deterministic: identical input and
// parameters always produce identical boundaries, which the chunk identity
// scheme depends on.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker returns a Chunker producing chunks of at most size bytes, with
// overlap bytes carried between consecutive chunks. A non-positive size
// falls back to 1000, a negative overlap to 0, and an overlap at or above
// size is clamped to a tenth of size.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split divides text into ordered chunks covering the whole input with no
// gaps. Empty input yields no chunks; input no longer than the chunk size
// yields exactly one. When the text remaining after a cut would not fill
// another full chunk, the final chunk is the bare remainder and carries no
// overlap with its predecessor.
func (c *Chunker) Split(text string) []Chunk {
	if len(text) == 0 {
		return nil
	}

	var chunks []Chunk
	pos := 0
	for {
		if pos+c.size >= len(text) {
			chunks = append(chunks, Chunk{Text: text[pos:], Start: pos})
			return chunks
		}

		end := c.cut(text, pos, pos+c.size)
		chunks = append(chunks, Chunk{Text: text[pos:end], Start: pos})

		if len(text)-end > c.size {
			next := end - c.overlap
			if next <= pos {
				next = end
			}
			pos = next
		} else {
			pos = end
		}
	}
}

// cut returns the end offset for a chunk starting at start, preferring the
// latest semantic boundary in the second half of the window over a hard cut
// at limit. The returned offset always satisfies start < cut <= limit.
func (c *Chunker) cut(text string, start, limit int) int {
	window := text[start:limit]
	half := len(window) / 2

	for _, b := range boundaries {
		if i := strings.LastIndex(window[half:], b.sep); i >= 0 {
			return start + half + i + b.cutAfter
		}
	}

	// Hard cut. Back off to a rune start so a multi-byte character is never
	// split across chunks.
	cut := limit
	for cut > start+1 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}
