package chunker

import (
	"fmt"
	"unicode/utf8"

	"docqa/internal/domain"
)

// FixedChunker cuts text into consecutive, non-overlapping runs of size
// characters. It has no notion of words or sentences.
type FixedChunker struct {
	size int
}

func NewFixedChunker(size int) (*FixedChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, size)
	}
	return &FixedChunker{size: size}, nil
}

func (c *FixedChunker) Size() int {
	return c.size
}

// Chunk splits text in order. The last chunk is shorter when the character
// count is not a multiple of the chunk size; empty text yields no chunks.
func (c *FixedChunker) Chunk(docID, text string) ([]domain.Chunk, error) {
	if text == "" {
		return []domain.Chunk{}, nil
	}

	chunks := make([]domain.Chunk, 0, utf8.RuneCountInString(text)/c.size+1)
	start := 0
	runes := 0

	for pos := range text {
		if runes == c.size {
			chunks = append(chunks, newChunk(docID, len(chunks), text, start, pos))
			start = pos
			runes = 0
		}
		runes++
	}
	chunks = append(chunks, newChunk(docID, len(chunks), text, start, len(text)))

	return chunks, nil
}

func newChunk(docID string, seq int, text string, start, end int) domain.Chunk {
	return domain.Chunk{
		DocID:         docID,
		SequenceIndex: seq,
		Text:          text[start:end],
		ByteStart:     start,
		ByteEnd:       end,
	}
}
