package port

import "docqa/internal/domain"

type Chunker interface {
	Chunk(docID, text string) ([]domain.Chunk, error)
}
