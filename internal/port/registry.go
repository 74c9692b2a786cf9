package port

import "docqa/internal/domain"

// DocumentRegistry tracks ingestion status and the chunk-count watermark
// of every document written to the index.
type DocumentRegistry interface {
	PutDoc(doc domain.Document) error

	// GetDoc returns domain.ErrNotFound when id is unknown.
	GetDoc(id string) (domain.Document, error)

	DeleteDoc(id string) error

	ListDocs() ([]domain.Document, error)
}
