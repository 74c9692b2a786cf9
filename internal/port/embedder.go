package port

import (
	"context"

	"docqa/internal/domain"
)

// Embedder turns a single text into a vector of fixed dimension.
type Embedder interface {
	// Embed returns the embedding for text. Adapters wrap retryable
	// failures with domain.Transient.
	Embed(ctx context.Context, text string) (domain.Vector, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorIndex stores and searches embedding vectors partitioned by namespace.
type VectorIndex interface {
	// DescribeNamespace reports the spec ns was created with. exists is
	// false when the backing index has not been created yet.
	DescribeNamespace(ctx context.Context, ns string) (spec domain.IndexSpec, exists bool, err error)

	// CreateNamespace creates the backing index for ns.
	CreateNamespace(ctx context.Context, ns string, spec domain.IndexSpec) error

	// Upsert writes records to ns, replacing records with the same ID.
	Upsert(ctx context.Context, ns string, records []domain.IndexRecord) error

	// Query returns up to topK records nearest to vector, best first.
	Query(ctx context.Context, ns string, vector domain.Vector, topK int, includeMetadata bool) ([]domain.ScoredRecord, error)

	// Delete removes records by ID. Missing IDs are ignored.
	Delete(ctx context.Context, ns string, ids []string) error

	// Count returns the number of records in ns.
	Count(ctx context.Context, ns string) (int, error)
}
