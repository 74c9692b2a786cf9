package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// DefaultTopK is used when a query does not ask for a positive topK.
const DefaultTopK = 10

// Retriever embeds a query and fetches the nearest records from the index.
type Retriever struct {
	embedder *EmbeddingOrchestrator
	index    port.VectorIndex
	logger   *zap.Logger
}

func NewRetriever(embedder *EmbeddingOrchestrator, index port.VectorIndex, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, index: index, logger: logger}
}

// Query returns up to topK records from ns ordered by the index's ranking.
// Fewer matches than topK, including none, is not an error.
func (r *Retriever) Query(ctx context.Context, query string, topK int, ns string) (domain.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return domain.QueryResult{}, domain.NewStageError(domain.StageRetrieve, domain.ErrInvalidInput,
			fmt.Errorf("query is empty"))
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return domain.QueryResult{}, err
	}

	matches, err := r.index.Query(ctx, ns, vec, topK, true)
	if err != nil {
		r.logger.Error("index query failed", zap.String("namespace", ns), zap.Error(err))
		return domain.QueryResult{}, domain.NewStageError(domain.StageRetrieve, domain.ErrIndex, err)
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}

	r.logger.Debug("retrieved matches",
		zap.String("namespace", ns),
		zap.Int("top_k", topK),
		zap.Int("matches", len(matches)),
	)
	return domain.QueryResult{Matches: matches}, nil
}
