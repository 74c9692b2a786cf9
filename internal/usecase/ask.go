package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// AskUseCase answers a query from the indexed documents.
type AskUseCase struct {
	retriever *Retriever
	answerer  *Answerer
	registry  port.DocumentRegistry
	cache     port.TextCache
	namespace string
	topK      int
	logger    *zap.Logger
}

func NewAskUseCase(
	retriever *Retriever,
	answerer *Answerer,
	registry port.DocumentRegistry,
	cache port.TextCache,
	namespace string,
	topK int,
	logger *zap.Logger,
) *AskUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AskUseCase{
		retriever: retriever,
		answerer:  answerer,
		registry:  registry,
		cache:     cache,
		namespace: namespace,
		topK:      topK,
		logger:    logger,
	}
}

type AskRequest struct {
	Query string
	// DocID, when set, must name a known document.
	DocID string
	// TopK overrides the configured default when positive.
	TopK int
}

type AskResult struct {
	Answer  domain.GeneratedAnswer
	Matches []domain.ScoredRecord
}

// Ask retrieves context for req.Query and generates an answer from it.
func (u *AskUseCase) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	result, err := u.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, err := u.answerer.Answer(ctx, req.Query, result)
	if err != nil {
		return nil, err
	}
	return &AskResult{Answer: answer, Matches: result.Matches}, nil
}

// Search runs the retrieval half of Ask.
func (u *AskUseCase) Search(ctx context.Context, req AskRequest) (domain.QueryResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return domain.QueryResult{}, domain.NewStageError(domain.StageRetrieve, domain.ErrInvalidInput,
			errors.New("query is required"))
	}
	if req.DocID != "" {
		if err := u.checkDocument(req.DocID); err != nil {
			return domain.QueryResult{}, err
		}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = u.topK
	}
	return u.retriever.Query(ctx, req.Query, topK, u.namespace)
}

// checkDocument accepts a document whose text is cached or that the
// registry reports ready.
func (u *AskUseCase) checkDocument(docID string) error {
	if u.cache != nil {
		if _, ok := u.cache.Get(docID); ok {
			return nil
		}
	}
	if u.registry != nil {
		doc, err := u.registry.GetDoc(docID)
		if err == nil && doc.Status == domain.StatusReady {
			return nil
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to look up document: %w", err)
		}
	}
	return domain.NewStageError(domain.StageRetrieve, domain.ErrNotFound,
		fmt.Errorf("document %s", docID))
}
