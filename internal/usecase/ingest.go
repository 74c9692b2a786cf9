package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// IngestUseCase runs a document through chunking, embedding and indexing,
// and keeps the document registry in step with the index.
type IngestUseCase struct {
	chunker   port.Chunker
	embedder  *EmbeddingOrchestrator
	writer    *IndexWriter
	registry  port.DocumentRegistry
	cache     port.TextCache
	namespace string
	logger    *zap.Logger
	now       func() time.Time
}

func NewIngestUseCase(
	chunker port.Chunker,
	embedder *EmbeddingOrchestrator,
	index port.VectorIndex,
	registry port.DocumentRegistry,
	cache port.TextCache,
	namespace string,
	logger *zap.Logger,
) *IngestUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		chunker:   chunker,
		embedder:  embedder,
		writer:    NewIndexWriter(index, logger),
		registry:  registry,
		cache:     cache,
		namespace: namespace,
		logger:    logger,
		now:       time.Now,
	}
}

// IngestRequest is a document's extracted text.
type IngestRequest struct {
	DocID  string
	Source string
	Text   string
}

// IngestResult describes a finished ingestion.
type IngestResult struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
	Pruned int    `json:"pruned"`
}

// Ingest indexes req. A failure leaves the document marked failed with the
// stage that broke; the returned error is a *domain.StageError.
func (u *IngestUseCase) Ingest(ctx context.Context, req IngestRequest, progress ProgressFunc) (*IngestResult, error) {
	if strings.TrimSpace(req.DocID) == "" {
		return nil, domain.NewStageError(domain.StageChunk, domain.ErrInvalidInput, errors.New("document id is required"))
	}

	previous, err := u.previousCount(req.DocID)
	if err != nil {
		return nil, err
	}

	doc := domain.Document{
		ID:         req.DocID,
		Source:     req.Source,
		Status:     domain.StatusIngesting,
		ChunkCount: previous,
		UpdatedAt:  u.now(),
	}
	if err := u.registry.PutDoc(doc); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	log := u.logger.With(zap.String("doc_id", req.DocID), zap.String("namespace", u.namespace))
	log.Info("ingesting document", zap.Int("bytes", len(req.Text)))

	// The watermark must cover every record that may be in the index.
	watermark := previous
	fail := func(err error) (*IngestResult, error) {
		doc.Status = domain.StatusFailed
		doc.Stage = domain.StageOf(err)
		doc.ChunkCount = watermark
		doc.UpdatedAt = u.now()
		if perr := u.registry.PutDoc(doc); perr != nil {
			log.Error("failed to record failure", zap.Error(perr))
		}
		log.Error("ingestion failed", zap.String("stage", doc.Stage), zap.Error(err))
		return nil, err
	}

	chunks, err := u.chunker.Chunk(req.DocID, req.Text)
	if err != nil {
		var se *domain.StageError
		if !errors.As(err, &se) {
			err = domain.NewStageError(domain.StageChunk, domain.ErrInvalidInput, err)
		}
		return fail(err)
	}

	vectors, err := u.embedder.EmbedBatchWithProgress(ctx, chunks, progress)
	if err != nil {
		return fail(err)
	}

	// A failed batch may still have written some records.
	if len(chunks) > watermark {
		watermark = len(chunks)
	}
	if err := u.writer.Upsert(ctx, req.DocID, chunks, vectors, u.namespace); err != nil {
		return fail(err)
	}

	pruned, err := u.writer.Prune(ctx, req.DocID, len(chunks), previous, u.namespace)
	if err != nil {
		return fail(err)
	}

	doc.Status = domain.StatusReady
	doc.Stage = ""
	doc.ChunkCount = len(chunks)
	doc.UpdatedAt = u.now()
	if err := u.registry.PutDoc(doc); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	if u.cache != nil {
		u.cache.Put(req.DocID, req.Text)
	}

	log.Info("document ready", zap.Int("chunks", len(chunks)), zap.Int("pruned", pruned))
	return &IngestResult{DocID: req.DocID, Chunks: len(chunks), Pruned: pruned}, nil
}

func (u *IngestUseCase) previousCount(docID string) (int, error) {
	existing, err := u.registry.GetDoc(docID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up document: %w", err)
	}
	return existing.ChunkCount, nil
}

// Delete removes a document's records from the index and forgets it.
func (u *IngestUseCase) Delete(ctx context.Context, docID string) error {
	doc, err := u.registry.GetDoc(docID)
	if err != nil {
		return err
	}

	if _, err := u.writer.Prune(ctx, docID, 0, doc.ChunkCount, u.namespace); err != nil {
		return err
	}
	if err := u.registry.DeleteDoc(docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if u.cache != nil {
		u.cache.Delete(docID)
	}

	u.logger.Info("document deleted", zap.String("doc_id", docID), zap.Int("records", doc.ChunkCount))
	return nil
}

// Reset deletes every registered document. It returns how many were removed.
func (u *IngestUseCase) Reset(ctx context.Context) (int, error) {
	docs, err := u.registry.ListDocs()
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	for i, doc := range docs {
		if err := u.Delete(ctx, doc.ID); err != nil {
			return i, fmt.Errorf("failed to delete %s: %w", doc.ID, err)
		}
	}
	return len(docs), nil
}

// Documents lists registered documents.
func (u *IngestUseCase) Documents() ([]domain.Document, error) {
	return u.registry.ListDocs()
}

// Document returns one registered document.
func (u *IngestUseCase) Document(docID string) (domain.Document, error) {
	return u.registry.GetDoc(docID)
}
