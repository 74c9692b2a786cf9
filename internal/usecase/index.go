package usecase

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// Tags alternate across a document's chunks.
const (
	TagDrama  = "drama"
	TagAction = "action"
)

// VectorID returns the index record ID of the chunk at seq (0-based).
// IDs are 1-based so a document's records are <docID>_vec1 ... _vecN.
func VectorID(docID string, seq int) string {
	return docID + "_vec" + strconv.Itoa(seq+1)
}

// Classify returns the tag stored with the chunk at seq.
func Classify(seq int) string {
	if seq%2 == 0 {
		return TagDrama
	}
	return TagAction
}

// IndexWriter maps chunks and their vectors to index records.
type IndexWriter struct {
	index  port.VectorIndex
	logger *zap.Logger
}

func NewIndexWriter(index port.VectorIndex, logger *zap.Logger) *IndexWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexWriter{index: index, logger: logger}
}

// Records builds the index records for a document without writing them.
func Records(docID string, chunks []domain.Chunk, vectors []domain.Vector) ([]domain.IndexRecord, error) {
	if len(chunks) != len(vectors) {
		return nil, domain.NewStageError(domain.StageUpsert, domain.ErrInvalidInput,
			fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vectors)))
	}

	records := make([]domain.IndexRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.IndexRecord{
			ID:     VectorID(docID, c.SequenceIndex),
			Vector: vectors[i],
			Metadata: map[string]string{
				domain.MetaContent: c.Text,
				domain.MetaTag:     Classify(c.SequenceIndex),
				domain.MetaDocID:   docID,
				domain.MetaSeq:     strconv.Itoa(c.SequenceIndex),
			},
		}
	}
	return records, nil
}

// Upsert writes one record per chunk to ns in a single batched request.
// Writing the same document with the same chunk count again overwrites the
// same IDs.
func (w *IndexWriter) Upsert(ctx context.Context, docID string, chunks []domain.Chunk, vectors []domain.Vector, ns string) error {
	records, err := Records(docID, chunks, vectors)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	if err := w.index.Upsert(ctx, ns, records); err != nil {
		w.logger.Error("upsert failed",
			zap.String("doc_id", docID),
			zap.String("namespace", ns),
			zap.Int("records", len(records)),
			zap.Error(err),
		)
		return domain.NewStageError(domain.StageUpsert, domain.ErrIndex, err)
	}

	w.logger.Debug("upserted records",
		zap.String("doc_id", docID),
		zap.String("namespace", ns),
		zap.Int("records", len(records)),
	)
	return nil
}

// Prune deletes the records left over from an earlier ingestion that
// produced more chunks: IDs _vec(keep+1) through _vec(previous).
func (w *IndexWriter) Prune(ctx context.Context, docID string, keep, previous int, ns string) (int, error) {
	if previous <= keep {
		return 0, nil
	}
	if keep < 0 {
		keep = 0
	}

	ids := make([]string, 0, previous-keep)
	for seq := keep; seq < previous; seq++ {
		ids = append(ids, VectorID(docID, seq))
	}

	if err := w.index.Delete(ctx, ns, ids); err != nil {
		return 0, domain.NewStageError(domain.StagePrune, domain.ErrIndex, err)
	}

	w.logger.Debug("pruned stale records",
		zap.String("doc_id", docID),
		zap.Int("keep", keep),
		zap.Int("previous", previous),
	)
	return len(ids), nil
}
