package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func numberedChunks(n int) []domain.Chunk {
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{DocID: "doc", SequenceIndex: i, Text: fmt.Sprintf("chunk-%d", i)}
	}
	return chunks
}

// indexVector encodes the number in "chunk-N" as the first component.
func indexVector(text string) domain.Vector {
	n, _ := strconv.Atoi(strings.TrimPrefix(text, "chunk-"))
	return domain.Vector{float32(n), 1}
}

func TestEmbedBatch_PreservesOrderUnderRandomLatency(t *testing.T) {
	var mu sync.Mutex
	rng := rand.New(rand.NewSource(42))
	emb := newFuncEmbedder(2, func(ctx context.Context, text string) (domain.Vector, error) {
		mu.Lock()
		d := time.Duration(rng.Intn(5000)) * time.Microsecond
		mu.Unlock()
		if err := sleepCtx(ctx, d); err != nil {
			return nil, err
		}
		return indexVector(text), nil
	})

	o := NewEmbeddingOrchestrator(emb, EmbedOptions{Concurrency: 4}, nil)
	chunks := numberedChunks(64)

	vectors, err := o.EmbedBatch(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, vectors, len(chunks))
	for i, v := range vectors {
		assert.Equal(t, float32(i), v[0], "vector %d belongs to another chunk", i)
	}
	assert.EqualValues(t, 64, emb.calls.Load())
	assert.LessOrEqual(t, emb.maxSeen.Load(), int64(4))
}

func TestEmbedBatch_FailureCancelsBatch(t *testing.T) {
	emb := newFuncEmbedder(2, func(ctx context.Context, text string) (domain.Vector, error) {
		if text == "chunk-3" {
			return nil, errBoom
		}
		// Everyone else waits for the batch to be cancelled.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return indexVector(text), nil
		}
	})

	o := NewEmbeddingOrchestrator(emb, EmbedOptions{Concurrency: 4}, nil)

	start := time.Now()
	vectors, err := o.EmbedBatch(context.Background(), numberedChunks(20))
	require.Error(t, err)
	assert.Nil(t, vectors)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.StageEmbed, domain.StageOf(err))
	assert.Less(t, time.Since(start), 4*time.Second, "in-flight calls should be cancelled")
	assert.LessOrEqual(t, emb.calls.Load(), int64(4), "no calls after the first failure")
}

func TestEmbedBatch_DimensionMismatch(t *testing.T) {
	emb := newFuncEmbedder(3, func(ctx context.Context, text string) (domain.Vector, error) {
		if text == "chunk-1" {
			return domain.Vector{1, 2}, nil
		}
		return domain.Vector{1, 2, 3}, nil
	})

	o := NewEmbeddingOrchestrator(emb, EmbedOptions{Concurrency: 2}, nil)
	_, err := o.EmbedBatch(context.Background(), numberedChunks(3))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConsistency)
	assert.NotErrorIs(t, err, domain.ErrProvider)
}

func TestEmbedBatch_ConfiguredDimensionWins(t *testing.T) {
	emb := newFuncEmbedder(3, func(ctx context.Context, text string) (domain.Vector, error) {
		return domain.Vector{1, 2, 3}, nil
	})
	o := NewEmbeddingOrchestrator(emb, EmbedOptions{Dimension: 1536}, nil)
	assert.Equal(t, 1536, o.Dimension())

	_, err := o.EmbedOne(context.Background(), "q")
	assert.ErrorIs(t, err, domain.ErrConsistency)
}

func TestEmbedBatch_Empty(t *testing.T) {
	emb := newFuncEmbedder(2, func(ctx context.Context, text string) (domain.Vector, error) {
		return domain.Vector{1, 1}, nil
	})
	o := NewEmbeddingOrchestrator(emb, EmbedOptions{Concurrency: 4}, nil)

	vectors, err := o.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, emb.calls.Load())
}

func TestEmbedBatch_Progress(t *testing.T) {
	emb := newFuncEmbedder(2, func(ctx context.Context, text string) (domain.Vector, error) {
		return indexVector(text), nil
	})
	o := NewEmbeddingOrchestrator(emb, EmbedOptions{Concurrency: 3}, nil)

	var mu sync.Mutex
	var seen []int
	_, err := o.EmbedBatchWithProgress(context.Background(), numberedChunks(10), func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 10, total)
		seen = append(seen, done)
	})
	require.NoError(t, err)
	assert.Len(t, seen, 10)
	assert.Contains(t, seen, 10)
}

func TestEmbed_Retry(t *testing.T) {
	tests := []struct {
		name       string
		failures   int
		transient  bool
		maxRetries int
		wantErr    bool
		wantCalls  int64
	}{
		{"transient then success", 2, true, 2, false, 3},
		{"transient exhausts retries", 3, true, 2, true, 3},
		{"permanent is not retried", 1, false, 2, true, 1},
		{"retries disabled", 1, true, 0, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int
			var mu sync.Mutex
			emb := newFuncEmbedder(2, func(ctx context.Context, text string) (domain.Vector, error) {
				mu.Lock()
				defer mu.Unlock()
				attempts++
				if attempts <= tt.failures {
					if tt.transient {
						return nil, domain.Transient(errBoom)
					}
					return nil, errBoom
				}
				return domain.Vector{1, 1}, nil
			})

			o := NewEmbeddingOrchestrator(emb, EmbedOptions{
				MaxRetries:     tt.maxRetries,
				InitialBackoff: time.Millisecond,
			}, nil)

			_, err := o.EmbedOne(context.Background(), "q")
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrProvider)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, emb.calls.Load())
		})
	}
}

func TestEmbed_CallTimeout(t *testing.T) {
	emb := newFuncEmbedder(2, func(ctx context.Context, text string) (domain.Vector, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	o := NewEmbeddingOrchestrator(emb, EmbedOptions{CallTimeout: 10 * time.Millisecond}, nil)

	_, err := o.EmbedOne(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestEmbed_RateLimit(t *testing.T) {
	emb := newFuncEmbedder(2, func(ctx context.Context, text string) (domain.Vector, error) {
		return domain.Vector{1, 1}, nil
	})
	o := NewEmbeddingOrchestrator(emb, EmbedOptions{Concurrency: 4, RequestsPerSecond: 50}, nil)

	start := time.Now()
	_, err := o.EmbedBatch(context.Background(), numberedChunks(60))
	require.NoError(t, err)
	// A burst of 50 then 10 more at 50/s needs roughly 200ms.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
