package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const maxBackoff = 5 * time.Second

// ProgressFunc receives the number of finished calls out of total.
type ProgressFunc func(done, total int)

// EmbedOptions configures an EmbeddingOrchestrator.
type EmbedOptions struct {
	// Dimension every returned vector must have. Defaults to the
	// embedder's own dimension.
	Dimension int
	// Concurrency bounds the number of in-flight provider calls.
	Concurrency int
	// CallTimeout bounds a single provider call (0 = none).
	CallTimeout time.Duration
	// MaxRetries is the number of extra attempts for transient failures.
	MaxRetries int
	// InitialBackoff is the first retry delay; it doubles up to 5s.
	InitialBackoff time.Duration
	// RequestsPerSecond caps the provider call rate (0 = unlimited).
	RequestsPerSecond float64
}

// EmbeddingOrchestrator turns ordered chunks into ordered vectors with one
// provider call per chunk.
type EmbeddingOrchestrator struct {
	embedder port.Embedder
	opts     EmbedOptions
	limiter  *rate.Limiter
	logger   *zap.Logger
}

func NewEmbeddingOrchestrator(embedder port.Embedder, opts EmbedOptions, logger *zap.Logger) *EmbeddingOrchestrator {
	if opts.Dimension <= 0 {
		opts.Dimension = embedder.Dimension()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 250 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &EmbeddingOrchestrator{
		embedder: embedder,
		opts:     opts,
		limiter:  limiter,
		logger:   logger,
	}
}

// Dimension returns the dimension every produced vector has.
func (o *EmbeddingOrchestrator) Dimension() int {
	return o.opts.Dimension
}

// EmbedBatch embeds every chunk. Vector i always belongs to chunks[i].
func (o *EmbeddingOrchestrator) EmbedBatch(ctx context.Context, chunks []domain.Chunk) ([]domain.Vector, error) {
	return o.EmbedBatchWithProgress(ctx, chunks, nil)
}

// EmbedBatchWithProgress is EmbedBatch reporting completed calls to progress.
// The first failure cancels the calls still in flight and no vectors are
// returned.
func (o *EmbeddingOrchestrator) EmbedBatchWithProgress(ctx context.Context, chunks []domain.Chunk, progress ProgressFunc) ([]domain.Vector, error) {
	vectors := make([]domain.Vector, len(chunks))
	if len(chunks) == 0 {
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	var done atomic.Int64
	total := len(chunks)

	for i := range chunks {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := o.embed(gctx, chunks[i].Text)
			if err != nil {
				return fmt.Errorf("chunk %d of %s: %w", chunks[i].SequenceIndex, chunks[i].DocID, err)
			}
			vectors[i] = vec
			if progress != nil {
				progress(int(done.Add(1)), total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	o.logger.Debug("embedded batch",
		zap.Int("chunks", total),
		zap.String("model", o.embedder.ModelName()),
	)
	return vectors, nil
}

// EmbedOne embeds a single text, typically a query.
func (o *EmbeddingOrchestrator) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	return o.embed(ctx, text)
}

// embed calls the provider with retries and validates the dimension.
// Failures come back as *domain.StageError for the embed stage.
func (o *EmbeddingOrchestrator) embed(ctx context.Context, text string) (domain.Vector, error) {
	vec, err := o.callWithRetry(ctx, text)
	if err != nil {
		return nil, domain.NewStageError(domain.StageEmbed, domain.ErrProvider, err)
	}
	if len(vec) != o.opts.Dimension {
		return nil, domain.NewStageError(domain.StageEmbed, domain.ErrConsistency,
			fmt.Errorf("expected dimension %d, got %d", o.opts.Dimension, len(vec)))
	}
	return vec, nil
}

func (o *EmbeddingOrchestrator) callWithRetry(ctx context.Context, text string) (domain.Vector, error) {
	backoff := o.opts.InitialBackoff
	for attempt := 0; ; attempt++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vec, err := o.call(ctx, text)
		if err == nil {
			return vec, nil
		}
		if attempt >= o.opts.MaxRetries || !domain.IsTransient(err) || ctx.Err() != nil {
			return nil, err
		}

		o.logger.Debug("retrying embedding call",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (o *EmbeddingOrchestrator) call(ctx context.Context, text string) (domain.Vector, error) {
	if o.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.CallTimeout)
		defer cancel()
	}
	return o.embedder.Embed(ctx, text)
}
