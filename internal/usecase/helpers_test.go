package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"docqa/internal/domain"
)

// funcEmbedder delegates to fn and tracks call statistics.
type funcEmbedder struct {
	dim      int
	fn       func(ctx context.Context, text string) (domain.Vector, error)
	calls    atomic.Int64
	inFlight atomic.Int64
	maxSeen  atomic.Int64
}

func newFuncEmbedder(dim int, fn func(ctx context.Context, text string) (domain.Vector, error)) *funcEmbedder {
	return &funcEmbedder{dim: dim, fn: fn}
}

func (e *funcEmbedder) Embed(ctx context.Context, text string) (domain.Vector, error) {
	e.calls.Add(1)
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		seen := e.maxSeen.Load()
		if n <= seen || e.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	return e.fn(ctx, text)
}

func (e *funcEmbedder) Dimension() int    { return e.dim }
func (e *funcEmbedder) ModelName() string { return "func" }

// recordingLLM returns a fixed reply and keeps the messages it was sent.
type recordingLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	messages [][]domain.Message
}

func (l *recordingLLM) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, messages)
	if l.err != nil {
		return "", l.err
	}
	return l.reply, nil
}

func (l *recordingLLM) ModelName() string { return "recording" }

func (l *recordingLLM) last() []domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.messages) == 0 {
		return nil
	}
	return l.messages[len(l.messages)-1]
}

var errBoom = errors.New("boom")

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
