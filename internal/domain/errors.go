package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every pipeline failure wraps exactly one of these so callers
// can branch with errors.Is.
var (
	// ErrInvalidInput is returned before any external call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrProvider covers embedding and generative model failures.
	ErrProvider = errors.New("provider error")

	// ErrIndex covers vector index upsert, query and delete failures.
	ErrIndex = errors.New("index error")

	// ErrConsistency covers count and dimension mismatches.
	ErrConsistency = errors.New("consistency error")

	// ErrNamespaceNotReady indicates the index is absent or was created
	// with a different dimension or metric.
	ErrNamespaceNotReady = errors.New("namespace not ready")
)

// Pipeline stages reported on failures.
const (
	StageChunk    = "chunk"
	StageEmbed    = "embed"
	StageUpsert   = "upsert"
	StagePrune    = "prune"
	StageRetrieve = "retrieve"
	StageGenerate = "generate"
	StageEnsure   = "ensure"
)

// StageError attaches the failing pipeline stage and an error kind to err.
type StageError struct {
	Stage string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewStageError wraps err as a failure of stage with the given kind.
func NewStageError(stage string, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// StageOf returns the stage recorded on err, or "" if none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable (rate limiting, 5xx, network failures).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}
