package usecase

import (
	"context"
	"fmt"
	"time"

	"docqa/internal/domain"
	"docqa/internal/port"
)

// EnsureOptions controls EnsureNamespace.
type EnsureOptions struct {
	// Create makes a missing namespace instead of failing.
	Create bool
	// WaitReady bounds how long to wait for a created namespace to become
	// ready. Hosted indexes take a while after creation.
	WaitReady time.Duration
	// PollInterval is the delay between readiness checks.
	PollInterval time.Duration
}

// EnsureNamespace verifies that ns exists with the given spec before any
// write. It returns a *domain.StageError wrapping domain.ErrNamespaceNotReady
// when the namespace is missing (and Create is false), still initialising,
// or was created with another dimension or metric.
func EnsureNamespace(ctx context.Context, index port.VectorIndex, ns string, spec domain.IndexSpec, opts EnsureOptions) error {
	got, exists, err := index.DescribeNamespace(ctx, ns)
	if err != nil {
		return domain.NewStageError(domain.StageEnsure, domain.ErrIndex, err)
	}

	if !exists {
		if !opts.Create {
			return domain.NewStageError(domain.StageEnsure, domain.ErrNamespaceNotReady,
				fmt.Errorf("namespace %s does not exist (run `docqa init`)", ns))
		}
		if err := index.CreateNamespace(ctx, ns, spec); err != nil {
			return domain.NewStageError(domain.StageEnsure, domain.ErrIndex, err)
		}
		got, exists, err = waitReady(ctx, index, ns, opts)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NewStageError(domain.StageEnsure, domain.ErrNamespaceNotReady,
				fmt.Errorf("namespace %s was created but is not ready yet", ns))
		}
	}

	if got.Dimension != spec.Dimension || got.Metric != spec.Metric {
		return domain.NewStageError(domain.StageEnsure, domain.ErrNamespaceNotReady,
			fmt.Errorf("namespace %s has dimension %d metric %q, want dimension %d metric %q",
				ns, got.Dimension, got.Metric, spec.Dimension, spec.Metric))
	}
	return nil
}

func waitReady(ctx context.Context, index port.VectorIndex, ns string, opts EnsureOptions) (domain.IndexSpec, bool, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	deadline := time.Now().Add(opts.WaitReady)

	for {
		spec, exists, err := index.DescribeNamespace(ctx, ns)
		if err != nil {
			return spec, false, domain.NewStageError(domain.StageEnsure, domain.ErrIndex, err)
		}
		if exists || !time.Now().Add(interval).Before(deadline) {
			return spec, exists, nil
		}

		select {
		case <-ctx.Done():
			return spec, false, domain.NewStageError(domain.StageEnsure, domain.ErrIndex, ctx.Err())
		case <-time.After(interval):
		}
	}
}
