package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskscheduler/core/internal/errs"
	"github.com/taskscheduler/core/pkg/retry"
)

// retryConfig bounds how hard the store leans on a flaky connection before
// giving up and surfacing errs.ErrStoreTimeout. Schedule firings are
// idempotent under the next_run_at compare-and-swap, so retrying a timed-out
// write is safe: either it never committed, or the CAS on the next attempt
// fails loudly with ErrMaterializationConflict instead of double-firing.
func retryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.InitialDelay = 50 * time.Millisecond
	cfg.MaxDelay = 2 * time.Second
	cfg.MaxElapsedTime = 5 * time.Second
	return cfg
}

// withRetry runs fn, retrying transient connection failures with backoff and
// collapsing an exhausted retry budget into errs.ErrStoreTimeout. Domain
// sentinels (not-found, materialization conflict) pass straight through on
// the first attempt since isTransient never retries them.
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	err := retry.DoWithRetryable(ctx, retryConfig(), fn, isTransient)

	var exceeded *retry.RetriesExceededError
	if errors.As(err, &exceeded) {
		return errs.Wrap(errs.ErrStoreTimeout, exceeded.Error())
	}
	return err
}

// isTransient classifies pgx/pgconn failures worth retrying: connection
// loss, admission limits, and serialization/deadlock aborts under
// concurrent scheduler-loop instances. Domain sentinels and data errors
// (bad rows, not-found) are never retryable.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errs.ErrMaterializationConflict) ||
		errors.Is(err, errs.ErrScheduleNotFound) ||
		errors.Is(err, errs.ErrTemplateNotFound) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"53300", // too_many_connections
			"57P03": // cannot_connect_now
			return true
		default:
			return false
		}
	}

	return retry.DefaultRetryable(err)
}
