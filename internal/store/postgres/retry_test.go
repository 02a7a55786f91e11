package postgres

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskscheduler/core/internal/errs"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"materialization conflict", errs.ErrMaterializationConflict, false},
		{"schedule not found", errs.ErrScheduleNotFound, false},
		{"template not found", errs.ErrTemplateNotFound, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, true},
		{"too many connections", &pgconn.PgError{Code: "53300"}, true},
		{"cannot connect now", &pgconn.PgError{Code: "57P03"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"generic error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestWithRetry_RetriesTransientThenSucceeds(t *testing.T) {
	var attempts int32
	err := withRetry(context.Background(), func(ctx context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts)
}

func TestWithRetry_ExhaustedTransientBecomesStoreTimeout(t *testing.T) {
	var attempts int32
	err := withRetry(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return &pgconn.PgError{Code: "40001"}
	})
	require.Error(t, err)
	assert.True(t, errs.IsStoreTimeout(err))
	assert.Equal(t, int32(retryConfig().MaxAttempts), attempts)
}

func TestWithRetry_DomainSentinelNeverRetried(t *testing.T) {
	var attempts int32
	err := withRetry(context.Background(), func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return errs.ErrScheduleNotFound
	})
	require.Error(t, err)
	assert.True(t, errs.IsScheduleNotFound(err))
	assert.Equal(t, int32(1), attempts)
}
