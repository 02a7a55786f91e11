package errs_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

    "github.com/taskscheduler/core/internal/errs"
)

func TestHasKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     errs.Kind
		expected bool
	}{
		// Test nil error
		{
			name:     "nil error with any kind",
			err:      nil,
			kind:     errs.KindNotFound,
			expected: false,
		},
		{
			name:     "nil error with unknown kind",
			err:      nil,
			kind:     errs.KindUnknown,
			expected: true, // KindOf(nil) == KindUnknown
		},

		// Test basic sentinel errors
		{
			name:     "ErrNotFound has KindNotFound",
			err:      errs.ErrNotFound,
			kind:     errs.KindNotFound,
			expected: true,
		},
		{
			name:     "ErrNotFound does not have KindValidation",
			err:      errs.ErrNotFound,
			kind:     errs.KindValidation,
			expected: false,
		},
		{
			name:     "ErrTimeout has KindTimeout",
			err:      errs.ErrTimeout,
			kind:     errs.KindTimeout,
			expected: true,
		},

		// Test wrapped errors
		{
			name:     "wrapped ErrNotFound has KindNotFound",
			err:      errs.Wrap(errs.ErrNotFound, "user not found"),
			kind:     errs.KindNotFound,
			expected: true,
		},
		{
			name:     "wrapped ErrNotFound does not have KindValidation",
			err:      errs.Wrap(errs.ErrNotFound, "user not found"),
			kind:     errs.KindValidation,
			expected: false,
		},

		// Test marked errors
		{
			name:     "marked error has correct kind",
			err:      errs.MarkKind(errors.New("base"), errs.KindValidation),
			kind:     errs.KindValidation,
			expected: true,
		},
		{
			name:     "marked error does not have other kinds",
			err:      errs.MarkKind(errors.New("base"), errs.KindValidation),
			kind:     errs.KindInternal,
			expected: false,
		},

		// Test special cases: context errors
		{
			name:     "context.Canceled has KindCanceled",
			err:      context.Canceled,
			kind:     errs.KindCanceled,
			expected: true,
		},
		{
			name:     "context.Canceled does not have KindTimeout",
			err:      context.Canceled,
			kind:     errs.KindTimeout,
			expected: false,
		},
		{
			name:     "context.DeadlineExceeded has KindTimeout",
			err:      context.DeadlineExceeded,
			kind:     errs.KindTimeout,
			expected: true,
		},
		{
			name:     "context.DeadlineExceeded does not have KindCanceled",
			err:      context.DeadlineExceeded,
			kind:     errs.KindCanceled,
			expected: false,
		},

		// Test unknown errors
		{
			name:     "random error has KindUnknown",
			err:      errors.New("random error"),
			kind:     errs.KindUnknown,
			expected: true,
		},
		{
			name:     "random error does not have KindNotFound",
			err:      errors.New("random error"),
			kind:     errs.KindNotFound,
			expected: false,
		},

		// Test all kinds for completeness
		{
			name:     "ErrValidation has KindValidation",
			err:      errs.ErrValidation,
			kind:     errs.KindValidation,
			expected: true,
		},
		{
			name:     "ErrUnauthorized has KindUnauthorized",
			err:      errs.ErrUnauthorized,
			kind:     errs.KindUnauthorized,
			expected: true,
		},
		{
			name:     "ErrForbidden has KindForbidden",
			err:      errs.ErrForbidden,
			kind:     errs.KindForbidden,
			expected: true,
		},
		{
			name:     "ErrConflict has KindConflict",
			err:      errs.ErrConflict,
			kind:     errs.KindConflict,
			expected: true,
		},
		{
			name:     "ErrInternal has KindInternal",
			err:      errs.ErrInternal,
			kind:     errs.KindInternal,
			expected: true,
		},
		{
			name:     "ErrInvariantViolated has KindInvariantViolated",
			err:      errs.ErrInvariantViolated,
			kind:     errs.KindInvariantViolated,
			expected: true,
		},
		{
			name:     "ErrDependencyFailure has KindDependencyFailure",
			err:      errs.ErrDependencyFailure,
			kind:     errs.KindDependencyFailure,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errs.HasKind(tt.err, tt.kind)
			assert.Equal(t, tt.expected, result)

			// Verify equivalence with KindOf(err) == kind
			kindOfResult := errs.KindOf(tt.err) == tt.kind
			assert.Equal(t, kindOfResult, result, "HasKind should be equivalent to KindOf(err) == kind")
		})
	}
}

func TestHasKindWithJoin(t *testing.T) {
	// Test HasKind with errors.Join to ensure it follows priority rules
	tests := []struct {
		name     string
		errors   []error
		kind     errs.Kind
		expected bool
		reason   string
	}{
		{
			name: "joined errors with timeout - has timeout",
			errors: []error{
				errs.ErrNotFound,
				errs.ErrTimeout,
				errs.ErrValidation,
			},
			kind:     errs.KindTimeout,
			expected: true,
			reason:   "should detect timeout as highest priority",
		},
		{
			name: "joined errors with timeout - does not have not found",
			errors: []error{
				errs.ErrNotFound,
				errs.ErrTimeout,
				errs.ErrValidation,
			},
			kind:     errs.KindNotFound,
			expected: false,
			reason:   "should not detect not found when timeout has higher priority",
		},
		{
			name: "joined errors without high priority - has dependency failure",
			errors: []error{
				errs.ErrDependencyFailure,
				errs.ErrInternal,
				errs.ErrInvariantViolated,
			},
			kind:     errs.KindDependencyFailure,
			expected: true,
			reason:   "should detect dependency failure as highest among these",
		},
		{
			name: "joined errors without high priority - does not have internal",
			errors: []error{
				errs.ErrDependencyFailure,
				errs.ErrInternal,
				errs.ErrInvariantViolated,
			},
			kind:     errs.KindInternal,
			expected: false,
			reason:   "should not detect internal when dependency failure has higher priority",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			joinedErr := errors.Join(tt.errors...)
			result := errs.HasKind(joinedErr, tt.kind)
			assert.Equal(t, tt.expected, result, tt.reason)
		})
	}
}

func TestSentinelOf(t *testing.T) {
	tests := []struct {
		name     string
		kind     errs.Kind
		expected error
	}{
		{
			name:     "unknown kind",
			kind:     errs.KindUnknown,
			expected: nil,
		},
		{
			name:     "not found kind",
			kind:     errs.KindNotFound,
			expected: errs.ErrNotFound,
		},
		{
			name:     "validation kind",
			kind:     errs.KindValidation,
			expected: errs.ErrValidation,
		},
		{
			name:     "timeout kind",
			kind:     errs.KindTimeout,
			expected: errs.ErrTimeout,
		},
		{
			name:     "dependency failure kind",
			kind:     errs.KindDependencyFailure,
			expected: errs.ErrDependencyFailure,
		},
		{
			name:     "canceled kind",
			kind:     errs.KindCanceled,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errs.SentinelOf(tt.kind)
			assert.Equal(t, tt.expected, result)

			// Verify equivalence with ErrorOf
			errorOfResult := errs.ErrorOf(tt.kind)
			assert.Equal(t, errorOfResult, result, "SentinelOf should be equivalent to ErrorOf")
		})
	}
}
