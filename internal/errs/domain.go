package errs

import "errors"

// Domain-specific sentinel errors for the scheduling core. They are plain
// sentinels: match them with errors.Is or the Is* helpers below. KindOf does
// not recognize them and reports KindUnknown unless a caller has wrapped one
// with MarkKind.
var (
	// ErrInvalidExpression indicates a cron expression failed to parse.
	ErrInvalidExpression = errors.New("invalid cron expression")

	// ErrInvalidTimezone indicates an unrecognized IANA timezone identifier.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrTemplateNotFound indicates the referenced template task does not exist.
	ErrTemplateNotFound = errors.New("template task not found")

	// ErrScheduleNotFound indicates the referenced schedule does not exist.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrNoFutureFiring indicates the cron walk exceeded its defensive horizon
	// without finding a future firing. Treated as ErrInvalidExpression at the
	// management API boundary.
	ErrNoFutureFiring = errors.New("no future firing within horizon")

	// ErrMaterializationConflict is transient: the compare-and-swap advance
	// of next_run_at lost a race against another scheduler loop. Never
	// surfaced past the scheduler loop.
	ErrMaterializationConflict = errors.New("materialization conflict")

	// ErrStoreTimeout is transient: a store operation exceeded its
	// transaction timeout.
	ErrStoreTimeout = errors.New("store operation timed out")

	// ErrStoreCorruption is fatal for the affected schedule only.
	ErrStoreCorruption = errors.New("store corruption detected")
)

// IsInvalidExpression reports whether err is or wraps ErrInvalidExpression.
func IsInvalidExpression(err error) bool { return errors.Is(err, ErrInvalidExpression) }

// IsInvalidTimezone reports whether err is or wraps ErrInvalidTimezone.
func IsInvalidTimezone(err error) bool { return errors.Is(err, ErrInvalidTimezone) }

// IsTemplateNotFound reports whether err is or wraps ErrTemplateNotFound.
func IsTemplateNotFound(err error) bool { return errors.Is(err, ErrTemplateNotFound) }

// IsScheduleNotFound reports whether err is or wraps ErrScheduleNotFound.
func IsScheduleNotFound(err error) bool { return errors.Is(err, ErrScheduleNotFound) }

// IsMaterializationConflict reports whether err is or wraps ErrMaterializationConflict.
func IsMaterializationConflict(err error) bool {
	return errors.Is(err, ErrMaterializationConflict)
}

// IsStoreTimeout reports whether err is or wraps ErrStoreTimeout.
func IsStoreTimeout(err error) bool { return errors.Is(err, ErrStoreTimeout) }

// IsStoreCorruption reports whether err is or wraps ErrStoreCorruption.
func IsStoreCorruption(err error) bool { return errors.Is(err, ErrStoreCorruption) }
