package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the Schedule Store contract (spec.md §4.2). Implementations must
// make every mutation idempotent under retries: replaying the same
// (scheduleId, scheduledFor) materialization must never produce two
// instance rows.
type Store interface {
	// CreateSchedule inserts a schedule row and stamps the referenced
	// template task's annotation columns in one transaction. Returns
	// errs.ErrTemplateNotFound if the template row does not exist.
	CreateSchedule(ctx context.Context, params CreateScheduleParams) (uuid.UUID, error)

	// GetSchedule returns a single schedule by id, or errs.ErrScheduleNotFound.
	GetSchedule(ctx context.Context, scheduleID uuid.UUID) (Schedule, error)

	// ListSchedules returns schedules matching filter, ordered by next_run_at ascending.
	ListSchedules(ctx context.Context, filter ScheduleFilter) ([]Schedule, error)

	// ListDue returns enabled schedules with next_run_at <= now, ordered by
	// next_run_at ascending, bounded by limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Schedule, error)

	// CountLiveInstances counts instances in {scheduled, running} for a schedule.
	CountLiveInstances(ctx context.Context, scheduleID uuid.UUID) (int, error)

	// GetTemplateSnapshot reads the task-type and opaque payload of the
	// referenced template task, for cloning at firing time. The core never
	// deserializes the payload (spec.md §9, "Dynamic payload cloning").
	GetTemplateSnapshot(ctx context.Context, templateTaskID uuid.UUID) (TemplateSnapshot, error)

	// Materialize performs the firing transaction: inserts an Instance row,
	// clones templateSnapshot into a new pending task row, links the two,
	// and recomputes+advances the schedule's next_run_at/run_count/last_run_at.
	// prevNextRunAt pins the compare-and-swap predicate (spec.md §5); if the
	// row's current next_run_at no longer equals prevNextRunAt, Materialize
	// returns errs.ErrMaterializationConflict and makes no changes.
	Materialize(ctx context.Context, schedule Schedule, prevNextRunAt time.Time, scheduledFor, newNextRunAt time.Time, snapshot TemplateSnapshot) (instanceID, taskID uuid.UUID, err error)

	// AdvanceNextOnly updates next_run_at without materializing an instance,
	// used when overlap policy skip declines to fire. Same CAS semantics as
	// Materialize.
	AdvanceNextOnly(ctx context.Context, scheduleID uuid.UUID, prevNextRunAt, newNextRunAt time.Time) error

	// TransitionToReplace marks all live instances for scheduleID as
	// skipped (and their linked task rows as cancelled) and returns their ids.
	TransitionToReplace(ctx context.Context, scheduleID uuid.UUID) ([]uuid.UUID, error)

	// Toggle flips a schedule's enabled flag.
	Toggle(ctx context.Context, scheduleID uuid.UUID, enabled bool) error

	// Delete removes a schedule and cascades to its instances.
	Delete(ctx context.Context, scheduleID uuid.UUID) error

	// MetricsSnapshot aggregates the read-only counts and lookahead list
	// described in spec.md §4.5.
	MetricsSnapshot(ctx context.Context, now time.Time) (MetricsSnapshot, error)

	// Close releases underlying connections.
	Close()
}
