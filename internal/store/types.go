package store

import (
	"time"

	"github.com/google/uuid"
)

// OverlapPolicy governs what happens when a new firing would exceed a
// schedule's max_instances.
type OverlapPolicy string

const (
	// OverlapSkip declines to materialize and advances next_run_at only.
	OverlapSkip OverlapPolicy = "skip"
	// OverlapQueue materializes unconditionally, regardless of live instance count.
	OverlapQueue OverlapPolicy = "queue"
	// OverlapReplace transitions live instances to skipped before materializing.
	OverlapReplace OverlapPolicy = "replace"
)

// Valid reports whether p is one of the three recognized overlap policies.
func (p OverlapPolicy) Valid() bool {
	switch p {
	case OverlapSkip, OverlapQueue, OverlapReplace:
		return true
	default:
		return false
	}
}

// InstanceStatus is the lifecycle state of one materialized firing.
type InstanceStatus string

const (
	InstanceScheduled InstanceStatus = "scheduled"
	InstanceRunning   InstanceStatus = "running"
	InstanceCompleted InstanceStatus = "completed"
	InstanceFailed    InstanceStatus = "failed"
	InstanceSkipped   InstanceStatus = "skipped"
)

// IsTerminal reports whether no further transitions are expected from s.
func (s InstanceStatus) IsTerminal() bool {
	switch s {
	case InstanceCompleted, InstanceFailed, InstanceSkipped:
		return true
	default:
		return false
	}
}

// IsLive reports whether an instance in status s counts against max_instances.
func (s InstanceStatus) IsLive() bool {
	return s == InstanceScheduled || s == InstanceRunning
}

// Schedule mirrors the task_schedules row (spec.md §3, §6).
type Schedule struct {
	ID             uuid.UUID
	TemplateTaskID uuid.UUID
	CronExpression string
	Timezone       string
	Enabled        bool
	NextRunAt      time.Time
	LastRunAt      *time.Time
	RunCount       int64
	MaxInstances   int
	OverlapPolicy  OverlapPolicy
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Instance mirrors the task_instances row (spec.md §3, §6).
type Instance struct {
	ID               uuid.UUID
	ScheduleID       uuid.UUID
	TemplateTaskID   uuid.UUID
	InstanceTaskID   *uuid.UUID
	ScheduledFor     time.Time
	Status           InstanceStatus
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ExecutionTimeMs  *int64
	ErrorMessage     *string
	CreatedAt        time.Time
}

// TemplateSnapshot is the opaque payload cloned from the external template
// task row at firing time. The core never deserializes Payload; it treats
// it as a raw byte string and hands it to the store's cloning routine
// (spec.md §9, "Dynamic payload cloning").
type TemplateSnapshot struct {
	TaskType string
	Payload  []byte
}

// CreateScheduleParams bundles the inputs to CreateSchedule.
type CreateScheduleParams struct {
	TemplateTaskID uuid.UUID
	CronExpression string
	Timezone       string
	Enabled        bool
	MaxInstances   int
	OverlapPolicy  OverlapPolicy
	FirstNextRunAt time.Time
}

// ScheduleFilter narrows ListSchedules results.
type ScheduleFilter struct {
	OnlyEnabled bool
}

// UpcomingFiring is one row of the metrics snapshot's lookahead list.
type UpcomingFiring struct {
	ScheduleID     uuid.UUID
	CronExpression string
	NextRunAt      time.Time
}

// MetricsSnapshot is the read-only aggregate produced by the Metrics
// Aggregator (spec.md §4.5).
type MetricsSnapshot struct {
	GeneratedAt          time.Time
	TotalSchedules       int64
	ActiveSchedules      int64
	InstancesToday       map[InstanceStatus]int64
	LiveInstancesOverall int64
	UpcomingFirings      []UpcomingFiring
}
