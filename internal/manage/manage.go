package manage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskscheduler/core/internal/cron"
	"github.com/taskscheduler/core/internal/errs"
	"github.com/taskscheduler/core/internal/store"
)

// CreateParams are the caller-supplied inputs to Create.
type CreateParams struct {
	TemplateTaskID uuid.UUID
	CronExpression string
	Timezone       string
	MaxInstances   int
	OverlapPolicy  store.OverlapPolicy
	Enabled        bool
}

// ValidationResult is the pure outcome of Validate.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	NextRuns []time.Time
}

// Manager implements the Management API (spec.md §4.4).
type Manager struct {
	store           store.Store
	defaultTimezone string
	logger          *slog.Logger
}

// New builds a Manager backed by st. defaultTimezone is used when a caller
// omits Timezone in CreateParams.
func New(st store.Store, defaultTimezone string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTimezone == "" {
		defaultTimezone = "UTC"
	}
	return &Manager{store: st, defaultTimezone: defaultTimezone, logger: logger.With("component", "manage")}
}

// Create validates params, computes the first next_run_at, and persists a
// new schedule. Returns ErrInvalidExpression, ErrInvalidTimezone, or
// ErrTemplateNotFound (surfaced from the store) on bad input.
func (m *Manager) Create(ctx context.Context, params CreateParams) (uuid.UUID, error) {
	tz := params.Timezone
	if tz == "" {
		tz = m.defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return uuid.Nil, errs.Wrap(errs.ErrInvalidTimezone, err.Error())
	}

	expr, err := cron.Parse(params.CronExpression)
	if err != nil {
		return uuid.Nil, err
	}

	if !params.OverlapPolicy.Valid() {
		return uuid.Nil, errs.Wrap(errs.ErrInvalidExpression, "unknown overlap policy")
	}
	if params.MaxInstances < 1 {
		return uuid.Nil, errs.Wrap(errs.ErrInvalidExpression, "max_instances must be >= 1")
	}

	firstNextRunAt, err := expr.Next(time.Now().UTC(), loc)
	if err != nil {
		return uuid.Nil, err
	}

	scheduleID, err := m.store.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: params.TemplateTaskID,
		CronExpression: params.CronExpression,
		Timezone:       tz,
		Enabled:        params.Enabled,
		MaxInstances:   params.MaxInstances,
		OverlapPolicy:  params.OverlapPolicy,
		FirstNextRunAt: firstNextRunAt,
	})
	if err != nil {
		m.logger.Error("create schedule failed", "template_task_id", params.TemplateTaskID, "error", err)
		return uuid.Nil, err
	}

	m.logger.Info("schedule created", "schedule_id", scheduleID, "template_task_id", params.TemplateTaskID,
		"cron_expression", params.CronExpression, "next_run_at", firstNextRunAt)
	return scheduleID, nil
}

// Validate is a pure check of a cron expression: it never touches the
// store. On success it returns up to 10 upcoming firings from now in UTC.
func (m *Manager) Validate(cronText string) ValidationResult {
	expr, err := cron.Parse(cronText)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{err.Error()}}
	}

	runs, err := expr.Preview(time.Now().UTC(), time.UTC, 10)
	if err != nil {
		return ValidationResult{Valid: false, Errors: []string{err.Error()}}
	}

	return ValidationResult{Valid: true, NextRuns: runs}
}

// Toggle flips a schedule's enabled flag. Errors: ErrScheduleNotFound.
func (m *Manager) Toggle(ctx context.Context, scheduleID uuid.UUID, enabled bool) error {
	if err := m.store.Toggle(ctx, scheduleID, enabled); err != nil {
		return err
	}
	m.logger.Info("schedule toggled", "schedule_id", scheduleID, "enabled", enabled)
	return nil
}

// Delete removes a schedule and, by store cascade, its instances.
func (m *Manager) Delete(ctx context.Context, scheduleID uuid.UUID) error {
	if err := m.store.Delete(ctx, scheduleID); err != nil {
		return err
	}
	m.logger.Info("schedule deleted", "schedule_id", scheduleID)
	return nil
}

// List returns schedules matching filter.
func (m *Manager) List(ctx context.Context, filter store.ScheduleFilter) ([]store.Schedule, error) {
	return m.store.ListSchedules(ctx, filter)
}

// Get returns a single schedule. Errors: ErrScheduleNotFound.
func (m *Manager) Get(ctx context.Context, scheduleID uuid.UUID) (store.Schedule, error) {
	return m.store.GetSchedule(ctx, scheduleID)
}
