package loop

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskscheduler/core/internal/adapter/scheduler"
	"github.com/taskscheduler/core/internal/cron"
	"github.com/taskscheduler/core/internal/errs"
	"github.com/taskscheduler/core/internal/store"
)

// Config tunes the Scheduler Loop (spec.md §4.3).
type Config struct {
	// CheckInterval is the wall time between polls.
	CheckInterval time.Duration
	// BatchSize bounds how many due schedules one tick processes.
	BatchSize int
	// MaxConcurrentInstances is a defensive global ceiling on materializations
	// performed within a single tick, independent of any one schedule's
	// max_instances.
	MaxConcurrentInstances int
	// DefaultTimezone is used when a schedule's timezone fails to load.
	DefaultTimezone string
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:          60 * time.Second,
		BatchSize:              100,
		MaxConcurrentInstances: 1000,
		DefaultTimezone:        "UTC",
	}
}

// Loop is the periodic driver that materializes due schedules.
type Loop struct {
	store  store.Store
	logger *slog.Logger
	cfg    Config
}

// New builds a Loop against st, logging through logger (or slog.Default if nil).
func New(st store.Store, cfg Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{store: st, logger: logger.With("component", "scheduler_loop"), cfg: cfg}
}

// Register wires the loop's Tick onto sched as a ticker job that never
// overlaps itself: a tick still running when the next one is due is simply
// skipped, per spec.md §5's suspension model (the loop only ever blocks in
// its interval sleep or a store transaction).
func (l *Loop) Register(sched *scheduler.Scheduler) scheduler.TickerJobID {
	return sched.AddTickerJobWithOptions(l.cfg.CheckInterval, l.Tick, scheduler.JobOptions{
		Name:          "scheduler_loop_tick",
		OverlapPolicy: scheduler.SkipIfRunning,
	})
}

// Tick runs one pass of the algorithm in spec.md §4.3: list due schedules,
// decide and execute an action for each in next_run_at order. A failure on
// one schedule is logged and does not abort the batch.
func (l *Loop) Tick(ctx context.Context) error {
	now := time.Now().UTC()

	due, err := l.store.ListDue(ctx, now, l.cfg.BatchSize)
	if err != nil {
		l.logger.Error("list_due failed", "error", err)
		return err
	}

	materializedThisTick := 0
	for _, sch := range due {
		if err := l.processSchedule(ctx, sch, &materializedThisTick); err != nil {
			l.logger.Error("schedule tick failed", "schedule_id", sch.ID, "error", err)
		}
	}

	return nil
}

func (l *Loop) processSchedule(ctx context.Context, sch store.Schedule, materializedThisTick *int) error {
	logger := l.logger.With("schedule_id", sch.ID)

	loc, err := time.LoadLocation(sch.Timezone)
	if err != nil {
		loc, err = time.LoadLocation(l.cfg.DefaultTimezone)
		if err != nil {
			logger.Error("schedule has unrecoverable timezone, skipping", "timezone", sch.Timezone, "error", err)
			return errs.MarkKind(err, errs.KindInvariantViolated)
		}
		logger.Warn("schedule timezone failed to load, falling back to default", "timezone", sch.Timezone)
	}

	expr, err := cron.Parse(sch.CronExpression)
	if err != nil {
		logger.Error("schedule has unparseable cron expression, skipping", "cron_expression", sch.CronExpression, "error", err)
		return errs.Wrap(err, "schedule corrupted")
	}

	live, err := l.store.CountLiveInstances(ctx, sch.ID)
	if err != nil {
		return errs.Wrap(err, "count live instances")
	}

	action := Decide(sch.OverlapPolicy, live, sch.MaxInstances)

	if action != DoNothingAdvance && *materializedThisTick >= l.cfg.MaxConcurrentInstances {
		logger.Warn("deferring materialization: tick-wide concurrency ceiling reached",
			"max_concurrent_instances", l.cfg.MaxConcurrentInstances)
		action = DoNothingAdvance
	}

	scheduledFor := sch.NextRunAt
	// Catch-up coalescing: the next firing is computed from now rather than
	// from the missed instant, so missed interior firings are never materialized.
	from := scheduledFor
	if now := time.Now().UTC(); now.After(from) {
		from = now
	}
	newNextRunAt, err := expr.Next(from, loc)
	if err != nil {
		logger.Error("cron walk found no future firing, skipping", "error", err)
		return errs.Wrap(err, "compute next firing")
	}

	switch action {
	case DoNothingAdvance:
		if err := l.store.AdvanceNextOnly(ctx, sch.ID, sch.NextRunAt, newNextRunAt); err != nil {
			if errs.IsMaterializationConflict(err) {
				logger.Debug("lost advance race to another scheduler loop")
				return nil
			}
			return errs.Wrap(err, "advance next only")
		}
		logger.Info("firing skipped by overlap policy", "overlap_policy", sch.OverlapPolicy,
			"live_instances", live, "max_instances", sch.MaxInstances, "next_run_at", newNextRunAt)

	case ReplaceThenMaterialize:
		affected, err := l.store.TransitionToReplace(ctx, sch.ID)
		if err != nil {
			return errs.Wrap(err, "transition to replace")
		}
		instanceID, taskID, err := l.materialize(ctx, sch, scheduledFor, newNextRunAt)
		if err != nil {
			if errs.IsMaterializationConflict(err) {
				logger.Debug("lost materialize race to another scheduler loop")
				return nil
			}
			return err
		}
		*materializedThisTick++
		logger.Info("instance replaced prior live instances and materialized",
			"replaced_count", len(affected), "instance_id", instanceID, "task_id", taskID, "next_run_at", newNextRunAt)

	case Materialize:
		instanceID, taskID, err := l.materialize(ctx, sch, scheduledFor, newNextRunAt)
		if err != nil {
			if errs.IsMaterializationConflict(err) {
				logger.Debug("lost materialize race to another scheduler loop")
				return nil
			}
			return err
		}
		*materializedThisTick++
		logger.Info("instance materialized", "instance_id", instanceID, "task_id", taskID, "next_run_at", newNextRunAt)
	}

	return nil
}

func (l *Loop) materialize(ctx context.Context, sch store.Schedule, scheduledFor, newNextRunAt time.Time) (instanceID, taskID uuid.UUID, err error) {
	snapshot, err := l.store.GetTemplateSnapshot(ctx, sch.TemplateTaskID)
	if err != nil {
		return uuid.Nil, uuid.Nil, errs.Wrap(err, "get template snapshot")
	}
	return l.store.Materialize(ctx, sch, sch.NextRunAt, scheduledFor, newNextRunAt, snapshot)
}
