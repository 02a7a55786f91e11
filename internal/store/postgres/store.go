// Package postgres implements the Schedule Store contract on PostgreSQL via
// pgx/v5, reusing the teacher's internal/platform/pg pool/tx/migrate
// plumbing. This is the primary backend (spec.md §4.2, §6).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskscheduler/core/internal/errs"
	"github.com/taskscheduler/core/internal/platform/pg"
	"github.com/taskscheduler/core/internal/store"
)

// Store is the PostgreSQL-backed Schedule Store.
type Store struct {
	pool *pgxpool.Pool
	tx   *pg.TxRunner
}

// New opens a connection pool to dsn and returns a ready Store. Callers
// should run Migrate(dsn) before New if the schema may not exist yet.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pg.NewPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	return &Store{pool: pool, tx: pg.NewTxRunner(pool)}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) q(ctx context.Context) pg.Querier {
	return s.tx.GetQuerier(ctx)
}

// CreateSchedule implements store.Store.
func (s *Store) CreateSchedule(ctx context.Context, params store.CreateScheduleParams) (uuid.UUID, error) {
	if !params.OverlapPolicy.Valid() {
		return uuid.Nil, fmt.Errorf("invalid overlap policy %q", params.OverlapPolicy)
	}

	scheduleID := uuid.New()
	now := time.Now().UTC()

	err := withRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			q := s.q(ctx)

			var exists bool
			err := q.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1 AND is_template)`,
				params.TemplateTaskID,
			).Scan(&exists)
			if err != nil {
				return fmt.Errorf("check template: %w", err)
			}
			if !exists {
				return errs.ErrTemplateNotFound
			}

			_, err = q.Exec(ctx, `
				INSERT INTO task_schedules
					(id, template_task_id, cron_expression, timezone, enabled,
					 next_run_at, run_count, max_instances, overlap_policy,
					 created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $9)`,
				scheduleID, params.TemplateTaskID, params.CronExpression, params.Timezone,
				params.Enabled, params.FirstNextRunAt, params.MaxInstances, params.OverlapPolicy, now,
			)
			if err != nil {
				return fmt.Errorf("insert schedule: %w", err)
			}

			_, err = q.Exec(ctx, `
				UPDATE tasks SET
					cron_expression = $2,
					timezone = $3,
					schedule_enabled = $4,
					next_execution = $5,
					updated_at = $6
				WHERE id = $1`,
				params.TemplateTaskID, params.CronExpression, params.Timezone,
				params.Enabled, params.FirstNextRunAt, now,
			)
			if err != nil {
				return fmt.Errorf("annotate template: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return uuid.Nil, err
	}
	return scheduleID, nil
}

// GetSchedule implements store.Store.
func (s *Store) GetSchedule(ctx context.Context, scheduleID uuid.UUID) (store.Schedule, error) {
	var sch store.Schedule
	err := withRetry(ctx, func(ctx context.Context) error {
		row := s.q(ctx).QueryRow(ctx, scheduleColumns+` FROM task_schedules WHERE id = $1`, scheduleID)
		var rowErr error
		sch, rowErr = scanSchedule(row)
		if errors.Is(rowErr, pgx.ErrNoRows) {
			return errs.ErrScheduleNotFound
		}
		if rowErr != nil {
			return fmt.Errorf("get schedule: %w", rowErr)
		}
		return nil
	})
	if err != nil {
		return store.Schedule{}, err
	}
	return sch, nil
}

// ListSchedules implements store.Store.
func (s *Store) ListSchedules(ctx context.Context, filter store.ScheduleFilter) ([]store.Schedule, error) {
	query := scheduleColumns + ` FROM task_schedules`
	var args []any
	if filter.OnlyEnabled {
		query += ` WHERE enabled = true`
	}
	query += ` ORDER BY next_run_at ASC`

	var out []store.Schedule
	err := withRetry(ctx, func(ctx context.Context) error {
		out = nil
		rows, err := s.q(ctx).Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list schedules: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			sch, err := scanSchedule(rows)
			if err != nil {
				return fmt.Errorf("scan schedule: %w", err)
			}
			out = append(out, sch)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListDue implements store.Store.
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]store.Schedule, error) {
	var out []store.Schedule
	err := withRetry(ctx, func(ctx context.Context) error {
		out = nil
		rows, err := s.q(ctx).Query(ctx,
			scheduleColumns+` FROM task_schedules WHERE enabled = true AND next_run_at <= $1
				ORDER BY next_run_at ASC LIMIT $2`,
			now, limit,
		)
		if err != nil {
			return fmt.Errorf("list due: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			sch, err := scanSchedule(rows)
			if err != nil {
				return fmt.Errorf("scan due schedule: %w", err)
			}
			out = append(out, sch)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountLiveInstances implements store.Store.
func (s *Store) CountLiveInstances(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	var n int
	err := withRetry(ctx, func(ctx context.Context) error {
		err := s.q(ctx).QueryRow(ctx,
			`SELECT count(*) FROM task_instances WHERE schedule_id = $1 AND status IN ('scheduled','running')`,
			scheduleID,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("count live instances: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// GetTemplateSnapshot implements store.Store.
func (s *Store) GetTemplateSnapshot(ctx context.Context, templateTaskID uuid.UUID) (store.TemplateSnapshot, error) {
	var snap store.TemplateSnapshot
	err := withRetry(ctx, func(ctx context.Context) error {
		err := s.q(ctx).QueryRow(ctx,
			`SELECT task_type, payload FROM tasks WHERE id = $1 AND is_template`,
			templateTaskID,
		).Scan(&snap.TaskType, &snap.Payload)
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.ErrTemplateNotFound
		}
		if err != nil {
			return fmt.Errorf("get template snapshot: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.TemplateSnapshot{}, err
	}
	return snap, nil
}

// Materialize implements store.Store's compare-and-swap firing transaction.
func (s *Store) Materialize(ctx context.Context, schedule store.Schedule, prevNextRunAt time.Time, scheduledFor, newNextRunAt time.Time, snapshot store.TemplateSnapshot) (uuid.UUID, uuid.UUID, error) {
	var instanceID, taskID uuid.UUID

	err := withRetry(ctx, func(ctx context.Context) error {
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			q := s.q(ctx)
			now := time.Now().UTC()

			tag, err := q.Exec(ctx, `
				UPDATE task_schedules SET
					next_run_at = $3,
					last_run_at = $4,
					run_count = run_count + 1,
					updated_at = $4
				WHERE id = $1 AND next_run_at = $2`,
				schedule.ID, prevNextRunAt, newNextRunAt, now,
			)
			if err != nil {
				return fmt.Errorf("advance schedule: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return errs.ErrMaterializationConflict
			}

			taskID = uuid.New()
			instanceID = uuid.New()
			metadata, err := json.Marshal(map[string]any{
				"scheduled_instance_id": instanceID,
				"scheduled_at":          scheduledFor,
				"template_task_id":      schedule.TemplateTaskID,
			})
			if err != nil {
				return fmt.Errorf("marshal instance metadata: %w", err)
			}

			_, err = q.Exec(ctx, `
				INSERT INTO tasks (id, task_type, payload, metadata, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, 'pending', $5, $5)`,
				taskID, snapshot.TaskType, snapshot.Payload, metadata, now,
			)
			if err != nil {
				return fmt.Errorf("clone task: %w", err)
			}

			_, err = q.Exec(ctx, `
				INSERT INTO task_instances
					(id, schedule_id, template_task_id, instance_task_id, scheduled_for, status, created_at)
				VALUES ($1, $2, $3, $4, $5, 'scheduled', $6)
				ON CONFLICT (schedule_id, scheduled_for) DO NOTHING`,
				instanceID, schedule.ID, schedule.TemplateTaskID, taskID, scheduledFor, now,
			)
			if err != nil {
				return fmt.Errorf("insert instance: %w", err)
			}

			_, err = q.Exec(ctx, `
				UPDATE tasks SET
					last_execution = $2,
					next_execution = $3,
					execution_count = execution_count + 1,
					updated_at = $4
				WHERE id = $1`,
				schedule.TemplateTaskID, scheduledFor, newNextRunAt, now,
			)
			if err != nil {
				return fmt.Errorf("annotate template on firing: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return instanceID, taskID, nil
}

// AdvanceNextOnly implements store.Store's skip-policy advance.
func (s *Store) AdvanceNextOnly(ctx context.Context, scheduleID uuid.UUID, prevNextRunAt, newNextRunAt time.Time) error {
	return withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.q(ctx).Exec(ctx, `
			UPDATE task_schedules SET next_run_at = $3, updated_at = $4
			WHERE id = $1 AND next_run_at = $2`,
			scheduleID, prevNextRunAt, newNextRunAt, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("advance next only: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrMaterializationConflict
		}
		return nil
	})
}

// TransitionToReplace implements store.Store.
func (s *Store) TransitionToReplace(ctx context.Context, scheduleID uuid.UUID) ([]uuid.UUID, error) {
	var affected []uuid.UUID

	err := withRetry(ctx, func(ctx context.Context) error {
		affected = nil
		return s.tx.WithinTx(ctx, func(ctx context.Context) error {
			q := s.q(ctx)

			rows, err := q.Query(ctx, `
				SELECT id, instance_task_id FROM task_instances
				WHERE schedule_id = $1 AND status IN ('scheduled','running')`,
				scheduleID,
			)
			if err != nil {
				return fmt.Errorf("select live instances: %w", err)
			}
			var taskIDs []uuid.UUID
			for rows.Next() {
				var id uuid.UUID
				var taskID *uuid.UUID
				if err := rows.Scan(&id, &taskID); err != nil {
					rows.Close()
					return fmt.Errorf("scan live instance: %w", err)
				}
				affected = append(affected, id)
				if taskID != nil {
					taskIDs = append(taskIDs, *taskID)
				}
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}
			if len(affected) == 0 {
				return nil
			}

			_, err = q.Exec(ctx, `
				UPDATE task_instances SET status = 'skipped'
				WHERE schedule_id = $1 AND status IN ('scheduled','running')`,
				scheduleID,
			)
			if err != nil {
				return fmt.Errorf("skip live instances: %w", err)
			}

			if len(taskIDs) > 0 {
				_, err = q.Exec(ctx, `UPDATE tasks SET status = 'cancelled' WHERE id = ANY($1)`, taskIDs)
				if err != nil {
					return fmt.Errorf("cancel linked tasks: %w", err)
				}
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

// Toggle implements store.Store.
func (s *Store) Toggle(ctx context.Context, scheduleID uuid.UUID, enabled bool) error {
	return withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.q(ctx).Exec(ctx,
			`UPDATE task_schedules SET enabled = $2, updated_at = $3 WHERE id = $1`,
			scheduleID, enabled, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("toggle schedule: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrScheduleNotFound
		}
		return nil
	})
}

// Delete implements store.Store. Instances cascade via FK.
func (s *Store) Delete(ctx context.Context, scheduleID uuid.UUID) error {
	return withRetry(ctx, func(ctx context.Context) error {
		tag, err := s.q(ctx).Exec(ctx, `DELETE FROM task_schedules WHERE id = $1`, scheduleID)
		if err != nil {
			return fmt.Errorf("delete schedule: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrScheduleNotFound
		}
		return nil
	})
}

// MetricsSnapshot implements store.Store.
func (s *Store) MetricsSnapshot(ctx context.Context, now time.Time) (store.MetricsSnapshot, error) {
	var snap store.MetricsSnapshot

	err := withRetry(ctx, func(ctx context.Context) error {
		snap = store.MetricsSnapshot{
			GeneratedAt:    now,
			InstancesToday: make(map[store.InstanceStatus]int64),
		}
		q := s.q(ctx)

		if err := q.QueryRow(ctx, `SELECT count(*) FROM task_schedules`).Scan(&snap.TotalSchedules); err != nil {
			return fmt.Errorf("count schedules: %w", err)
		}
		if err := q.QueryRow(ctx, `SELECT count(*) FROM task_schedules WHERE enabled = true`).Scan(&snap.ActiveSchedules); err != nil {
			return fmt.Errorf("count active schedules: %w", err)
		}

		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		dayEnd := dayStart.Add(24 * time.Hour)
		rows, err := q.Query(ctx, `
			SELECT status, count(*) FROM task_instances
			WHERE created_at >= $1 AND created_at < $2
			GROUP BY status`, dayStart, dayEnd)
		if err != nil {
			return fmt.Errorf("count today's instances: %w", err)
		}
		for rows.Next() {
			var status string
			var n int64
			if err := rows.Scan(&status, &n); err != nil {
				rows.Close()
				return fmt.Errorf("scan today's instance count: %w", err)
			}
			snap.InstancesToday[store.InstanceStatus(status)] = n
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if err := q.QueryRow(ctx,
			`SELECT count(*) FROM task_instances WHERE status IN ('scheduled','running')`,
		).Scan(&snap.LiveInstancesOverall); err != nil {
			return fmt.Errorf("count live instances overall: %w", err)
		}

		rows, err = q.Query(ctx, `
			SELECT id, cron_expression, next_run_at FROM task_schedules
			WHERE enabled = true ORDER BY next_run_at ASC LIMIT 10`)
		if err != nil {
			return fmt.Errorf("list upcoming firings: %w", err)
		}
		for rows.Next() {
			var u store.UpcomingFiring
			if err := rows.Scan(&u.ScheduleID, &u.CronExpression, &u.NextRunAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan upcoming firing: %w", err)
			}
			snap.UpcomingFirings = append(snap.UpcomingFirings, u)
		}
		rows.Close()
		return rows.Err()
	})
	if err != nil {
		return store.MetricsSnapshot{}, err
	}

	return snap, nil
}

const scheduleColumns = `SELECT
	id, template_task_id, cron_expression, timezone, enabled,
	next_run_at, last_run_at, run_count, max_instances, overlap_policy,
	created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanSchedule(row scannable) (store.Schedule, error) {
	var sch store.Schedule
	var policy string
	err := row.Scan(
		&sch.ID, &sch.TemplateTaskID, &sch.CronExpression, &sch.Timezone, &sch.Enabled,
		&sch.NextRunAt, &sch.LastRunAt, &sch.RunCount, &sch.MaxInstances, &policy,
		&sch.CreatedAt, &sch.UpdatedAt,
	)
	if err != nil {
		return store.Schedule{}, err
	}
	sch.OverlapPolicy = store.OverlapPolicy(policy)
	return sch, nil
}
