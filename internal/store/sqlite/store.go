// Package sqlite implements the Schedule Store contract on SQLite via
// modernc.org/sqlite, reusing the teacher's internal/platform/sqlite
// db/tx/migrate plumbing. This is the secondary backend, suited to
// single-process deployments and tests (spec.md §4.2, §6).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskscheduler/core/internal/errs"
	platsqlite "github.com/taskscheduler/core/internal/platform/sqlite"
	"github.com/taskscheduler/core/internal/store"
)

// Store is the SQLite-backed Schedule Store.
type Store struct {
	db *sql.DB
	tx *platsqlite.TxRunner
}

// New opens the SQLite database at dbPath and returns a ready Store.
// Callers should run Migrate(dbPath) before New if the schema may not exist yet.
func New(ctx context.Context, dbPath string) (*Store, error) {
	db, err := platsqlite.NewDB(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: %w", err)
	}
	return &Store{db: db, tx: platsqlite.NewTxRunner(db)}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() {
	_ = s.tx.Close()
	_ = s.db.Close()
}

func (s *Store) q(ctx context.Context) platsqlite.Querier {
	return s.tx.GetQuerier(ctx)
}

func timeToText(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func textToTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// CreateSchedule implements store.Store.
func (s *Store) CreateSchedule(ctx context.Context, params store.CreateScheduleParams) (uuid.UUID, error) {
	if !params.OverlapPolicy.Valid() {
		return uuid.Nil, fmt.Errorf("invalid overlap policy %q", params.OverlapPolicy)
	}

	scheduleID := uuid.New()
	now := time.Now().UTC()
	nowText := timeToText(now)

	err := s.tx.WithinTxWrite(ctx, func(ctx context.Context) error {
		q := s.q(ctx)

		var exists int
		err := q.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM tasks WHERE id = ? AND is_template = 1)`,
			params.TemplateTaskID.String(),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check template: %w", err)
		}
		if exists == 0 {
			return errs.ErrTemplateNotFound
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO task_schedules
				(id, template_task_id, cron_expression, timezone, enabled,
				 next_run_at, run_count, max_instances, overlap_policy,
				 created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
			scheduleID.String(), params.TemplateTaskID.String(), params.CronExpression, params.Timezone,
			boolToInt(params.Enabled), timeToText(params.FirstNextRunAt), params.MaxInstances,
			string(params.OverlapPolicy), nowText, nowText,
		)
		if err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE tasks SET
				cron_expression = ?,
				timezone = ?,
				schedule_enabled = ?,
				next_execution = ?,
				updated_at = ?
			WHERE id = ?`,
			params.CronExpression, params.Timezone, boolToInt(params.Enabled),
			timeToText(params.FirstNextRunAt), nowText, params.TemplateTaskID.String(),
		)
		if err != nil {
			return fmt.Errorf("annotate template: %w", err)
		}

		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return scheduleID, nil
}

// GetSchedule implements store.Store.
func (s *Store) GetSchedule(ctx context.Context, scheduleID uuid.UUID) (store.Schedule, error) {
	row := s.q(ctx).QueryRowContext(ctx, scheduleColumns+` FROM task_schedules WHERE id = ?`, scheduleID.String())
	sch, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Schedule{}, errs.ErrScheduleNotFound
	}
	if err != nil {
		return store.Schedule{}, fmt.Errorf("get schedule: %w", err)
	}
	return sch, nil
}

// ListSchedules implements store.Store.
func (s *Store) ListSchedules(ctx context.Context, filter store.ScheduleFilter) ([]store.Schedule, error) {
	query := scheduleColumns + ` FROM task_schedules`
	if filter.OnlyEnabled {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY next_run_at ASC`

	rows, err := s.q(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []store.Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, sch)
	}
	return out, rows.Err()
}

// ListDue implements store.Store.
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]store.Schedule, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		scheduleColumns+` FROM task_schedules WHERE enabled = 1 AND next_run_at <= ?
			ORDER BY next_run_at ASC LIMIT ?`,
		timeToText(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due: %w", err)
	}
	defer rows.Close()

	var out []store.Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due schedule: %w", err)
		}
		out = append(out, sch)
	}
	return out, rows.Err()
}

// CountLiveInstances implements store.Store.
func (s *Store) CountLiveInstances(ctx context.Context, scheduleID uuid.UUID) (int, error) {
	var n int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM task_instances WHERE schedule_id = ? AND status IN ('scheduled','running')`,
		scheduleID.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count live instances: %w", err)
	}
	return n, nil
}

// GetTemplateSnapshot implements store.Store.
func (s *Store) GetTemplateSnapshot(ctx context.Context, templateTaskID uuid.UUID) (store.TemplateSnapshot, error) {
	var snap store.TemplateSnapshot
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT task_type, payload FROM tasks WHERE id = ? AND is_template = 1`,
		templateTaskID.String(),
	).Scan(&snap.TaskType, &snap.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return store.TemplateSnapshot{}, errs.ErrTemplateNotFound
	}
	if err != nil {
		return store.TemplateSnapshot{}, fmt.Errorf("get template snapshot: %w", err)
	}
	return snap, nil
}

// Materialize implements store.Store's compare-and-swap firing transaction.
func (s *Store) Materialize(ctx context.Context, schedule store.Schedule, prevNextRunAt time.Time, scheduledFor, newNextRunAt time.Time, snapshot store.TemplateSnapshot) (uuid.UUID, uuid.UUID, error) {
	var instanceID, taskID uuid.UUID

	err := s.tx.WithinTxWrite(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		now := time.Now().UTC()
		nowText := timeToText(now)

		res, err := q.ExecContext(ctx, `
			UPDATE task_schedules SET
				next_run_at = ?,
				last_run_at = ?,
				run_count = run_count + 1,
				updated_at = ?
			WHERE id = ? AND next_run_at = ?`,
			timeToText(newNextRunAt), nowText, nowText,
			schedule.ID.String(), timeToText(prevNextRunAt),
		)
		if err != nil {
			return fmt.Errorf("advance schedule: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("advance schedule rows affected: %w", err)
		}
		if affected == 0 {
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

		_, err = q.ExecContext(ctx, `
			INSERT INTO tasks (id, task_type, payload, metadata, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, 'pending', ?, ?)`,
			taskID.String(), snapshot.TaskType, snapshot.Payload, string(metadata), nowText, nowText,
		)
		if err != nil {
			return fmt.Errorf("clone task: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			INSERT OR IGNORE INTO task_instances
				(id, schedule_id, template_task_id, instance_task_id, scheduled_for, status, created_at)
			VALUES (?, ?, ?, ?, ?, 'scheduled', ?)`,
			instanceID.String(), schedule.ID.String(), schedule.TemplateTaskID.String(), taskID.String(),
			timeToText(scheduledFor), nowText,
		)
		if err != nil {
			return fmt.Errorf("insert instance: %w", err)
		}

		_, err = q.ExecContext(ctx, `
			UPDATE tasks SET
				last_execution = ?,
				next_execution = ?,
				execution_count = execution_count + 1,
				updated_at = ?
			WHERE id = ?`,
			timeToText(scheduledFor), timeToText(newNextRunAt), nowText, schedule.TemplateTaskID.String(),
		)
		if err != nil {
			return fmt.Errorf("annotate template on firing: %w", err)
		}

		return nil
	})
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return instanceID, taskID, nil
}

// AdvanceNextOnly implements store.Store's skip-policy advance.
func (s *Store) AdvanceNextOnly(ctx context.Context, scheduleID uuid.UUID, prevNextRunAt, newNextRunAt time.Time) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE task_schedules SET next_run_at = ?, updated_at = ?
		WHERE id = ? AND next_run_at = ?`,
		timeToText(newNextRunAt), timeToText(time.Now().UTC()),
		scheduleID.String(), timeToText(prevNextRunAt),
	)
	if err != nil {
		return fmt.Errorf("advance next only: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance next only rows affected: %w", err)
	}
	if affected == 0 {
		return errs.ErrMaterializationConflict
	}
	return nil
}

// TransitionToReplace implements store.Store.
func (s *Store) TransitionToReplace(ctx context.Context, scheduleID uuid.UUID) ([]uuid.UUID, error) {
	var affected []uuid.UUID

	err := s.tx.WithinTxWrite(ctx, func(ctx context.Context) error {
		q := s.q(ctx)

		rows, err := q.QueryContext(ctx, `
			SELECT id, instance_task_id FROM task_instances
			WHERE schedule_id = ? AND status IN ('scheduled','running')`,
			scheduleID.String(),
		)
		if err != nil {
			return fmt.Errorf("select live instances: %w", err)
		}
		var taskIDs []string
		for rows.Next() {
			var idText string
			var taskIDText sql.NullString
			if err := rows.Scan(&idText, &taskIDText); err != nil {
				rows.Close()
				return fmt.Errorf("scan live instance: %w", err)
			}
			id, err := uuid.Parse(idText)
			if err != nil {
				rows.Close()
				return fmt.Errorf("parse instance id: %w", err)
			}
			affected = append(affected, id)
			if taskIDText.Valid {
				taskIDs = append(taskIDs, taskIDText.String)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if len(affected) == 0 {
			return nil
		}

		_, err = q.ExecContext(ctx, `
			UPDATE task_instances SET status = 'skipped'
			WHERE schedule_id = ? AND status IN ('scheduled','running')`,
			scheduleID.String(),
		)
		if err != nil {
			return fmt.Errorf("skip live instances: %w", err)
		}

		for _, taskID := range taskIDs {
			if _, err := q.ExecContext(ctx, `UPDATE tasks SET status = 'cancelled' WHERE id = ?`, taskID); err != nil {
				return fmt.Errorf("cancel linked task %s: %w", taskID, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}

// Toggle implements store.Store.
func (s *Store) Toggle(ctx context.Context, scheduleID uuid.UUID, enabled bool) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE task_schedules SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), timeToText(time.Now().UTC()), scheduleID.String(),
	)
	if err != nil {
		return fmt.Errorf("toggle schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("toggle rows affected: %w", err)
	}
	if affected == 0 {
		return errs.ErrScheduleNotFound
	}
	return nil
}

// Delete implements store.Store. Instances cascade via FK (foreign_keys pragma required).
func (s *Store) Delete(ctx context.Context, scheduleID uuid.UUID) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM task_schedules WHERE id = ?`, scheduleID.String())
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rows affected: %w", err)
	}
	if affected == 0 {
		return errs.ErrScheduleNotFound
	}
	return nil
}

// MetricsSnapshot implements store.Store.
func (s *Store) MetricsSnapshot(ctx context.Context, now time.Time) (store.MetricsSnapshot, error) {
	snap := store.MetricsSnapshot{
		GeneratedAt:    now,
		InstancesToday: make(map[store.InstanceStatus]int64),
	}
	q := s.q(ctx)

	if err := q.QueryRowContext(ctx, `SELECT count(*) FROM task_schedules`).Scan(&snap.TotalSchedules); err != nil {
		return store.MetricsSnapshot{}, fmt.Errorf("count schedules: %w", err)
	}
	if err := q.QueryRowContext(ctx, `SELECT count(*) FROM task_schedules WHERE enabled = 1`).Scan(&snap.ActiveSchedules); err != nil {
		return store.MetricsSnapshot{}, fmt.Errorf("count active schedules: %w", err)
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	rows, err := q.QueryContext(ctx, `
		SELECT status, count(*) FROM task_instances
		WHERE created_at >= ? AND created_at < ?
		GROUP BY status`, timeToText(dayStart), timeToText(dayEnd))
	if err != nil {
		return store.MetricsSnapshot{}, fmt.Errorf("count today's instances: %w", err)
	}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return store.MetricsSnapshot{}, fmt.Errorf("scan today's instance count: %w", err)
		}
		snap.InstancesToday[store.InstanceStatus(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return store.MetricsSnapshot{}, err
	}

	if err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM task_instances WHERE status IN ('scheduled','running')`,
	).Scan(&snap.LiveInstancesOverall); err != nil {
		return store.MetricsSnapshot{}, fmt.Errorf("count live instances overall: %w", err)
	}

	rows, err = q.QueryContext(ctx, `
		SELECT id, cron_expression, next_run_at FROM task_schedules
		WHERE enabled = 1 ORDER BY next_run_at ASC LIMIT 10`)
	if err != nil {
		return store.MetricsSnapshot{}, fmt.Errorf("list upcoming firings: %w", err)
	}
	for rows.Next() {
		var idText, cronText, nextText string
		if err := rows.Scan(&idText, &cronText, &nextText); err != nil {
			rows.Close()
			return store.MetricsSnapshot{}, fmt.Errorf("scan upcoming firing: %w", err)
		}
		id, err := uuid.Parse(idText)
		if err != nil {
			rows.Close()
			return store.MetricsSnapshot{}, fmt.Errorf("parse upcoming firing id: %w", err)
		}
		nextAt, err := textToTime(nextText)
		if err != nil {
			rows.Close()
			return store.MetricsSnapshot{}, fmt.Errorf("parse upcoming firing time: %w", err)
		}
		snap.UpcomingFirings = append(snap.UpcomingFirings, store.UpcomingFiring{
			ScheduleID: id, CronExpression: cronText, NextRunAt: nextAt,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
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
	var (
		idText, templateIDText, cron, tz, policy string
		enabledInt                               int64
		nextRunText                               string
		lastRunText                               sql.NullString
		runCount                                  int64
		maxInstances                              int
		createdText, updatedText                  string
	)
	err := row.Scan(
		&idText, &templateIDText, &cron, &tz, &enabledInt,
		&nextRunText, &lastRunText, &runCount, &maxInstances, &policy,
		&createdText, &updatedText,
	)
	if err != nil {
		return store.Schedule{}, err
	}

	id, err := uuid.Parse(idText)
	if err != nil {
		return store.Schedule{}, fmt.Errorf("parse schedule id: %w", err)
	}
	templateID, err := uuid.Parse(templateIDText)
	if err != nil {
		return store.Schedule{}, fmt.Errorf("parse template id: %w", err)
	}
	nextRunAt, err := textToTime(nextRunText)
	if err != nil {
		return store.Schedule{}, fmt.Errorf("parse next_run_at: %w", err)
	}
	createdAt, err := textToTime(createdText)
	if err != nil {
		return store.Schedule{}, fmt.Errorf("parse created_at: %w", err)
	}
	updatedAt, err := textToTime(updatedText)
	if err != nil {
		return store.Schedule{}, fmt.Errorf("parse updated_at: %w", err)
	}

	var lastRunAt *time.Time
	if lastRunText.Valid {
		t, err := textToTime(lastRunText.String)
		if err != nil {
			return store.Schedule{}, fmt.Errorf("parse last_run_at: %w", err)
		}
		lastRunAt = &t
	}

	return store.Schedule{
		ID:             id,
		TemplateTaskID: templateID,
		CronExpression: cron,
		Timezone:       tz,
		Enabled:        enabledInt != 0,
		NextRunAt:      nextRunAt,
		LastRunAt:      lastRunAt,
		RunCount:       runCount,
		MaxInstances:   maxInstances,
		OverlapPolicy:  store.OverlapPolicy(policy),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}
