package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskscheduler/core/internal/errs"
	platsqlite "github.com/taskscheduler/core/internal/platform/sqlite"
	"github.com/taskscheduler/core/internal/store"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	ctx := context.Background()

	tdb := platsqlite.NewTestDBFile(t)
	require.NoError(t, tdb.DB.Close())

	require.NoError(t, Migrate(tdb.Path))

	s, err := New(ctx, tdb.Path)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s, tdb.Path
}

func seedTemplate(t *testing.T, s *Store) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := timeToText(time.Now().UTC())
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, task_type, payload, metadata, status, is_template, created_at, updated_at)
		VALUES (?, 'report.generate', x'', '{}', 'template', 1, ?, ?)`,
		id.String(), now, now,
	)
	require.NoError(t, err)
	return id
}

func TestCreateSchedule_TemplateNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: uuid.New(),
		CronExpression: "0 * * * *",
		Timezone:       "UTC",
		Enabled:        true,
		MaxInstances:   1,
		OverlapPolicy:  store.OverlapSkip,
		FirstNextRunAt: time.Now().UTC().Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrTemplateNotFound))
}

func TestGetTemplateSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	templateID := seedTemplate(t, s)

	snap, err := s.GetTemplateSnapshot(ctx, templateID)
	require.NoError(t, err)
	assert.Equal(t, "report.generate", snap.TaskType)

	_, err = s.GetTemplateSnapshot(ctx, uuid.New())
	assert.True(t, errors.Is(err, errs.ErrTemplateNotFound))
}

func TestCreateSchedule_AnnotatesTemplate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	templateID := seedTemplate(t, s)
	next := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	scheduleID, err := s.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: templateID,
		CronExpression: "0 * * * *",
		Timezone:       "UTC",
		Enabled:        true,
		MaxInstances:   1,
		OverlapPolicy:  store.OverlapSkip,
		FirstNextRunAt: next,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, scheduleID)

	sch, err := s.GetSchedule(ctx, scheduleID)
	require.NoError(t, err)
	assert.Equal(t, "0 * * * *", sch.CronExpression)
	assert.True(t, sch.Enabled)
	assert.True(t, sch.NextRunAt.Equal(next))

	var scheduleEnabled int
	var cronExpr string
	err = s.db.QueryRow(`SELECT schedule_enabled, cron_expression FROM tasks WHERE id = ?`, templateID.String()).
		Scan(&scheduleEnabled, &cronExpr)
	require.NoError(t, err)
	assert.Equal(t, 1, scheduleEnabled)
	assert.Equal(t, "0 * * * *", cronExpr)
}

func TestListDue_OnlyEnabledAndPastDue(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	templateID := seedTemplate(t, s)
	now := time.Now().UTC()

	dueID, err := s.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: templateID, CronExpression: "* * * * *", Timezone: "UTC",
		Enabled: true, MaxInstances: 1, OverlapPolicy: store.OverlapSkip,
		FirstNextRunAt: now.Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = s.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: templateID, CronExpression: "* * * * *", Timezone: "UTC",
		Enabled: true, MaxInstances: 1, OverlapPolicy: store.OverlapSkip,
		FirstNextRunAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = s.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: templateID, CronExpression: "* * * * *", Timezone: "UTC",
		Enabled: false, MaxInstances: 1, OverlapPolicy: store.OverlapSkip,
		FirstNextRunAt: now.Add(-time.Minute),
	})
	require.NoError(t, err)

	due, err := s.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dueID, due[0].ID)
}

func TestMaterialize_SucceedsThenConflictsOnReplay(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	templateID := seedTemplate(t, s)
	prevNext := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)

	scheduleID, err := s.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: templateID, CronExpression: "* * * * *", Timezone: "UTC",
		Enabled: true, MaxInstances: 1, OverlapPolicy: store.OverlapSkip,
		FirstNextRunAt: prevNext,
	})
	require.NoError(t, err)
	sch, err := s.GetSchedule(ctx, scheduleID)
	require.NoError(t, err)

	newNext := prevNext.Add(time.Minute)
	snapshot := store.TemplateSnapshot{TaskType: "report.generate", Payload: []byte(`{"x":1}`)}

	instanceID, taskID, err := s.Materialize(ctx, sch, prevNext, prevNext, newNext, snapshot)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, instanceID)
	assert.NotEqual(t, uuid.Nil, taskID)

	live, err := s.CountLiveInstances(ctx, scheduleID)
	require.NoError(t, err)
	assert.Equal(t, 1, live)

	// Replaying with the now-stale prevNextRunAt must be refused: another
	// caller already won this firing.
	_, _, err = s.Materialize(ctx, sch, prevNext, prevNext, newNext, snapshot)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrMaterializationConflict))

	live, err = s.CountLiveInstances(ctx, scheduleID)
	require.NoError(t, err)
	assert.Equal(t, 1, live, "a refused replay must not create a second instance")
}

func TestTransitionToReplace_SkipsLiveInstances(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	templateID := seedTemplate(t, s)
	prevNext := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)

	scheduleID, err := s.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: templateID, CronExpression: "* * * * *", Timezone: "UTC",
		Enabled: true, MaxInstances: 1, OverlapPolicy: store.OverlapReplace,
		FirstNextRunAt: prevNext,
	})
	require.NoError(t, err)
	sch, err := s.GetSchedule(ctx, scheduleID)
	require.NoError(t, err)

	newNext := prevNext.Add(time.Minute)
	snapshot := store.TemplateSnapshot{TaskType: "report.generate", Payload: []byte(`{}`)}
	_, _, err = s.Materialize(ctx, sch, prevNext, prevNext, newNext, snapshot)
	require.NoError(t, err)

	affected, err := s.TransitionToReplace(ctx, scheduleID)
	require.NoError(t, err)
	require.Len(t, affected, 1)

	live, err := s.CountLiveInstances(ctx, scheduleID)
	require.NoError(t, err)
	assert.Equal(t, 0, live)
}

func TestToggleAndDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	templateID := seedTemplate(t, s)

	scheduleID, err := s.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: templateID, CronExpression: "* * * * *", Timezone: "UTC",
		Enabled: true, MaxInstances: 1, OverlapPolicy: store.OverlapSkip,
		FirstNextRunAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	require.NoError(t, s.Toggle(ctx, scheduleID, false))
	sch, err := s.GetSchedule(ctx, scheduleID)
	require.NoError(t, err)
	assert.False(t, sch.Enabled)

	err = s.Toggle(ctx, uuid.New(), true)
	assert.True(t, errors.Is(err, errs.ErrScheduleNotFound))

	require.NoError(t, s.Delete(ctx, scheduleID))
	_, err = s.GetSchedule(ctx, scheduleID)
	assert.True(t, errors.Is(err, errs.ErrScheduleNotFound))

	err = s.Delete(ctx, scheduleID)
	assert.True(t, errors.Is(err, errs.ErrScheduleNotFound))
}

func TestMetricsSnapshot_CountsSchedulesAndUpcoming(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	templateID := seedTemplate(t, s)
	now := time.Now().UTC()

	_, err := s.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: templateID, CronExpression: "* * * * *", Timezone: "UTC",
		Enabled: true, MaxInstances: 1, OverlapPolicy: store.OverlapSkip,
		FirstNextRunAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	_, err = s.CreateSchedule(ctx, store.CreateScheduleParams{
		TemplateTaskID: templateID, CronExpression: "* * * * *", Timezone: "UTC",
		Enabled: false, MaxInstances: 1, OverlapPolicy: store.OverlapSkip,
		FirstNextRunAt: now.Add(time.Hour),
	})
	require.NoError(t, err)

	snap, err := s.MetricsSnapshot(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, snap.TotalSchedules)
	assert.EqualValues(t, 1, snap.ActiveSchedules)
	require.Len(t, snap.UpcomingFirings, 1)
}
