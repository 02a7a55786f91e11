package manage

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
	sqlitestore "github.com/taskscheduler/core/internal/store/sqlite"
)

func newTestManager(t *testing.T) (*Manager, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	tdb := platsqlite.NewTestDBFile(t)
	require.NoError(t, tdb.DB.Close())
	require.NoError(t, sqlitestore.Migrate(tdb.Path))

	seed, err := platsqlite.NewDB(ctx, tdb.Path)
	require.NoError(t, err)
	templateID := uuid.New()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = seed.Exec(`
		INSERT INTO tasks (id, task_type, payload, metadata, status, is_template, created_at, updated_at)
		VALUES (?, 'report.generate', x'', '{}', 'template', 1, ?, ?)`,
		templateID.String(), now, now,
	)
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	st, err := sqlitestore.New(ctx, tdb.Path)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return New(st, "UTC", nil), templateID
}

func TestCreate_Succeeds(t *testing.T) {
	m, templateID := newTestManager(t)
	ctx := context.Background()

	scheduleID, err := m.Create(ctx, CreateParams{
		TemplateTaskID: templateID,
		CronExpression: "0 * * * *",
		Timezone:       "UTC",
		MaxInstances:   1,
		OverlapPolicy:  store.OverlapSkip,
		Enabled:        true,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, scheduleID)

	sch, err := m.Get(ctx, scheduleID)
	require.NoError(t, err)
	assert.Equal(t, "0 * * * *", sch.CronExpression)
	assert.True(t, sch.Enabled)
	assert.True(t, sch.NextRunAt.After(time.Now().UTC()))
}

func TestCreate_InvalidCronExpression(t *testing.T) {
	m, templateID := newTestManager(t)
	_, err := m.Create(context.Background(), CreateParams{
		TemplateTaskID: templateID,
		CronExpression: "not a cron",
		Timezone:       "UTC",
		MaxInstances:   1,
		OverlapPolicy:  store.OverlapSkip,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidExpression))
}

func TestCreate_InvalidTimezone(t *testing.T) {
	m, templateID := newTestManager(t)
	_, err := m.Create(context.Background(), CreateParams{
		TemplateTaskID: templateID,
		CronExpression: "0 * * * *",
		Timezone:       "Moon/Tranquility_Base",
		MaxInstances:   1,
		OverlapPolicy:  store.OverlapSkip,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidTimezone))
}

func TestCreate_TemplateNotFound(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Create(context.Background(), CreateParams{
		TemplateTaskID: uuid.New(),
		CronExpression: "0 * * * *",
		Timezone:       "UTC",
		MaxInstances:   1,
		OverlapPolicy:  store.OverlapSkip,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrTemplateNotFound))
}

func TestCreate_RejectsMaxInstancesBelowOne(t *testing.T) {
	m, templateID := newTestManager(t)
	_, err := m.Create(context.Background(), CreateParams{
		TemplateTaskID: templateID,
		CronExpression: "0 * * * *",
		Timezone:       "UTC",
		MaxInstances:   0,
		OverlapPolicy:  store.OverlapSkip,
	})
	require.Error(t, err)
}

func TestValidate_ValidExpressionReturnsUpcomingFirings(t *testing.T) {
	m, _ := newTestManager(t)
	result := m.Validate("0 * * * *")
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.NextRuns, 10)
	for i := 1; i < len(result.NextRuns); i++ {
		assert.True(t, result.NextRuns[i].After(result.NextRuns[i-1]))
	}
}

func TestValidate_InvalidExpressionReportsDiagnostic(t *testing.T) {
	m, _ := newTestManager(t)
	result := m.Validate("99 * * * *")
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
	assert.Nil(t, result.NextRuns)
}

func TestToggleDeleteList(t *testing.T) {
	m, templateID := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, CreateParams{
		TemplateTaskID: templateID, CronExpression: "0 * * * *", Timezone: "UTC",
		MaxInstances: 1, OverlapPolicy: store.OverlapSkip, Enabled: true,
	})
	require.NoError(t, err)

	require.NoError(t, m.Toggle(ctx, id, false))
	sch, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, sch.Enabled)

	list, err := m.List(ctx, store.ScheduleFilter{OnlyEnabled: true})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = m.List(ctx, store.ScheduleFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, m.Delete(ctx, id))
	_, err = m.Get(ctx, id)
	assert.True(t, errors.Is(err, errs.ErrScheduleNotFound))
}

func TestToggle_ScheduleNotFound(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.Toggle(context.Background(), uuid.New(), true)
	assert.True(t, errors.Is(err, errs.ErrScheduleNotFound))
}
