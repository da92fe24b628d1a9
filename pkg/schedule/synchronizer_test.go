package schedule_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devid8642/weather-alert/pkg/model"
	"github.com/devid8642/weather-alert/pkg/schedule"
	"github.com/devid8642/weather-alert/pkg/storage"
)

func newTestSync(t *testing.T) (*schedule.Synchronizer, storage.Storage, *model.Location) {
	t.Helper()
	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	loc := &model.Location{Name: "Manaus", Latitude: -3.1, Longitude: -60.02}
	require.NoError(t, store.CreateLocation(context.Background(), loc))

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return schedule.NewSynchronizer(store, logger), store, loc
}

func ptr[T any](v T) *T { return &v }

func TestTaskNameAndArgs(t *testing.T) {
	assert.Equal(t, "Check Temperature for Config 12", schedule.TaskName(12))
	assert.Equal(t, "[12]", schedule.TaskArgs(12))
}

func TestSynchronizer_Create(t *testing.T) {
	sync, store, loc := newTestSync(t)
	ctx := context.Background()

	cfg, err := sync.Create(ctx, loc.ID, 30, 15)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.CheckIntervalMinutes)

	task, err := store.GetPeriodicTask(ctx, schedule.TaskName(cfg.ID))
	require.NoError(t, err)
	assert.Equal(t, schedule.TaskCheckTemperature, task.Task)
	assert.Equal(t, schedule.TaskArgs(cfg.ID), task.Args)
	assert.Equal(t, 15, task.Interval.Every)
	assert.Equal(t, model.PeriodMinutes, task.Interval.Period)
	assert.True(t, task.Enabled)
	require.NotNil(t, task.AlertConfigID)
	assert.Equal(t, cfg.ID, *task.AlertConfigID)
}

func TestSynchronizer_Create_DefaultInterval(t *testing.T) {
	sync, _, loc := newTestSync(t)

	cfg, err := sync.Create(context.Background(), loc.ID, 25, 0)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCheckIntervalMinutes, cfg.CheckIntervalMinutes)
}

func TestSynchronizer_Create_UnknownLocation(t *testing.T) {
	sync, store, _ := newTestSync(t)
	ctx := context.Background()

	_, err := sync.Create(ctx, 999, 25, 10)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	configs, err := store.ListAlertConfigs(ctx)
	require.NoError(t, err)
	assert.Empty(t, configs)

	tasks, err := store.ListPeriodicTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestSynchronizer_Create_SharesIntervals(t *testing.T) {
	sync, store, loc := newTestSync(t)
	ctx := context.Background()

	a, err := sync.Create(ctx, loc.ID, 30, 10)
	require.NoError(t, err)
	b, err := sync.Create(ctx, loc.ID, 35, 10)
	require.NoError(t, err)

	ta, err := store.GetPeriodicTask(ctx, schedule.TaskName(a.ID))
	require.NoError(t, err)
	tb, err := store.GetPeriodicTask(ctx, schedule.TaskName(b.ID))
	require.NoError(t, err)
	assert.Equal(t, ta.IntervalID, tb.IntervalID)
}

func TestSynchronizer_Update_IntervalReschedules(t *testing.T) {
	sync, store, loc := newTestSync(t)
	ctx := context.Background()

	cfg, err := sync.Create(ctx, loc.ID, 30, 10)
	require.NoError(t, err)

	updated, err := sync.Update(ctx, cfg, model.AlertConfigUpdate{CheckIntervalMinutes: ptr(45)})
	require.NoError(t, err)
	assert.Equal(t, 45, updated.CheckIntervalMinutes)
	assert.Equal(t, 30.0, updated.TemperatureThreshold)

	task, err := store.GetPeriodicTask(ctx, schedule.TaskName(cfg.ID))
	require.NoError(t, err)
	assert.Equal(t, 45, task.Interval.Every)
	assert.Equal(t, schedule.TaskArgs(cfg.ID), task.Args)
}

func TestSynchronizer_Update_ThresholdOnly(t *testing.T) {
	sync, store, loc := newTestSync(t)
	ctx := context.Background()

	cfg, err := sync.Create(ctx, loc.ID, 30, 10)
	require.NoError(t, err)
	before, err := store.GetPeriodicTask(ctx, schedule.TaskName(cfg.ID))
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	updated, err := sync.Update(ctx, cfg, model.AlertConfigUpdate{TemperatureThreshold: ptr(29.0)})
	require.NoError(t, err)
	assert.Equal(t, 29.0, updated.TemperatureThreshold)

	got, err := store.GetAlertConfig(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, 29.0, got.TemperatureThreshold)

	after, err := store.GetPeriodicTask(ctx, schedule.TaskName(cfg.ID))
	require.NoError(t, err)
	assert.Equal(t, before.IntervalID, after.IntervalID)
	assert.True(t, before.DateChanged.Equal(after.DateChanged))
}

func TestSynchronizer_Update_NoChangeNoWrite(t *testing.T) {
	sync, store, loc := newTestSync(t)
	ctx := context.Background()

	cfg, err := sync.Create(ctx, loc.ID, 30, 10)
	require.NoError(t, err)

	// Remove the task behind the synchronizer's back; a no-op update must
	// not recreate it.
	require.NoError(t, store.DeletePeriodicTask(ctx, schedule.TaskName(cfg.ID)))

	same, err := sync.Update(ctx, cfg, model.AlertConfigUpdate{CheckIntervalMinutes: ptr(10)})
	require.NoError(t, err)
	assert.Equal(t, cfg, same)

	_, err = store.GetPeriodicTask(ctx, schedule.TaskName(cfg.ID))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSynchronizer_Update_RecreatesMissingTask(t *testing.T) {
	sync, store, loc := newTestSync(t)
	ctx := context.Background()

	cfg, err := sync.Create(ctx, loc.ID, 30, 10)
	require.NoError(t, err)
	require.NoError(t, store.DeletePeriodicTask(ctx, schedule.TaskName(cfg.ID)))

	_, err = sync.Update(ctx, cfg, model.AlertConfigUpdate{CheckIntervalMinutes: ptr(20)})
	require.NoError(t, err)

	task, err := store.GetPeriodicTask(ctx, schedule.TaskName(cfg.ID))
	require.NoError(t, err)
	assert.Equal(t, 20, task.Interval.Every)
}

func TestSynchronizer_Update_RejectsNonPositiveInterval(t *testing.T) {
	sync, _, loc := newTestSync(t)
	ctx := context.Background()

	cfg, err := sync.Create(ctx, loc.ID, 30, 10)
	require.NoError(t, err)

	_, err = sync.Update(ctx, cfg, model.AlertConfigUpdate{CheckIntervalMinutes: ptr(0)})
	assert.Error(t, err)
}

func TestSynchronizer_Delete(t *testing.T) {
	sync, store, loc := newTestSync(t)
	ctx := context.Background()

	cfg, err := sync.Create(ctx, loc.ID, 30, 10)
	require.NoError(t, err)

	require.NoError(t, sync.Delete(ctx, cfg))

	_, err = store.GetAlertConfig(ctx, cfg.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetPeriodicTask(ctx, schedule.TaskName(cfg.ID))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSynchronizer_Delete_MissingTaskTolerated(t *testing.T) {
	sync, store, loc := newTestSync(t)
	ctx := context.Background()

	cfg, err := sync.Create(ctx, loc.ID, 30, 10)
	require.NoError(t, err)
	require.NoError(t, store.DeletePeriodicTask(ctx, schedule.TaskName(cfg.ID)))

	require.NoError(t, sync.Delete(ctx, cfg))
	_, err = store.GetAlertConfig(ctx, cfg.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSynchronizer_Reconcile(t *testing.T) {
	sync, store, loc := newTestSync(t)
	ctx := context.Background()

	// Config created without a task
	orphanCfg := &model.AlertConfig{LocationID: loc.ID, TemperatureThreshold: 20, CheckIntervalMinutes: 5}
	require.NoError(t, store.CreateAlertConfig(ctx, orphanCfg))

	// Config whose task drifted to another interval
	drifted, err := sync.Create(ctx, loc.ID, 30, 10)
	require.NoError(t, err)
	every99, err := store.GetOrCreateIntervalSchedule(ctx, 99, model.PeriodMinutes)
	require.NoError(t, err)
	task, err := store.GetPeriodicTask(ctx, schedule.TaskName(drifted.ID))
	require.NoError(t, err)
	task.IntervalID = every99.ID
	require.NoError(t, store.UpdatePeriodicTask(ctx, task))

	// Task pointing at a config that no longer exists
	every5, err := store.GetOrCreateIntervalSchedule(ctx, 5, model.PeriodMinutes)
	require.NoError(t, err)
	require.NoError(t, store.CreatePeriodicTask(ctx, &model.PeriodicTask{
		Name:       schedule.TaskName(777),
		Task:       schedule.TaskCheckTemperature,
		Args:       schedule.TaskArgs(777),
		IntervalID: every5.ID,
		Enabled:    true,
	}))

	// Unrelated task is left alone
	require.NoError(t, store.CreatePeriodicTask(ctx, &model.PeriodicTask{
		Name: "housekeeping", Task: "other", IntervalID: every5.ID, Enabled: true,
	}))

	report, err := sync.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{schedule.TaskName(orphanCfg.ID)}, report.Created)
	assert.Equal(t, []string{schedule.TaskName(drifted.ID)}, report.Repaired)
	assert.Equal(t, []string{schedule.TaskName(777)}, report.Removed)

	fixed, err := store.GetPeriodicTask(ctx, schedule.TaskName(drifted.ID))
	require.NoError(t, err)
	assert.Equal(t, 10, fixed.Interval.Every)

	_, err = store.GetPeriodicTask(ctx, "housekeeping")
	assert.NoError(t, err)

	again, err := sync.Reconcile(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestSynchronizer_Create_ConcurrentWriters(t *testing.T) {
	synchronizer, store, loc := newTestSync(t)
	ctx := context.Background()

	const workers = 40
	var wg sync.WaitGroup
	errs := make(chan error, 2*workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.CreateTemperatureLog(ctx, &model.TemperatureLog{LocationID: loc.ID, Temperature: float64(i)})
			_, err := synchronizer.Create(ctx, loc.ID, 30, 5+i%3)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	cfgs, err := store.ListAlertConfigs(ctx)
	require.NoError(t, err)
	assert.Len(t, cfgs, workers)

	tasks, err := store.ListPeriodicTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, workers)
}
