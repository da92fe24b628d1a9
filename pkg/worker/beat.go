package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/devid8642/weather-alert/pkg/metrics"
	"github.com/devid8642/weather-alert/pkg/model"
	"github.com/devid8642/weather-alert/pkg/storage"
)

const syncTag = "beat.sync"

// BeatConfig controls how the beat polls the periodic task table.
type BeatConfig struct {
	// SyncInterval is how often the task table is re-read.
	SyncInterval time.Duration

	// TaskTimeout bounds a single task run.
	TaskTimeout time.Duration
}

type scheduledJob struct {
	task     string
	args     string
	interval time.Duration
}

// Beat turns enabled periodic tasks into gocron jobs.
type Beat struct {
	storage   storage.Storage
	registry  *Registry
	cfg       BeatConfig
	scheduler *gocron.Scheduler
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu   sync.Mutex
	jobs map[string]scheduledJob
	ctx  context.Context
}

// NewBeat creates a beat. Zero config values default to a 15s sync
// interval and a 2m task timeout.
func NewBeat(store storage.Storage, registry *Registry, cfg BeatConfig, m *metrics.Metrics, logger *slog.Logger) *Beat {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 15 * time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}

	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.WaitForScheduleAll()

	return &Beat{
		storage:   store,
		registry:  registry,
		cfg:       cfg,
		scheduler: s,
		metrics:   m,
		logger:    logger,
		jobs:      make(map[string]scheduledJob),
		ctx:       context.Background(),
	}
}

// Start loads the task table, schedules the periodic re-sync and starts
// the scheduler. Task runs derive their context from ctx.
func (b *Beat) Start(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.Sync(ctx); err != nil {
		return err
	}

	_, err := b.scheduler.Every(b.cfg.SyncInterval).Tag(syncTag).Do(func() {
		if err := b.Sync(ctx); err != nil {
			b.logger.Error("beat sync failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule beat sync: %w", err)
	}

	b.scheduler.StartAsync()
	b.logger.Info("beat started", "sync_interval", b.cfg.SyncInterval, "jobs", len(b.Scheduled()))
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (b *Beat) Stop() {
	b.scheduler.Stop()
	b.logger.Info("beat stopped")
}

// Sync reconciles scheduled jobs with the periodic task table. New tasks
// are added, changed ones replaced and removed or disabled ones dropped.
func (b *Beat) Sync(ctx context.Context) error {
	tasks, err := b.storage.ListPeriodicTasks(ctx)
	if err != nil {
		return fmt.Errorf("list periodic tasks: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if !t.Enabled {
			continue
		}
		if _, err := b.registry.Get(t.Task); err != nil {
			b.logger.Warn("skipping periodic task with unknown task", "name", t.Name, "task", t.Task)
			continue
		}
		seen[t.Name] = true

		want := scheduledJob{task: t.Task, args: t.Args, interval: t.Interval.Duration()}
		if have, ok := b.jobs[t.Name]; ok {
			if have == want {
				continue
			}
			b.removeJob(t.Name)
		}
		if err := b.addJob(t, want); err != nil {
			b.logger.Error("schedule periodic task", "name", t.Name, "error", err)
		}
	}

	for name := range b.jobs {
		if !seen[name] {
			b.removeJob(name)
		}
	}

	b.metrics.SetScheduledJobs(len(b.jobs))
	return nil
}

// addJob must be called with b.mu held.
func (b *Beat) addJob(t model.PeriodicTask, job scheduledJob) error {
	if job.interval <= 0 {
		return fmt.Errorf("invalid interval %s", job.interval)
	}

	name := t.Name
	ctx := b.ctx
	_, err := b.scheduler.Every(job.interval).Tag(name).Do(func() {
		if err := b.RunTask(ctx, name, job.task, json.RawMessage(job.args)); err != nil {
			b.logger.Error("periodic task failed", "name", name, "task", job.task, "error", err)
		}
	})
	if err != nil {
		return err
	}

	b.jobs[name] = job
	b.logger.Info("periodic task scheduled", "name", name, "task", job.task, "every", job.interval)
	return nil
}

func (b *Beat) removeJob(name string) {
	if err := b.scheduler.RemoveByTag(name); err != nil && !errors.Is(err, gocron.ErrJobNotFoundWithTag) {
		b.logger.Warn("remove scheduled job", "name", name, "error", err)
	}
	delete(b.jobs, name)
	b.logger.Info("periodic task unscheduled", "name", name)
}

// RunTask executes a registered task once with the beat's timeout and
// records the run against the named periodic task.
func (b *Beat) RunTask(ctx context.Context, name, task string, args json.RawMessage) error {
	fn, err := b.registry.Get(task)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, b.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	runErr := fn(runCtx, args)

	if err := b.storage.RecordTaskRun(ctx, name, start); err != nil && !errors.Is(err, storage.ErrNotFound) {
		b.logger.Warn("record task run", "name", name, "error", err)
	}

	outcome := "ok"
	if runErr != nil {
		outcome = "error"
	}
	b.metrics.IncTaskRun(task, outcome)
	b.logger.Debug("periodic task finished", "name", name, "task", task, "duration", time.Since(start), "outcome", outcome)
	return runErr
}

// Scheduled returns the interval of every scheduled task by name.
func (b *Beat) Scheduled() map[string]time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]time.Duration, len(b.jobs))
	for name, job := range b.jobs {
		out[name] = job.interval
	}
	return out
}
