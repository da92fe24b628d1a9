package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devid8642/weather-alert/pkg/model"
	"github.com/devid8642/weather-alert/pkg/storage"
)

// TaskCheckTemperature is the registered name of the evaluator task.
const TaskCheckTemperature = "weatheralert.check_temperature"

const taskNamePrefix = "Check Temperature for Config "

// TaskName returns the periodic task name owned by an alert config.
func TaskName(configID int64) string {
	return fmt.Sprintf("%s%d", taskNamePrefix, configID)
}

// TaskArgs encodes the evaluator arguments for a config.
func TaskArgs(configID int64) string {
	b, _ := json.Marshal([]int64{configID})
	return string(b)
}

// Synchronizer keeps the periodic task table aligned with alert configs.
type Synchronizer struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewSynchronizer creates a synchronizer.
func NewSynchronizer(store storage.Storage, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{storage: store, logger: logger}
}

// Create stores a new alert config and its periodic task in one transaction.
// A zero interval uses model.DefaultCheckIntervalMinutes.
func (s *Synchronizer) Create(ctx context.Context, locationID int64, threshold float64, intervalMinutes int) (*model.AlertConfig, error) {
	if intervalMinutes == 0 {
		intervalMinutes = model.DefaultCheckIntervalMinutes
	}
	if intervalMinutes < 0 {
		return nil, fmt.Errorf("check interval must be positive, got %d", intervalMinutes)
	}

	cfg := &model.AlertConfig{
		LocationID:           locationID,
		TemperatureThreshold: threshold,
		CheckIntervalMinutes: intervalMinutes,
	}

	err := s.storage.WithTx(ctx, func(tx storage.Storage) error {
		loc, err := tx.GetLocation(ctx, locationID)
		if err != nil {
			return err
		}
		if err := tx.CreateAlertConfig(ctx, cfg); err != nil {
			return err
		}
		cfg.Location = loc
		return upsertTask(ctx, tx, cfg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("alert config created",
		"config_id", cfg.ID,
		"location_id", locationID,
		"interval_minutes", intervalMinutes,
		"task", TaskName(cfg.ID),
	)
	return cfg, nil
}

// Update applies a partial update. A changed interval is propagated to the
// config's periodic task, creating the task if it went missing. An update
// that changes nothing performs no writes.
func (s *Synchronizer) Update(ctx context.Context, cfg *model.AlertConfig, upd model.AlertConfigUpdate) (*model.AlertConfig, error) {
	if upd.CheckIntervalMinutes != nil && *upd.CheckIntervalMinutes <= 0 {
		return nil, fmt.Errorf("check interval must be positive, got %d", *upd.CheckIntervalMinutes)
	}

	next := *cfg
	changed := false
	intervalChanged := false

	if upd.TemperatureThreshold != nil && *upd.TemperatureThreshold != cfg.TemperatureThreshold {
		next.TemperatureThreshold = *upd.TemperatureThreshold
		changed = true
	}
	if upd.CheckIntervalMinutes != nil && *upd.CheckIntervalMinutes != cfg.CheckIntervalMinutes {
		next.CheckIntervalMinutes = *upd.CheckIntervalMinutes
		changed = true
		intervalChanged = true
	}

	if !changed {
		return cfg, nil
	}

	err := s.storage.WithTx(ctx, func(tx storage.Storage) error {
		if err := tx.UpdateAlertConfig(ctx, &next); err != nil {
			return err
		}
		if !intervalChanged {
			return nil
		}
		return upsertTask(ctx, tx, &next)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("alert config updated",
		"config_id", next.ID,
		"threshold", next.TemperatureThreshold,
		"interval_minutes", next.CheckIntervalMinutes,
		"rescheduled", intervalChanged,
	)
	return &next, nil
}

// Delete removes the config's periodic task, tolerating its absence, then
// the config itself.
func (s *Synchronizer) Delete(ctx context.Context, cfg *model.AlertConfig) error {
	name := TaskName(cfg.ID)
	if err := s.storage.DeletePeriodicTask(ctx, name); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("delete periodic task: %w", err)
		}
		s.logger.Debug("periodic task already absent", "task", name)
	}

	if err := s.storage.DeleteAlertConfig(ctx, cfg.ID); err != nil {
		return err
	}

	s.logger.Info("alert config deleted", "config_id", cfg.ID, "task", name)
	return nil
}

// ReconcileReport summarizes a Reconcile pass.
type ReconcileReport struct {
	Created  []string `json:"created"`
	Repaired []string `json:"repaired"`
	Removed  []string `json:"removed"`
}

// Changed reports whether the pass modified anything.
func (r ReconcileReport) Changed() bool {
	return len(r.Created)+len(r.Repaired)+len(r.Removed) > 0
}

// Reconcile creates missing tasks, repairs drifted ones and removes
// check-temperature tasks whose config no longer exists.
func (s *Synchronizer) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	err := s.storage.WithTx(ctx, func(tx storage.Storage) error {
		configs, err := tx.ListAlertConfigs(ctx)
		if err != nil {
			return err
		}
		tasks, err := tx.ListPeriodicTasks(ctx)
		if err != nil {
			return err
		}

		byName := make(map[string]model.PeriodicTask, len(tasks))
		for _, t := range tasks {
			byName[t.Name] = t
		}

		wanted := make(map[string]bool, len(configs))
		for i := range configs {
			cfg := &configs[i]
			name := TaskName(cfg.ID)
			wanted[name] = true

			existing, ok := byName[name]
			switch {
			case !ok:
				report.Created = append(report.Created, name)
			case drifted(existing, cfg):
				report.Repaired = append(report.Repaired, name)
			default:
				continue
			}
			if err := upsertTask(ctx, tx, cfg); err != nil {
				return err
			}
		}

		for _, t := range tasks {
			if t.Task != TaskCheckTemperature || wanted[t.Name] || !strings.HasPrefix(t.Name, taskNamePrefix) {
				continue
			}
			if err := tx.DeletePeriodicTask(ctx, t.Name); err != nil {
				return err
			}
			report.Removed = append(report.Removed, t.Name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile periodic tasks: %w", err)
	}

	if report.Changed() {
		s.logger.Info("periodic tasks reconciled",
			"created", len(report.Created),
			"repaired", len(report.Repaired),
			"removed", len(report.Removed),
		)
	}
	return report, nil
}

func drifted(t model.PeriodicTask, cfg *model.AlertConfig) bool {
	return t.Task != TaskCheckTemperature ||
		t.Args != TaskArgs(cfg.ID) ||
		t.Interval.Every != cfg.CheckIntervalMinutes ||
		t.Interval.Period != model.PeriodMinutes ||
		!t.Enabled ||
		t.AlertConfigID == nil || *t.AlertConfigID != cfg.ID
}

// upsertTask points the config's task at the right interval, creating the
// task when it does not exist.
func upsertTask(ctx context.Context, tx storage.Storage, cfg *model.AlertConfig) error {
	interval, err := tx.GetOrCreateIntervalSchedule(ctx, cfg.CheckIntervalMinutes, model.PeriodMinutes)
	if err != nil {
		return err
	}

	configID := cfg.ID
	task := &model.PeriodicTask{
		Name:          TaskName(cfg.ID),
		Task:          TaskCheckTemperature,
		Args:          TaskArgs(cfg.ID),
		IntervalID:    interval.ID,
		AlertConfigID: &configID,
		Enabled:       true,
	}

	err = tx.UpdatePeriodicTask(ctx, task)
	if errors.Is(err, storage.ErrNotFound) {
		return tx.CreatePeriodicTask(ctx, task)
	}
	return err
}
