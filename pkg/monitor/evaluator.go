package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/devid8642/weather-alert/pkg/metrics"
	"github.com/devid8642/weather-alert/pkg/model"
	"github.com/devid8642/weather-alert/pkg/storage"
)

// TemperatureSource returns the current temperature at a point.
type TemperatureSource interface {
	CurrentTemperature(ctx context.Context, latitude, longitude float64) (float64, error)
}

// Result describes one evaluator run.
type Result struct {
	Config *model.AlertConfig    `json:"config"`
	Log    *model.TemperatureLog `json:"temperature_log"`
	Alert  *model.Alert          `json:"alert,omitempty"`
}

// Evaluator runs the periodic temperature check for an alert config.
type Evaluator struct {
	storage storage.Storage
	source  TemperatureSource
	alerts  *AlertService
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(store storage.Storage, source TemperatureSource, alertSvc *AlertService, m *metrics.Metrics, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		storage: store,
		source:  source,
		alerts:  alertSvc,
		metrics: m,
		logger:  logger,
	}
}

// Check polls the weather for the config's location, logs the reading and
// raises an alert when the reading is strictly above the threshold.
// Nothing is written when the config is missing or the weather call fails.
func (e *Evaluator) Check(ctx context.Context, configID int64) (*Result, error) {
	cfg, err := e.storage.GetAlertConfig(ctx, configID)
	if err != nil {
		e.metrics.IncCheck("error")
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("no alert config found with id %d: %w", configID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("load alert config %d: %w", configID, err)
	}
	loc := cfg.Location

	temp, err := e.source.CurrentTemperature(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		e.metrics.IncCheck("error")
		e.logger.Error("fetch temperature failed",
			"config_id", configID,
			"location", loc.Name,
			"error", err,
		)
		return nil, fmt.Errorf("fetch temperature for %q: %w", loc.Name, err)
	}

	entry := &model.TemperatureLog{LocationID: loc.ID, Temperature: temp}
	if err := e.storage.CreateTemperatureLog(ctx, entry); err != nil {
		e.metrics.IncCheck("error")
		return nil, fmt.Errorf("log temperature: %w", err)
	}

	e.logger.Info("temperature checked",
		"config_id", configID,
		"location", loc.Name,
		"temperature", temp,
		"threshold", cfg.TemperatureThreshold,
	)

	result := &Result{Config: cfg, Log: entry}
	if temp <= cfg.TemperatureThreshold {
		e.metrics.IncCheck("ok")
		return result, nil
	}

	alert, err := e.alerts.CreateAndNotify(ctx, loc, temp, cfg)
	if err != nil {
		e.metrics.IncCheck("error")
		return result, err
	}
	e.metrics.IncCheck("alert")
	result.Alert = alert
	return result, nil
}
