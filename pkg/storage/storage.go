package storage

import (
	"context"
	"errors"
	"time"

	"github.com/devid8642/weather-alert/pkg/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines the persistence layer for locations, alert data and the
// periodic task table.
type Storage interface {
	// CreateLocation persists a location and sets its ID.
	CreateLocation(ctx context.Context, loc *model.Location) error
	GetLocation(ctx context.Context, id int64) (*model.Location, error)
	ListLocations(ctx context.Context) ([]model.Location, error)

	// DeleteLocation removes a location together with its configs, alerts,
	// temperature logs and periodic tasks.
	DeleteLocation(ctx context.Context, id int64) error

	CreateAlertConfig(ctx context.Context, cfg *model.AlertConfig) error

	// GetAlertConfig returns the config with its Location loaded.
	GetAlertConfig(ctx context.Context, id int64) (*model.AlertConfig, error)
	ListAlertConfigs(ctx context.Context) ([]model.AlertConfig, error)
	UpdateAlertConfig(ctx context.Context, cfg *model.AlertConfig) error
	DeleteAlertConfig(ctx context.Context, id int64) error

	// CreateAlert persists an alert, stamping Timestamp when it is zero.
	CreateAlert(ctx context.Context, alert *model.Alert) error
	GetAlert(ctx context.Context, id int64) (*model.Alert, error)
	ListAlerts(ctx context.Context, filter model.ListFilter) ([]model.Alert, error)
	MarkAlertNotified(ctx context.Context, id int64) error

	CreateTemperatureLog(ctx context.Context, log *model.TemperatureLog) error
	GetTemperatureLog(ctx context.Context, id int64) (*model.TemperatureLog, error)
	ListTemperatureLogs(ctx context.Context, filter model.ListFilter) ([]model.TemperatureLog, error)

	// GetOrCreateIntervalSchedule returns the shared descriptor for every/period.
	GetOrCreateIntervalSchedule(ctx context.Context, every int, period string) (*model.IntervalSchedule, error)
	CreatePeriodicTask(ctx context.Context, task *model.PeriodicTask) error
	GetPeriodicTask(ctx context.Context, name string) (*model.PeriodicTask, error)
	UpdatePeriodicTask(ctx context.Context, task *model.PeriodicTask) error
	DeletePeriodicTask(ctx context.Context, name string) error
	ListPeriodicTasks(ctx context.Context) ([]model.PeriodicTask, error)
	RecordTaskRun(ctx context.Context, name string, at time.Time) error

	// WithTx runs fn against a Storage bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Storage) error) error

	// Close releases resources.
	Close() error
}
