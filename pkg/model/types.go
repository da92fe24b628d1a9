package model

import "time"

// DefaultCheckIntervalMinutes is used when an alert config is created without an interval.
const DefaultCheckIntervalMinutes = 30

// Location is a monitored geographic point.
type Location struct {
	ID        int64   `json:"id" db:"id"`
	Name      string  `json:"name" db:"name"`
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// AlertConfig is a per-location rule driving scheduled temperature checks.
type AlertConfig struct {
	ID                   int64   `json:"id" db:"id"`
	LocationID           int64   `json:"location" db:"location_id"`
	TemperatureThreshold float64 `json:"temperature_threshold" db:"temperature_threshold"`
	CheckIntervalMinutes int     `json:"check_interval_minutes" db:"check_interval_minutes"`

	// Location is populated by lookups that load the owning location eagerly.
	Location *Location `json:"-"`
}

// AlertConfigUpdate carries a partial update. Nil fields are left unchanged.
type AlertConfigUpdate struct {
	TemperatureThreshold *float64 `json:"temperature_threshold,omitempty"`
	CheckIntervalMinutes *int     `json:"check_interval_minutes,omitempty"`
}

// Alert records a threshold breach. Threshold is a snapshot taken when the
// alert was raised, not a reference to the live config.
type Alert struct {
	ID           int64     `json:"id" db:"id"`
	LocationID   int64     `json:"location_id" db:"location_id"`
	LocationName string    `json:"location_name" db:"location_name"`
	Temperature  float64   `json:"temperature" db:"temperature"`
	Threshold    float64   `json:"threshold" db:"threshold"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	Notified     bool      `json:"notified" db:"notified"`
}

// TemperatureLog is an append-only record of one polled reading.
type TemperatureLog struct {
	ID          int64     `json:"id" db:"id"`
	LocationID  int64     `json:"location" db:"location_id"`
	Temperature float64   `json:"temperature" db:"temperature"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}

// PeriodMinutes is the only interval unit used by alert configs.
const PeriodMinutes = "minutes"

// IntervalSchedule describes "every N <period>". Rows are shared between tasks.
type IntervalSchedule struct {
	ID     int64  `json:"id" db:"id"`
	Every  int    `json:"every" db:"every"`
	Period string `json:"period" db:"period"`
}

// Duration converts the schedule into a time.Duration.
func (s IntervalSchedule) Duration() time.Duration {
	switch s.Period {
	case "seconds":
		return time.Duration(s.Every) * time.Second
	case "hours":
		return time.Duration(s.Every) * time.Hour
	default:
		return time.Duration(s.Every) * time.Minute
	}
}

// PeriodicTask is a named schedule entry consumed by the worker.
type PeriodicTask struct {
	ID            int64            `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	Task          string           `json:"task" db:"task"`
	Args          string           `json:"args" db:"args"`
	IntervalID    int64            `json:"interval_id" db:"interval_id"`
	Interval      IntervalSchedule `json:"interval"`
	AlertConfigID *int64           `json:"alert_config_id,omitempty" db:"alert_config_id"`
	Enabled       bool             `json:"enabled" db:"enabled"`
	LastRunAt     *time.Time       `json:"last_run_at,omitempty" db:"last_run_at"`
	TotalRunCount int64            `json:"total_run_count" db:"total_run_count"`
	DateChanged   time.Time        `json:"date_changed" db:"date_changed"`
}

// ListFilter narrows alert and temperature log listings.
// A zero LocationID means no filtering.
type ListFilter struct {
	LocationID int64 `json:"location_id,omitempty"`
}
