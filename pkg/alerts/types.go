package alerts

import (
	"context"
	"time"

	"github.com/devid8642/weather-alert/pkg/model"
)

// TimestampLayout is the day-first layout used for notification timestamps.
const TimestampLayout = "02/01/2006 15:04:05"

// Notification is the payload delivered when a threshold is exceeded.
type Notification struct {
	AlertID     int64   `json:"alert_id"`
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"`
	Threshold   float64 `json:"threshold"`
	Timestamp   string  `json:"timestamp"`
}

// NewNotification builds the payload for a stored alert. The timestamp is
// rendered in local time.
func NewNotification(alert *model.Alert, locationName string) Notification {
	ts := alert.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Notification{
		AlertID:     alert.ID,
		Location:    locationName,
		Temperature: alert.Temperature,
		Threshold:   alert.Threshold,
		Timestamp:   ts.Local().Format(TimestampLayout),
	}
}

// Notifier sends alerts to external systems.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers a notification. Implementations must be safe for concurrent use.
	Send(ctx context.Context, n Notification) error
}
