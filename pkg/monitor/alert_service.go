package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devid8642/weather-alert/pkg/alerts"
	"github.com/devid8642/weather-alert/pkg/metrics"
	"github.com/devid8642/weather-alert/pkg/model"
	"github.com/devid8642/weather-alert/pkg/storage"
)

// AlertService persists alerts and dispatches them to notifiers.
type AlertService struct {
	storage storage.Storage
	webhook alerts.Notifier
	mirrors []alerts.Notifier
	fake    bool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// AlertOption configures an AlertService.
type AlertOption func(*AlertService)

// WithFakeWebhook skips delivery and marks every alert as notified.
func WithFakeWebhook(fake bool) AlertOption {
	return func(s *AlertService) { s.fake = fake }
}

// WithMirrors adds best-effort notifiers whose result never affects the
// notified flag.
func WithMirrors(n ...alerts.Notifier) AlertOption {
	return func(s *AlertService) { s.mirrors = append(s.mirrors, n...) }
}

func WithAlertMetrics(m *metrics.Metrics) AlertOption {
	return func(s *AlertService) { s.metrics = m }
}

// NewAlertService creates an alert service. webhook may be nil, in which
// case alerts are stored but never delivered.
func NewAlertService(store storage.Storage, webhook alerts.Notifier, logger *slog.Logger, opts ...AlertOption) *AlertService {
	s := &AlertService{
		storage: store,
		webhook: webhook,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAndNotify stores an alert for loc and tries to deliver it.
// Delivery failures are logged and leave the alert unnotified; only the
// initial insert can fail the call.
func (s *AlertService) CreateAndNotify(ctx context.Context, loc *model.Location, temperature float64, cfg *model.AlertConfig) (*model.Alert, error) {
	alert := &model.Alert{
		LocationID:   loc.ID,
		LocationName: loc.Name,
		Temperature:  temperature,
		Threshold:    cfg.TemperatureThreshold,
	}
	if err := s.storage.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	s.metrics.IncAlert()

	s.logger.Warn("temperature threshold exceeded",
		"alert_id", alert.ID,
		"location", loc.Name,
		"temperature", temperature,
		"threshold", cfg.TemperatureThreshold,
	)

	notification := alerts.NewNotification(alert, loc.Name)

	switch {
	case s.fake:
		s.logger.Info("fake webhook enabled, skipping delivery", "alert_id", alert.ID)
		s.markNotified(ctx, alert)
	case s.webhook == nil:
		s.logger.Warn("no webhook configured, alert not delivered", "alert_id", alert.ID)
	default:
		if err := s.webhook.Send(ctx, notification); err != nil {
			s.metrics.IncNotification(s.webhook.Name(), "error")
			s.logger.Error("send alert failed",
				"notifier", s.webhook.Name(),
				"alert_id", alert.ID,
				"error", err,
			)
		} else {
			s.metrics.IncNotification(s.webhook.Name(), "ok")
			s.markNotified(ctx, alert)
		}
	}

	for _, notifier := range s.mirrors {
		if err := notifier.Send(ctx, notification); err != nil {
			s.metrics.IncNotification(notifier.Name(), "error")
			s.logger.Error("send alert failed",
				"notifier", notifier.Name(),
				"alert_id", alert.ID,
				"error", err,
			)
			continue
		}
		s.metrics.IncNotification(notifier.Name(), "ok")
	}

	return alert, nil
}

// MarkNotified flags an alert as delivered. It returns an error wrapping
// storage.ErrNotFound for unknown ids.
func (s *AlertService) MarkNotified(ctx context.Context, id int64) error {
	if err := s.storage.MarkAlertNotified(ctx, id); err != nil {
		return err
	}
	s.logger.Info("alert marked as notified", "alert_id", id)
	return nil
}

func (s *AlertService) markNotified(ctx context.Context, alert *model.Alert) {
	if err := s.storage.MarkAlertNotified(ctx, alert.ID); err != nil {
		s.logger.Error("mark alert notified", "alert_id", alert.ID, "error", err)
		return
	}
	alert.Notified = true
}
