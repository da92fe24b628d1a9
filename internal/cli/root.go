package cli

import (
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/devid8642/weather-alert/internal/config"
	"github.com/devid8642/weather-alert/pkg/alerts"
	"github.com/devid8642/weather-alert/pkg/metrics"
	"github.com/devid8642/weather-alert/pkg/monitor"
	"github.com/devid8642/weather-alert/pkg/schedule"
	"github.com/devid8642/weather-alert/pkg/storage"
	"github.com/devid8642/weather-alert/pkg/weather"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "weatheralert",
	Short: "Weather Alert - temperature threshold monitoring",
	Long: `Weather Alert polls current temperatures for registered locations and
raises alerts when a configured threshold is exceeded. It serves the REST API,
runs the periodic checks and delivers alerts to a webhook.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.weatheralert/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config. When logging.file is
// set, output is duplicated to a rotated file.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var out io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
			Compress:   true,
		})
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.Open(cfg.Storage.Driver, cfg.Storage.Path, cfg.Storage.DSN)
}

// initWebhook returns the primary notifier, or nil when no URL is configured.
func initWebhook(cfg *config.Config) alerts.Notifier {
	if cfg.Webhook.URL == "" {
		return nil
	}
	return alerts.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.Timeout)
}

// initMirrors creates the best-effort notifiers from config.
func initMirrors(cfg *config.Config) []alerts.Notifier {
	var mirrors []alerts.Notifier

	if cfg.Slack.Enabled && cfg.Slack.WebhookURL != "" {
		mirrors = append(mirrors, alerts.NewSlackNotifier(
			cfg.Slack.WebhookURL,
			cfg.Slack.Channel,
		))
	}

	return mirrors
}

func initWeather(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *weather.Client {
	return weather.NewClient(
		weather.WithBaseURL(cfg.Weather.BaseURL),
		weather.WithHTTPClient(&http.Client{Timeout: cfg.Weather.Timeout}),
		weather.WithRetryPolicy(weather.RetryPolicy{
			MaxAttempts:    cfg.Weather.Retry.MaxAttempts,
			InitialBackoff: cfg.Weather.Retry.InitialBackoff,
			MaxBackoff:     cfg.Weather.Retry.MaxBackoff,
			Multiplier:     cfg.Weather.Retry.Multiplier,
		}),
		weather.WithMetrics(m),
		weather.WithLogger(logger),
	)
}

// app bundles the wired services shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.Storage
	metrics   *metrics.Metrics
	sync      *schedule.Synchronizer
	alerts    *monitor.AlertService
	evaluator *monitor.Evaluator
}

// initApp loads config and wires storage, notifiers, the weather client
// and the evaluator.
func initApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	alertSvc := monitor.NewAlertService(store, initWebhook(cfg), logger,
		monitor.WithFakeWebhook(cfg.Webhook.Fake),
		monitor.WithMirrors(initMirrors(cfg)...),
		monitor.WithAlertMetrics(m),
	)
	if cfg.Webhook.URL == "" && !cfg.Webhook.Fake {
		logger.Warn("no webhook configured, alerts will be stored but not delivered")
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		metrics:   m,
		sync:      schedule.NewSynchronizer(store, logger),
		alerts:    alertSvc,
		evaluator: monitor.NewEvaluator(store, initWeather(cfg, m, logger), alertSvc, m, logger),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
