package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all Weather Alert configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Server    ServerConfig    `mapstructure:"server"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Frontend  FrontendConfig  `mapstructure:"frontend"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	Path   string `mapstructure:"path" validate:"required_if=Driver sqlite"`
	DSN    string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
}

// ServerConfig defines the HTTP API listener.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen" validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodySize  int64         `mapstructure:"max_body_size" validate:"gt=0"`

	// RateLimit uses the limiter format, e.g. "100-M". Empty disables it.
	RateLimit string `mapstructure:"rate_limit"`
}

// WebhookConfig defines the alert webhook.
type WebhookConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Secret  string        `mapstructure:"secret"`
	Fake    bool          `mapstructure:"fake"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" validate:"required_if=Enabled true"`
	Channel    string `mapstructure:"channel"`
}

// WeatherConfig defines the weather API client.
type WeatherConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// RetryConfig mirrors weather.RetryPolicy.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=1"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier" validate:"gte=1"`
}

// SchedulerConfig defines the worker beat.
type SchedulerConfig struct {
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	TaskTimeout  time.Duration `mapstructure:"task_timeout"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// File enables rotated file output in addition to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// FrontendConfig carries values exposed to the web client.
type FrontendConfig struct {
	APIBaseURL string `mapstructure:"api_base_url"`
}

// legacyEnv maps config keys to the environment names used by existing
// deployments. WA_-prefixed names take precedence.
var legacyEnv = map[string]string{
	"webhook.url":           "N8N_WEBHOOK_URL",
	"webhook.secret":        "N8N_WEBHOOK_HEADER_KEY",
	"webhook.fake":          "FAKE_WEBHOOK",
	"frontend.api_base_url": "API_BASE_URL",
	"storage.dsn":           "DATABASE_URL",
}

// Load reads configuration from a .env file, the config file and
// environment variables.
func Load(cfgFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".weatheralert"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", filepath.Join(home, ".weatheralert", "weatheralert.db"))
	v.SetDefault("server.listen", ":8000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.max_body_size", 1<<20) // 1 MB
	v.SetDefault("server.rate_limit", "120-M")
	v.SetDefault("webhook.timeout", "10s")
	v.SetDefault("webhook.fake", false)
	v.SetDefault("slack.channel", "#weather-alerts")
	v.SetDefault("weather.base_url", "https://api.open-meteo.com")
	v.SetDefault("weather.timeout", "10s")
	v.SetDefault("weather.retry.max_attempts", 5)
	v.SetDefault("weather.retry.initial_backoff", "1s")
	v.SetDefault("weather.retry.max_backoff", "30s")
	v.SetDefault("weather.retry.multiplier", 2.0)
	v.SetDefault("scheduler.sync_interval", "15s")
	v.SetDefault("scheduler.task_timeout", "2m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("frontend.api_base_url", "http://localhost:8000")

	// Environment variables
	v.SetEnvPrefix("WA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := "WA_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
