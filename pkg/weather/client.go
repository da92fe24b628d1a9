package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/devid8642/weather-alert/pkg/metrics"
)

// DefaultBaseURL is the public Open-Meteo endpoint.
const DefaultBaseURL = "https://api.open-meteo.com"

const maxBodySize = 1 << 20

// Client fetches current temperatures from Open-Meteo.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	breaker    *gobreaker.CircuitBreaker
	cooldown   time.Duration
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Open-Meteo compatible host.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithBreakerTimeout sets how long the circuit stays open before letting
// trial requests through.
func WithBreakerTimeout(d time.Duration) Option {
	return func(c *Client) { c.cooldown = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a weather client. Defaults: DefaultBaseURL, a 10s HTTP
// timeout and DefaultRetryPolicy.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry:      DefaultRetryPolicy(),
		cooldown:   time.Minute,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		// Half-open lets a few concurrent checks through as trials.
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     c.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
		// Client errors say nothing about the health of the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("weather circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// CurrentTemperature returns the current temperature in °C at the given point.
// Transport errors and 5xx responses are retried according to the client's
// RetryPolicy; any other failure is returned at once.
func (c *Client) CurrentTemperature(ctx context.Context, latitude, longitude float64) (float64, error) {
	if err := c.retry.Validate(); err != nil {
		return 0, err
	}

	start := time.Now()
	temp, err := c.withRetry(ctx, func() (float64, error) {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetch(ctx, latitude, longitude)
		})
		if err != nil {
			return 0, err
		}
		return res.(float64), nil
	})

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ObserveWeatherRequest(outcome, time.Since(start))
	return temp, err
}

func (c *Client) withRetry(ctx context.Context, call func() (float64, error)) (float64, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.retry.Backoff(attempt - 1)
			c.logger.Debug("retrying weather request", "attempt", attempt, "delay", delay, "error", lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return 0, fmt.Errorf("weather request aborted: %w", ctx.Err())
			case <-timer.C:
			}
		}

		temp, err := call()
		if err == nil {
			return temp, nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) {
			return 0, fmt.Errorf("weather api unavailable: %w", err)
		}
		// Trial slots are taken while half-open; wait for the outcome.
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			continue
		}
		if !retryable(err) {
			return 0, err
		}
	}
	return 0, fmt.Errorf("weather request failed after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

func (c *Client) fetch(ctx context.Context, latitude, longitude float64) (float64, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	values.Set("current_weather", "true")

	u := c.baseURL + "/v1/forecast?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build weather request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return 0, fmt.Errorf("read weather response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		CurrentWeather *struct {
			Temperature *float64 `json:"temperature"`
		} `json:"current_weather"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, &DecodeError{Err: err}
	}
	if payload.CurrentWeather == nil || payload.CurrentWeather.Temperature == nil {
		return 0, &DecodeError{Err: errors.New("missing current_weather.temperature")}
	}
	return *payload.CurrentWeather.Temperature, nil
}
