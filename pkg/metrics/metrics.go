package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "weatheralert"

// Metrics holds the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	weatherRequests *prometheus.CounterVec
	weatherDuration prometheus.Histogram

	checksTotal   *prometheus.CounterVec
	alertsTotal   prometheus.Counter
	notifications *prometheus.CounterVec
	taskRuns      *prometheus.CounterVec
	scheduledJobs prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         prometheus.Counter
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		weatherRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather API calls by outcome.",
		}, []string{"outcome"}),

		weatherDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_request_duration_seconds",
			Help:      "Weather API call duration including retries.",
			Buckets:   prometheus.DefBuckets,
		}),

		checksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Temperature checks by result.",
		}, []string{"result"}),

		alertsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts raised.",
		}),

		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by notifier and outcome.",
		}, []string{"notifier", "outcome"}),

		taskRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Periodic task executions by task and outcome.",
		}, []string{"task", "outcome"}),

		scheduledJobs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduled_jobs",
			Help:      "Periodic tasks currently scheduled by the worker.",
		}),

		httpRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveWeatherRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.weatherRequests.WithLabelValues(outcome).Inc()
	m.weatherDuration.Observe(d.Seconds())
}

func (m *Metrics) IncCheck(result string) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncAlert() {
	if m == nil {
		return
	}
	m.alertsTotal.Inc()
}

func (m *Metrics) IncNotification(notifier, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(notifier, outcome).Inc()
}

func (m *Metrics) IncTaskRun(task, outcome string) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(task, outcome).Inc()
}

func (m *Metrics) SetScheduledJobs(n int) {
	if m == nil {
		return
	}
	m.scheduledJobs.Set(float64(n))
}

func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
