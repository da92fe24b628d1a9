package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devid8642/weather-alert/pkg/metrics"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.ObserveWeatherRequest("ok", time.Second)
		m.IncCheck("ok")
		m.IncAlert()
		m.IncNotification("webhook", "ok")
		m.IncTaskRun("task", "ok")
		m.SetScheduledJobs(3)
		m.ObserveHTTPRequest("GET", "/", 200, time.Millisecond)
		m.IncRateLimited()
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.IncAlert()
	m.IncCheck("alert")
	m.ObserveWeatherRequest("ok", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "weatheralert_alerts_total 1")
	assert.Contains(t, body, `weatheralert_checks_total{result="alert"} 1`)
	assert.Contains(t, body, "weatheralert_weather_request_duration_seconds_count 1")
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a := metrics.New()
	b := metrics.New()
	a.IncRateLimited()

	assert.Equal(t, 1, rateLimitedCount(t, a))
	assert.Equal(t, 0, rateLimitedCount(t, b))
}

func rateLimitedCount(t *testing.T, m *metrics.Metrics) int {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "weatheralert_http_rate_limited_total" {
			return int(mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	return 0
}
