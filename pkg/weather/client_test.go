package weather_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devid8642/weather-alert/pkg/weather"
)

func fastRetry() weather.RetryPolicy {
	return weather.RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestClient_CurrentTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "-23.55", r.URL.Query().Get("latitude"))
		assert.Equal(t, "-46.63", r.URL.Query().Get("longitude"))
		assert.Equal(t, "true", r.URL.Query().Get("current_weather"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"latitude":-23.5,"current_weather":{"temperature":27.4,"windspeed":8.2}}`))
	}))
	defer server.Close()

	c := weather.NewClient(weather.WithBaseURL(server.URL), weather.WithRetryPolicy(fastRetry()))
	temp, err := c.CurrentTemperature(context.Background(), -23.55, -46.63)
	require.NoError(t, err)
	assert.Equal(t, 27.4, temp)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := weather.NewClient(weather.WithBaseURL(server.URL), weather.WithRetryPolicy(fastRetry()))
	_, err := c.CurrentTemperature(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Equal(t, int32(5), calls.Load())

	var httpErr *weather.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
}

func TestClient_RecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"current_weather":{"temperature":12}}`))
	}))
	defer server.Close()

	c := weather.NewClient(weather.WithBaseURL(server.URL), weather.WithRetryPolicy(fastRetry()))
	temp, err := c.CurrentTemperature(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 12.0, temp)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":true,"reason":"Latitude must be in range of -90 to 90°."}`))
	}))
	defer server.Close()

	c := weather.NewClient(weather.WithBaseURL(server.URL), weather.WithRetryPolicy(fastRetry()))
	_, err := c.CurrentTemperature(context.Background(), 100, 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var httpErr *weather.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "Latitude")
}

func TestClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hourly":{}}`))
	}))
	defer server.Close()

	c := weather.NewClient(weather.WithBaseURL(server.URL), weather.WithRetryPolicy(fastRetry()))
	_, err := c.CurrentTemperature(context.Background(), 0, 0)

	var decodeErr *weather.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestClient_ContextCancelStopsBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	policy := weather.RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Minute, MaxBackoff: time.Minute, Multiplier: 2}
	c := weather.NewClient(weather.WithBaseURL(server.URL), weather.WithRetryPolicy(policy))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.CurrentTemperature(ctx, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_HalfOpenConcurrentCallsRetry(t *testing.T) {
	var healthy atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"current_weather":{"temperature":31}}`))
	}))
	defer server.Close()

	policy := weather.RetryPolicy{MaxAttempts: 6, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 40 * time.Millisecond, Multiplier: 2}
	c := weather.NewClient(
		weather.WithBaseURL(server.URL),
		weather.WithRetryPolicy(policy),
		weather.WithBreakerTimeout(150*time.Millisecond),
	)

	ctx := context.Background()
	var err error
	for i := 0; i < 5 && !errors.Is(err, gobreaker.ErrOpenState); i++ {
		_, err = c.CurrentTemperature(ctx, 0, 0)
	}
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	healthy.Store(true)
	time.Sleep(200 * time.Millisecond)

	const callers = 6
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.CurrentTemperature(ctx, 0, 0)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestClient_InvalidPolicy(t *testing.T) {
	c := weather.NewClient(weather.WithRetryPolicy(weather.RetryPolicy{}))
	_, err := c.CurrentTemperature(context.Background(), 0, 0)
	assert.Error(t, err)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := weather.DefaultRetryPolicy()

	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 8*time.Second, p.Backoff(4))
	assert.Equal(t, 30*time.Second, p.Backoff(10))
}
