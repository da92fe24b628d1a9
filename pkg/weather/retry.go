package weather

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// RetryPolicy controls how often and how patiently a failed call is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy makes five attempts, waiting 1s, 2s, 4s and 8s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2,
	}
}

// Validate reports whether the policy can be used.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.InitialBackoff < 0 || p.MaxBackoff < 0 {
		return errors.New("retry: backoff must not be negative")
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("retry: multiplier must be >= 1, got %g", p.Multiplier)
	}
	return nil
}

// Backoff returns the wait before the given retry, counting from 1.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	delay := float64(p.InitialBackoff)
	for i := 1; i < retry; i++ {
		delay *= p.Multiplier
		if p.MaxBackoff > 0 && delay >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	d := time.Duration(delay)
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// HTTPError is returned when the weather API answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("weather api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("weather api returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether a retry could succeed.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500
}

// retryable decides whether err is worth another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// DecodeError wraps a response body that could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode weather response: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }
