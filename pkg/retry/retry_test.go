package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"
)

func fastConfig(attempts int) *Config {
	return &Config{
		MaxAttempts:       attempts,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffFactor:     2.0,
		RetriableStatuses: []int{500, 503},
	}
}

func TestNewRetryer(t *testing.T) {
	retryer := NewRetryer(nil, nil)
	if retryer.config == nil {
		t.Error("Expected default config when nil provided")
	}
	if retryer.logger == nil {
		t.Error("Expected default logger when nil provided")
	}

	retryer = NewRetryer(&Config{MaxAttempts: 0}, nil)
	if retryer.config.MaxAttempts != 1 {
		t.Errorf("Expected MaxAttempts to be raised to 1, got %d", retryer.config.MaxAttempts)
	}
}

func TestRetryer_Do(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		failures  int
		err       error
		wantErr   bool
		wantCalls int
	}{
		{
			name:      "success first try",
			attempts:  3,
			wantCalls: 1,
		},
		{
			name:      "success after retries",
			attempts:  3,
			failures:  2,
			err:       NewHTTPError(500, "Internal Server Error", "http://test.com"),
			wantCalls: 3,
		},
		{
			name:      "max attempts reached",
			attempts:  2,
			failures:  5,
			err:       NewHTTPError(503, "Service Unavailable", "http://test.com"),
			wantErr:   true,
			wantCalls: 2,
		},
		{
			name:      "non-retriable error stops",
			attempts:  3,
			failures:  5,
			err:       NewHTTPError(404, "Not Found", "http://test.com"),
			wantErr:   true,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryer := NewRetryer(fastConfig(tt.attempts), slog.Default())
			called := 0
			err := retryer.Do(context.Background(), func() error {
				called++
				if called <= tt.failures {
					return tt.err
				}
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("Do() error = %v, wantErr %v", err, tt.wantErr)
			}
			if called != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, called)
			}
			if tt.wantErr && !errors.Is(err, tt.err) {
				t.Errorf("Expected wrapped %v, got %v", tt.err, err)
			}
		})
	}
}

func TestRetryer_Do_ContextCancellation(t *testing.T) {
	config := fastConfig(3)
	config.InitialDelay = time.Second
	config.MaxDelay = time.Second
	retryer := NewRetryer(config, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	called := 0
	err := retryer.Do(ctx, func() error {
		called++
		return NewHTTPError(500, "Internal Server Error", "http://test.com")
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if called != 1 {
		t.Errorf("Expected a single call before cancellation, got %d", called)
	}
}

func TestDoWithResult(t *testing.T) {
	retryer := NewRetryer(fastConfig(3), slog.Default())

	called := 0
	result, err := DoWithResult(context.Background(), retryer, func() (string, error) {
		called++
		if called < 2 {
			return "", NewHTTPError(500, "Internal Server Error", "http://test.com")
		}
		return "evt-123", nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != "evt-123" {
		t.Errorf("Expected result 'evt-123', got %q", result)
	}

	result, err = DoWithResult(context.Background(), retryer, func() (string, error) {
		return "partial", errors.New("bad request")
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if result != "" {
		t.Errorf("Expected zero value on failure, got %q", result)
	}
}

func TestIsRetriable(t *testing.T) {
	retryer := NewRetryer(DefaultConfig(), slog.Default())

	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"HTTP 500", NewHTTPError(500, "Internal Server Error", "http://test.com"), true},
		{"HTTP 404", NewHTTPError(404, "Not Found", "http://test.com"), false},
		{"HTTP 429", NewHTTPError(429, "Too Many Requests", "http://test.com"), true},
		{"wrapped HTTP 502", fmt.Errorf("push failed: %w", NewHTTPError(502, "Bad Gateway", "")), true},
		{"connection refused", errors.New("dial tcp: Connection Refused"), true},
		{"timeout", errors.New("request timeout"), true},
		{"url error wrapping reset", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection reset by peer")}, true},
		{"generic error", errors.New("some other error"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := retryer.IsRetriable(tc.err); got != tc.expected {
				t.Errorf("IsRetriable(%v) = %t, want %t", tc.err, got, tc.expected)
			}
		})
	}
}

func TestCalculateDelay(t *testing.T) {
	config := &Config{
		MaxAttempts:   5,
		InitialDelay:  1 * time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
	retryer := NewRetryer(config, slog.Default())

	testCases := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{5, 10 * time.Second},
	}

	for _, tc := range testCases {
		if got := retryer.calculateDelay(tc.attempt); got != tc.expected {
			t.Errorf("delay for attempt %d = %v, want %v", tc.attempt, got, tc.expected)
		}
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("outlook-main", &CircuitBreakerConfig{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
		SuccessThreshold: 2,
	}, slog.Default())
	cb.now = clock.Now

	fail := func() error { return errors.New("push failed") }
	succeed := func() error { return nil }

	if err := cb.Execute(fail); err == nil {
		t.Fatal("Expected error")
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("Expected closed after one failure, got %v", cb.State())
	}

	cb.Execute(fail)
	if cb.State() != CircuitOpen {
		t.Fatalf("Expected open after threshold, got %v", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("Operation must not run while the circuit is open")
	}

	clock.Advance(2 * time.Minute)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("Expected half-open after timeout, got %v", cb.State())
	}

	cb.Execute(succeed)
	if cb.State() != CircuitHalfOpen {
		t.Errorf("Expected half-open until success threshold, got %v", cb.State())
	}
	cb.Execute(succeed)
	if cb.State() != CircuitClosed {
		t.Errorf("Expected closed after success threshold, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("google", &CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Minute,
		SuccessThreshold: 1,
	}, nil)
	cb.now = clock.Now

	cb.Execute(func() error { return errors.New("boom") })
	clock.Advance(61 * time.Second)

	cb.Execute(func() error { return errors.New("still broken") })
	if cb.State() != CircuitOpen {
		t.Errorf("Expected open after half-open failure, got %v", cb.State())
	}
}

func TestCircuitBreakerState_String(t *testing.T) {
	for state, want := range map[CircuitBreakerState]string{
		CircuitClosed:   "closed",
		CircuitOpen:     "open",
		CircuitHalfOpen: "half-open",
	} {
		if got := state.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
