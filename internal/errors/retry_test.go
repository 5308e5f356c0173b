package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  2,
		BaseDelay:    time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		JitterFactor: 0,
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), fastRetryConfig(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("boom"), "")
		}
		return "ok", nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 3 {
		t.Fatalf("result=%q calls=%d", result, calls)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewPermanentError(errors.New("bad key"), "Authentication failed.")
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("permanent error retried %d times", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetryConfig(), func(ctx context.Context) error {
		calls++
		return NewTransientError(errors.New("still down"), "")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 { // MaxAttempts=2 means 3 total attempts
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, fastRetryConfig(), func(ctx context.Context) error {
		return NewTransientError(errors.New("x"), "")
	})
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestCalculateBackoffIsCapped(t *testing.T) {
	config := RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second, JitterFactor: 0}
	if d := calculateBackoff(0, config); d != time.Second {
		t.Fatalf("attempt 0: %v", d)
	}
	if d := calculateBackoff(1, config); d != 2*time.Second {
		t.Fatalf("attempt 1: %v", d)
	}
	if d := calculateBackoff(5, config); d != 3*time.Second {
		t.Fatalf("attempt 5 not capped: %v", d)
	}
}

func TestClassification(t *testing.T) {
	cases := []struct {
		err       error
		transient bool
	}{
		{NewTransientError(errors.New("x"), ""), true},
		{NewPermanentError(errors.New("x"), ""), false},
		{fmt.Errorf("API error 429: rate limited"), true},
		{fmt.Errorf("API error 503: unavailable"), true},
		{fmt.Errorf("API error 401: unauthorized"), false},
		{fmt.Errorf("connection refused"), true},
	}
	for _, tc := range cases {
		if got := IsTransient(tc.err); got != tc.transient {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.transient)
		}
	}
}

func TestFormatForLLMUsesCustomMessage(t *testing.T) {
	err := NewTransientError(errors.New("http 429"), "API rate limit reached. The harness will retry with backoff.")
	msg := FormatForLLM(err)
	if msg != err.Message {
		t.Fatalf("got %q", msg)
	}
}
