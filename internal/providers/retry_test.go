package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryDoSucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	got, err := RetryDo(context.Background(), fastRetryConfig(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", &HTTPError{Status: http.StatusInternalServerError, Body: "boom"}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("RetryDo error: %v", err)
	}
	if got != "ok" || attempts != 3 {
		t.Errorf("got %q after %d attempts, want ok after 3", got, attempts)
	}
}

func TestRetryDoStopsOnClientError(t *testing.T) {
	attempts := 0
	_, err := RetryDo(context.Background(), fastRetryConfig(), func() (string, error) {
		attempts++
		return "", &HTTPError{Status: http.StatusUnauthorized, Body: "bad key"}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (401 is not retryable)", attempts)
	}
}

func TestRetryDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	_, err := RetryDo(context.Background(), fastRetryConfig(), func() (int, error) {
		attempts++
		return 0, &HTTPError{Status: http.StatusTooManyRequests, Body: "slow down"}
	})
	var he *HTTPError
	if !errors.As(err, &he) || he.Status != http.StatusTooManyRequests {
		t.Fatalf("err = %v, want last HTTPError", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryDoHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	_, err := RetryDo(ctx, fastRetryConfig(), func() (int, error) {
		attempts++
		return 0, &HTTPError{Status: 500, Body: "boom"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"5", 5 * time.Second},
		{"", 0},
		{"-1", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
	}
	for _, tc := range cases {
		if got := ParseRetryAfter(tc.in); got != tc.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
