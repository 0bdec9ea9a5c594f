package transport

import (
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	pol := RetryPolicy{BaseDelay: time.Second, MaxDelay: 30 * time.Second, MaxRetries: 10}

	tests := []struct {
		retries int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{6, 30 * time.Second},
		{20, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := pol.Backoff(tt.retries); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.retries, got, tt.want)
		}
	}
}

func TestBackoffDefaults(t *testing.T) {
	var pol RetryPolicy
	if got := pol.Backoff(0); got != DefaultBaseDelay {
		t.Errorf("Backoff(0) with zero policy = %v, want %v", got, DefaultBaseDelay)
	}
	if got := pol.Backoff(100); got != DefaultMaxDelay {
		t.Errorf("Backoff(100) with zero policy = %v, want %v", got, DefaultMaxDelay)
	}
}

func TestBackoffCapBelowBase(t *testing.T) {
	pol := RetryPolicy{BaseDelay: 10 * time.Second, MaxDelay: 5 * time.Second}
	if got := pol.Backoff(0); got != 5*time.Second {
		t.Errorf("Backoff(0) = %v, want cap of 5s", got)
	}
}

func TestExhaustedErrorUnwrap(t *testing.T) {
	cause := &HTTPStatusError{StatusCode: 503, Message: "unavailable"}
	err := error(&ExhaustedError{Attempts: 4, LastError: cause})

	var he *HTTPStatusError
	if !errors.As(err, &he) {
		t.Fatalf("expected to unwrap to HTTPStatusError, got %v", err)
	}
	if he.StatusCode != 503 {
		t.Errorf("expected status 503, got %d", he.StatusCode)
	}
}

func TestDeferredErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&DeferredError{State: RetryState{Retries: 2}, Cause: cause})

	if !errors.Is(err, cause) {
		t.Errorf("expected DeferredError to unwrap to its cause")
	}

	var de *DeferredError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DeferredError")
	}
	if de.State.Retries != 2 {
		t.Errorf("expected carried retry count 2, got %d", de.State.Retries)
	}
}
