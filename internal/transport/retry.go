package transport

import (
	"fmt"
	"time"
)

// RetryPolicy configures reconnection after transient transport failures.
type RetryPolicy struct {
	// MaxRetries is the number of reconnection attempts after the initial
	// one. Zero means use the default.
	MaxRetries int
	// BaseDelay is the delay before the first retry; each subsequent retry
	// doubles it.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// ResetOnSuccess resets the retry count after every successful
	// connection instead of only at session start.
	ResetOnSuccess bool
}

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 30 * time.Second
)

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	return p
}

// Backoff computes the delay before the retry following the given number
// of retries already made: BaseDelay × 2^retries, capped at MaxDelay.
func (p RetryPolicy) Backoff(retries int) time.Duration {
	p = p.withDefaults()
	delay := p.BaseDelay
	for i := 0; i < retries; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// RetryState is the portable retry budget of one session run. It survives
// reconnects and pause gaps; only a new run starts from zero.
type RetryState struct {
	Retries int
}

// HTTPStatusError reports a non-2xx response on stream open.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ExhaustedError is the terminal outcome when the retry budget runs out.
type ExhaustedError struct {
	Attempts  int
	LastError error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.LastError)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// DeferredError reports a transient failure that occurred while the
// session was paused. No reconnect is scheduled during a pause; the
// carried state lets the caller resume the retry budget on Resume.
type DeferredError struct {
	State RetryState
	Cause error
}

func (e *DeferredError) Error() string {
	return fmt.Sprintf("reconnect deferred while paused (retries so far %d): %v", e.State.Retries, e.Cause)
}

func (e *DeferredError) Unwrap() error {
	return e.Cause
}
