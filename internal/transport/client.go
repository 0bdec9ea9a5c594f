// Package transport owns the network side of an analysis session: opening
// the streaming request with auth and option parameters, pumping body
// chunks through the frame assembler, and reconnecting with exponential
// backoff on transient failures.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lumenvid/recap/internal/sse"
	"github.com/lumenvid/recap/pkg/api"
)

const recordBufferSize = 16

// Client opens analysis event streams against a recap backend.
type Client struct {
	// BaseURL is the backend root, e.g. "http://localhost:8787".
	BaseURL string
	// HTTPClient must have no timeout; streams stay open indefinitely.
	// Nil means a fresh client with Timeout 0.
	HTTPClient *http.Client
	// Tokens is consulted once per connection attempt. Nil sends no
	// Authorization header.
	Tokens TokenSource
	Retry  RetryPolicy
	Logger *slog.Logger

	// Paused reports whether the session is user-paused. While it returns
	// true no reconnect is scheduled; the failure is deferred instead.
	Paused func() bool
	// OnReconnect is called before each scheduled reconnection attempt.
	OnReconnect func(attempt int, delay time.Duration)
}

// Stream is one logical event stream. Reconnects happen inside it; the
// records channel spans attempts and closes only when the stream is over
// for good. Err explains why once the channel is closed:
//
//   - nil: graceful end of stream
//   - context.Canceled: intentional abort (Close or context cancellation)
//   - *DeferredError: transient failure while paused, resume to continue
//   - *ExhaustedError: retry budget spent
type Stream struct {
	records chan sse.Record
	cancel  context.CancelFunc
	err     error
}

func (s *Stream) Records() <-chan sse.Record {
	return s.records
}

// Err reports why the stream ended. Valid only after Records is closed.
func (s *Stream) Err() error {
	return s.err
}

// Close aborts the stream. The unwind is reported as context.Canceled,
// never as a transport failure, so it does not trigger a retry.
func (s *Stream) Close() {
	s.cancel()
}

// Open starts a stream without blocking. The initial connection, every
// reconnect, and all reads happen on a background goroutine.
func (c *Client) Open(ctx context.Context, req api.AnalyzeRequest, state RetryState) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		records: make(chan sse.Record, recordBufferSize),
		cancel:  cancel,
	}
	go c.run(ctx, req, state, s)
	return s
}

func (c *Client) run(ctx context.Context, req api.AnalyzeRequest, state RetryState, s *Stream) {
	defer close(s.records)

	pol := c.Retry.withDefaults()
	log := c.logger().With("video_id", req.VideoID)

	for {
		err := c.attempt(ctx, req, &state, pol, s)
		if err == nil {
			log.Debug("stream ended gracefully")
			return
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			s.err = context.Canceled
			return
		}
		if c.Paused != nil && c.Paused() {
			log.Info("transient failure while paused, deferring reconnect", "error", err)
			s.err = &DeferredError{State: state, Cause: err}
			return
		}
		if state.Retries >= pol.MaxRetries {
			s.err = &ExhaustedError{Attempts: state.Retries + 1, LastError: err}
			return
		}

		delay := pol.Backoff(state.Retries)
		state.Retries++
		if c.OnReconnect != nil {
			c.OnReconnect(state.Retries, delay)
		}
		log.Warn("stream failed, reconnecting",
			"error", err,
			"attempt", state.Retries,
			"delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			s.err = context.Canceled
			return
		}
	}
}

// attempt makes one connection and pumps it until it ends. A nil return
// means the server closed the stream gracefully.
func (c *Client) attempt(ctx context.Context, req api.AnalyzeRequest, state *RetryState, pol RetryPolicy, s *Stream) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.streamURL(req), nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	if c.Tokens != nil {
		// Resolved fresh per attempt; the token store may have refreshed
		// the credential since the last connection.
		token, err := c.Tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("resolve token: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if pol.ResetOnSuccess {
		state.Retries = 0
	}

	// Fresh assembler per attempt: a partial record from a dropped
	// connection must not bleed into the replacement stream.
	asm := sse.NewAssembler()
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, rec := range asm.Feed(buf[:n]) {
				select {
				case s.records <- rec:
				case <-ctx.Done():
					return context.Canceled
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return readErr
		}
	}
}

func (c *Client) streamURL(req api.AnalyzeRequest) string {
	q := url.Values{}
	q.Set("mode", string(req.Mode))
	q.Set("language", req.Language)
	q.Set("model", req.Model)
	q.Set("web_enrichment", strconv.FormatBool(req.WebEnrichment))
	return fmt.Sprintf("%s/v1/videos/%s/analysis/stream?%s",
		strings.TrimSuffix(c.BaseURL, "/"), url.PathEscape(req.VideoID), q.Encode())
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 0}
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
