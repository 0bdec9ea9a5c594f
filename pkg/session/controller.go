// Package session provides the public controller for one streaming
// analysis run: start/pause/resume/cancel/reset, a read-only state
// snapshot, and ordered consumer callbacks. All mutation funnels through
// a single serialized apply path, so the snapshot is race-free no matter
// how often a UI reads it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/lumenvid/recap/internal/domain"
	"github.com/lumenvid/recap/internal/presentation"
	"github.com/lumenvid/recap/internal/sse"
	"github.com/lumenvid/recap/internal/telemetry"
	"github.com/lumenvid/recap/internal/transport"
	"github.com/lumenvid/recap/pkg/api"
)

var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrFinished       = errors.New("session finished; reset before starting again")
)

const defaultTickInterval = time.Second

// Stream is the event stream a Transport hands back. Satisfied by
// *transport.Stream; tests substitute scripted implementations.
type Stream interface {
	Records() <-chan sse.Record
	Err() error
	Close()
}

// Transport opens the analysis event stream for a run.
type Transport interface {
	Open(ctx context.Context, req api.AnalyzeRequest, state transport.RetryState) Stream
}

// Callbacks are the consumer-facing notifications. All of them are
// invoked one at a time, in event order, and never under the controller's
// lock, so they may call back into the controller freely.
type Callbacks struct {
	// OnStatusChange fires exactly once per distinct status entered.
	OnStatusChange func(status api.SessionStatus)
	// OnToken fires once per token event with the increment and the new
	// full text.
	OnToken func(token, fullText string)
	// OnComplete fires at most once per run.
	OnComplete func(result api.CompleteResult)
	// OnError fires at most once per run, only on terminal failure.
	OnError func(err api.SessionError)
}

type Config struct {
	// BaseURL of the recap backend. Required unless Transport is set.
	BaseURL string
	// Request identifies the video and the analysis options.
	Request api.AnalyzeRequest
	// Tokens supplies the bearer credential, resolved fresh per
	// connection attempt. Nil sends no Authorization header.
	Tokens    transport.TokenSource
	Retry     transport.RetryPolicy
	Callbacks Callbacks
	Logger    *slog.Logger
	// Metrics may be nil; a nil recorder records nothing.
	Metrics    *telemetry.Recorder
	HTTPClient *http.Client
	// TickInterval is the duration clock period. Defaults to one second.
	TickInterval time.Duration
	// Transport overrides the HTTP transport. Used by tests and the
	// simulator harness.
	Transport Transport
}

// Controller drives one analysis session end to end.
type Controller struct {
	cfg       Config
	transport Transport
	log       *slog.Logger
	metrics   *telemetry.Recorder

	dispatch dispatcher

	// pausedFlag mirrors the pause state for lock-free reads from the
	// transport goroutine. All writes happen under opMu.
	pausedFlag atomic.Bool

	// opMu serialises every state mutation: event application, pause,
	// resume, cancel, reset. Callbacks are enqueued under it but run
	// after it is released.
	opMu         sync.Mutex
	sess         *domain.Session
	running      bool
	buffer       eventBuffer
	deferred     *transport.RetryState
	stream       Stream
	runCtx       context.Context
	cancelRun    context.CancelFunc
	clockStop    chan struct{}
	clockStopped bool
	done         chan struct{}
	doneClosed   bool
	gen          int
	startedAt    time.Time
	firstToken   bool
}

func New(cfg Config) (*Controller, error) {
	if cfg.Request.VideoID == "" {
		return nil, fmt.Errorf("session: video ID is required")
	}
	if cfg.Request.Mode == "" {
		cfg.Request.Mode = api.ModeStandard
	}
	if !cfg.Request.Mode.Valid() {
		return nil, fmt.Errorf("session: invalid analysis mode %q", cfg.Request.Mode)
	}
	if cfg.Request.Language == "" {
		cfg.Request.Language = "en"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Controller{
		cfg:     cfg,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		sess:    domain.NewSession(uuid.NewString()),
		done:    make(chan struct{}),
	}

	if cfg.Transport != nil {
		c.transport = cfg.Transport
	} else {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("session: base URL is required")
		}
		c.transport = httpTransport{client: &transport.Client{
			BaseURL:    cfg.BaseURL,
			HTTPClient: cfg.HTTPClient,
			Tokens:     cfg.Tokens,
			Retry:      cfg.Retry,
			Logger:     cfg.Logger,
			Paused:     c.pausedFlag.Load,
			OnReconnect: func(attempt int, delay time.Duration) {
				c.metrics.Reconnect(context.Background())
			},
		}}
	}

	return c, nil
}

type httpTransport struct {
	client *transport.Client
}

func (t httpTransport) Open(ctx context.Context, req api.AnalyzeRequest, state transport.RetryState) Stream {
	return t.client.Open(ctx, req, state)
}

// Start opens the stream and begins applying events. It returns an error
// only for misuse: a run already in flight, or a finished session that
// needs Reset first. Transport failures never surface here; they arrive
// through state and callbacks.
func (c *Controller) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.opMu.Lock()
	if c.running {
		c.opMu.Unlock()
		return ErrAlreadyRunning
	}
	if c.sess.Status().IsTerminal() {
		c.opMu.Unlock()
		return ErrFinished
	}

	now := time.Now()
	out := c.sess.Begin(now)
	if !out.Applied {
		c.opMu.Unlock()
		return ErrAlreadyRunning
	}

	c.running = true
	c.startedAt = now
	c.firstToken = false
	c.runCtx, c.cancelRun = context.WithCancel(ctx)
	c.clockStop = make(chan struct{})
	c.clockStopped = false

	gen := c.gen
	sess := c.sess
	stream := c.transport.Open(c.runCtx, c.cfg.Request, transport.RetryState{})
	c.stream = stream
	if out.StatusChanged {
		c.addStatusLocked(out.Status)
	}
	clockStop := c.clockStop
	c.opMu.Unlock()

	c.metrics.SessionStarted(context.Background(), string(c.cfg.Request.Mode))
	c.log.Info("session started",
		"run_id", sess.RunID(),
		"video_id", c.cfg.Request.VideoID,
		"mode", c.cfg.Request.Mode)

	go c.pump(gen, stream)
	go c.clock(clockStop, sess)

	c.dispatch.run()
	return nil
}

// Pause starts buffering decoded events instead of applying them. The
// connection stays open and the duration clock keeps ticking. A no-op
// unless a run is active and not already paused.
func (c *Controller) Pause() {
	c.opMu.Lock()
	st := c.sess.Status()
	if !c.running || c.pausedFlag.Load() || st.IsTerminal() || st == domain.StatusIdle {
		c.opMu.Unlock()
		return
	}
	c.pausedFlag.Store(true)
	out := c.sess.Pause(time.Now())
	if out.StatusChanged {
		c.addStatusLocked(out.Status)
	}
	c.log.Info("session paused", "run_id", c.sess.RunID())
	c.opMu.Unlock()
	c.dispatch.run()
}

// Resume replays the buffered events in arrival order through the normal
// apply path, then restores the analyzing status unless one of them was
// terminal. If a transient transport failure was deferred during the
// pause, the stream is reopened with the preserved retry budget.
func (c *Controller) Resume() {
	c.opMu.Lock()
	if !c.pausedFlag.Load() {
		c.opMu.Unlock()
		return
	}

	replayed := c.buffer.Drain()
	for _, ev := range replayed {
		c.applyLocked(ev)
	}
	c.pausedFlag.Store(false)

	deferred := c.deferred
	c.deferred = nil

	if !c.sess.Status().IsTerminal() {
		out := c.sess.ResumeToAnalyzing(time.Now())
		if out.StatusChanged {
			c.addStatusLocked(out.Status)
		}
		c.log.Info("session resumed",
			"run_id", c.sess.RunID(),
			"replayed", len(replayed))

		if deferred != nil {
			// The retry that could not be scheduled while paused runs now.
			stream := c.transport.Open(c.runCtx, c.cfg.Request, *deferred)
			c.stream = stream
			go c.pump(c.gen, stream)
		}
	}
	c.opMu.Unlock()
	c.dispatch.run()
}

// Cancel aborts the transport, stops the duration clock and any pending
// retry timer, and forces the cancelled terminal status. A no-op when the
// session is idle or already terminal.
func (c *Controller) Cancel() {
	c.opMu.Lock()
	c.cancelLocked(time.Now())
	c.opMu.Unlock()
	c.dispatch.run()
}

func (c *Controller) cancelLocked(now time.Time) {
	out := c.sess.CancelRun(now)
	if !out.Applied {
		return
	}
	c.pausedFlag.Store(false)
	c.buffer.Drain()
	c.deferred = nil
	if out.StatusChanged {
		c.addStatusLocked(out.Status)
	}
	c.log.Info("session cancelled", "run_id", c.sess.RunID())
	c.finishLocked(domain.StatusCancelled)
}

// Reset tears down any live run and replaces the session with a fresh
// idle one. It is the only path back to idle.
func (c *Controller) Reset() {
	c.opMu.Lock()
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
	c.stopClockLocked()
	c.gen++ // events from the superseded stream are dropped on arrival
	c.pausedFlag.Store(false)
	c.buffer.Drain()
	c.deferred = nil
	c.running = false
	c.stream = nil
	c.startedAt = time.Time{}

	if !c.doneClosed {
		// Release anyone waiting on the run being discarded.
		c.doneClosed = true
		ch := c.done
		c.dispatch.add(func() { close(ch) })
	}
	c.done = make(chan struct{})
	c.doneClosed = false

	old := c.sess.RunID()
	wasIdle := c.sess.Status() == domain.StatusIdle
	c.sess = domain.NewSession(uuid.NewString())
	c.log.Info("session reset", "old_run_id", old, "run_id", c.sess.RunID())
	if cb := c.cfg.Callbacks.OnStatusChange; cb != nil && !wasIdle {
		c.dispatch.add(func() { cb(api.StatusIdle) })
	}
	c.opMu.Unlock()
	c.dispatch.run()
}

// Snapshot returns the read-only view of the current session.
func (c *Controller) Snapshot() api.SessionSnapshot {
	c.opMu.Lock()
	sess := c.sess
	c.opMu.Unlock()
	return presentation.SessionSnapshotFromDomain(sess.Snapshot())
}

// Done is closed when the current run reaches a terminal status. Reset
// renews it.
func (c *Controller) Done() <-chan struct{} {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.done
}

// pump is the sole apply path: it decodes records in arrival order and
// hands them to the state machine (or the pause buffer).
func (c *Controller) pump(gen int, stream Stream) {
	for rec := range stream.Records() {
		ev, err := sse.Decode(rec)
		if err != nil {
			if errors.Is(err, sse.ErrUnknownEventType) {
				c.log.Debug("ignoring unknown event type", "type", rec.Type)
				c.metrics.EventDiscarded(context.Background(), "unknown_type")
			} else {
				c.log.Warn("dropping malformed record", "type", rec.Type, "error", err)
				c.metrics.EventDiscarded(context.Background(), "malformed")
			}
			continue
		}
		c.deliver(gen, ev)
	}
	c.streamEnded(gen, stream.Err())
}

func (c *Controller) deliver(gen int, ev domain.Event) {
	c.opMu.Lock()
	if gen != c.gen {
		c.opMu.Unlock()
		return
	}
	if c.pausedFlag.Load() {
		c.buffer.Append(ev)
		c.opMu.Unlock()
		return
	}
	c.applyLocked(ev)
	c.opMu.Unlock()
	c.dispatch.run()
}

func (c *Controller) applyLocked(ev domain.Event) {
	out := c.sess.Apply(ev)
	if !out.Applied {
		return
	}
	c.metrics.EventApplied(context.Background(), ev.Type.String())
	cb := c.cfg.Callbacks

	if out.StatusChanged {
		c.addStatusLocked(out.Status)
	}

	if ev.Type == domain.EventToken {
		c.metrics.TokenReceived(context.Background())
		if !c.firstToken {
			c.firstToken = true
			if !c.startedAt.IsZero() {
				c.metrics.TimeToFirstToken(context.Background(), time.Since(c.startedAt).Seconds())
			}
		}
		if cb.OnToken != nil {
			token, text := out.Token, out.Text
			c.dispatch.add(func() { cb.OnToken(token, text) })
		}
	}

	if out.Completed != nil {
		res := api.CompleteResult{
			SummaryID: out.Completed.SummaryID,
			Text:      out.Completed.Text,
		}
		if m := out.Completed.Metadata; m != nil {
			res.Metadata = &api.VideoMetadata{
				Title:           m.Title,
				Channel:         m.Channel,
				DurationSeconds: m.DurationSeconds,
				Language:        m.Language,
				ThumbnailURL:    m.ThumbnailURL,
			}
		}
		c.log.Info("session complete", "run_id", c.sess.RunID(), "summary_id", res.SummaryID)
		if cb.OnComplete != nil {
			c.dispatch.add(func() { cb.OnComplete(res) })
		}
		c.finishLocked(domain.StatusComplete)
	}

	if out.Failed != nil {
		failure := api.SessionError{
			Code:      out.Failed.Code,
			Message:   out.Failed.Message,
			Retryable: out.Failed.Retryable,
		}
		c.log.Error("session failed",
			"run_id", c.sess.RunID(),
			"code", failure.Code,
			"message", failure.Message)
		if cb.OnError != nil {
			c.dispatch.add(func() { cb.OnError(failure) })
		}
		c.finishLocked(domain.StatusError)
	}
}

// streamEnded handles the final outcome of a stream after reconnects are
// spent or ruled out.
func (c *Controller) streamEnded(gen int, err error) {
	c.opMu.Lock()
	if gen != c.gen {
		c.opMu.Unlock()
		return
	}
	c.stream = nil

	var deferredErr *transport.DeferredError
	switch {
	case err == nil:
		// Graceful close. If the server never sent a complete event this
		// is an implicit one; otherwise it is a normal shutdown.
		if !c.sess.Status().IsTerminal() {
			c.log.Info("stream closed before complete event, treating as complete")
			ev := domain.NewCompleteEvent(nil)
			if c.pausedFlag.Load() {
				c.buffer.Append(ev)
			} else {
				c.applyLocked(ev)
			}
		}

	case errors.Is(err, context.Canceled):
		// Intentional abort, or the caller's context went away. Either
		// way the run is over; CancelRun no-ops if already terminal.
		c.cancelLocked(time.Now())

	case errors.As(err, &deferredErr):
		// Transient failure during a pause. Resume reopens the stream
		// with this budget. If the pause already ended before we got
		// here, Resume found nothing to reopen, so do it now.
		state := deferredErr.State
		if c.pausedFlag.Load() {
			c.deferred = &state
		} else if c.running && !c.sess.Status().IsTerminal() {
			stream := c.transport.Open(c.runCtx, c.cfg.Request, state)
			c.stream = stream
			go c.pump(c.gen, stream)
		}

	default:
		ev := domain.NewErrorEvent("CONNECTION_ERROR", err.Error(), true)
		if c.pausedFlag.Load() {
			c.buffer.Append(ev)
		} else {
			c.applyLocked(ev)
		}
	}
	c.opMu.Unlock()
	c.dispatch.run()
}

func (c *Controller) addStatusLocked(status domain.Status) {
	if cb := c.cfg.Callbacks.OnStatusChange; cb != nil {
		s := api.SessionStatus(status.String())
		c.dispatch.add(func() { cb(s) })
	}
}

// finishLocked runs the terminal teardown exactly once per run: stops the
// clock, aborts the transport, records the duration, and schedules the
// done channel to close after all pending callbacks have run.
func (c *Controller) finishLocked(status domain.Status) {
	c.stopClockLocked()
	c.running = false
	if c.cancelRun != nil {
		c.cancelRun()
	}
	if !c.startedAt.IsZero() {
		c.metrics.SessionDuration(context.Background(), time.Since(c.startedAt).Seconds(), status.String())
	}
	if !c.doneClosed {
		c.doneClosed = true
		ch := c.done
		c.dispatch.add(func() { close(ch) })
	}
}

func (c *Controller) stopClockLocked() {
	if c.clockStop != nil && !c.clockStopped {
		c.clockStopped = true
		close(c.clockStop)
	}
}

// clock recomputes the elapsed duration once per tick. The session itself
// ignores ticks once terminal; the goroutine exits when the run's stop
// channel closes.
func (c *Controller) clock(stop <-chan struct{}, sess *domain.Session) {
	interval := c.cfg.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			sess.Tick(now)
		}
	}
}
