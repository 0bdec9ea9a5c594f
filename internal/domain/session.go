package domain

import (
	"math"
	"strings"
	"sync"
	"time"
)

type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusMetadata
	StatusTranscript
	StatusAnalyzing
	StatusComplete
	StatusError
	StatusPaused
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusMetadata:
		return "metadata"
	case StatusTranscript:
		return "transcript"
	case StatusAnalyzing:
		return "analyzing"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	case StatusPaused:
		return "paused"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the session is frozen: complete, error, and
// cancelled admit no further state change short of a reset.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusCancelled
}

type VideoMetadata struct {
	Title           string
	Channel         string
	DurationSeconds int64
	Language        string
	ThumbnailURL    string
}

type SessionError struct {
	Code      string
	Message   string
	Retryable bool
}

type CompleteResult struct {
	SummaryID *int64
	Text      string
	Metadata  *VideoMetadata
}

type StatusTransition struct {
	From      Status
	To        Status
	Reason    string
	Timestamp time.Time
}

// Outcome reports what a single application changed, so the caller can
// relay exactly the right callbacks in order.
type Outcome struct {
	Applied       bool
	StatusChanged bool
	Status        Status
	Progress      int
	Token         string
	Text          string
	MetadataSet   bool
	Completed     *CompleteResult
	Failed        *SessionError
}

// Session is the aggregate root for one analysis run. All mutation goes
// through Begin/Apply/Pause/ResumeToAnalyzing/CancelRun/Tick under the
// internal lock; Snapshot returns a deep copy for readers.
type Session struct {
	runID       string
	status      Status
	steps       []Step
	progress    int
	text        strings.Builder
	metadata    *VideoMetadata
	err         *SessionError
	summaryID   *int64
	startedAt   time.Time
	duration    time.Duration
	transitions []StatusTransition

	mu sync.RWMutex
}

func NewSession(runID string) *Session {
	return &Session{
		runID:       runID,
		status:      StatusIdle,
		steps:       newSteps(),
		transitions: make([]StatusTransition, 0),
	}
}

func (s *Session) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runID
}

func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Begin moves an idle session to connecting and starts the wall clock.
// The connect step becomes active immediately so the UI shows work in
// progress while the transport dials.
func (s *Session) Begin(now time.Time) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusIdle {
		return s.outcomeLocked(false, false)
	}
	s.startedAt = now
	changed := s.setStatusLocked(StatusConnecting, "session started", now)
	s.activateStepLocked(StepConnect, now)
	return s.outcomeLocked(true, changed)
}

// Apply runs one decoded event through the transition table. Once the
// session is terminal every event is ignored, including ones replayed
// from the pause buffer.
func (s *Session) Apply(ev Event) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() {
		return s.outcomeLocked(false, false)
	}

	now := ev.At
	if now.IsZero() {
		now = time.Now()
	}
	reason := "event " + ev.Type.String()

	switch ev.Type {
	case EventConnected:
		changed := s.setStatusLocked(StatusConnecting, reason, now)
		s.completeStepLocked(StepConnect, now)
		s.activateStepLocked(StepMetadata, now)
		s.bumpProgressLocked(StepConnect, 100)
		return s.outcomeLocked(true, changed)

	case EventMetadata:
		changed := s.setStatusLocked(StatusMetadata, reason, now)
		s.completeStepLocked(StepMetadata, now)
		s.activateStepLocked(StepTranscript, now)
		s.bumpProgressLocked(StepMetadata, 100)
		out := s.outcomeLocked(true, changed)
		if data, ok := ev.Data.(MetadataData); ok && s.metadata == nil {
			meta := data.Meta
			s.metadata = &meta
			out.MetadataSet = true
		}
		return out

	case EventTranscript:
		changed := s.setStatusLocked(StatusTranscript, reason, now)
		data, _ := ev.Data.(TranscriptData)
		s.bumpProgressLocked(StepTranscript, fractionOrZero(data.Progress))
		return s.outcomeLocked(true, changed)

	case EventTranscriptComplete:
		changed := s.setStatusLocked(StatusTranscript, reason, now)
		s.completeStepLocked(StepTranscript, now)
		s.activateStepLocked(StepAnalysis, now)
		s.bumpProgressLocked(StepTranscript, 100)
		return s.outcomeLocked(true, changed)

	case EventAnalysisStart:
		changed := s.setStatusLocked(StatusAnalyzing, reason, now)
		s.bumpProgressLocked(StepAnalysis, 0)
		return s.outcomeLocked(true, changed)

	case EventToken:
		changed := s.setStatusLocked(StatusAnalyzing, reason, now)
		data, _ := ev.Data.(TokenData)
		s.text.WriteString(data.Token)
		s.bumpProgressLocked(StepAnalysis, fractionOrZero(data.Progress))
		out := s.outcomeLocked(true, changed)
		out.Token = data.Token
		out.Text = s.text.String()
		return out

	case EventAnalysisComplete:
		changed := s.setStatusLocked(StatusAnalyzing, reason, now)
		s.completeStepLocked(StepAnalysis, now)
		s.activateStepLocked(StepComplete, now)
		s.bumpProgressLocked(StepAnalysis, 100)
		return s.outcomeLocked(true, changed)

	case EventComplete:
		changed := s.setStatusLocked(StatusComplete, reason, now)
		s.completeStepLocked(StepComplete, now)
		if data, ok := ev.Data.(CompleteData); ok && data.SummaryID != nil {
			id := *data.SummaryID
			s.summaryID = &id
		}
		s.progress = 100
		s.freezeDurationLocked(now)
		out := s.outcomeLocked(true, changed)
		out.Completed = &CompleteResult{
			SummaryID: copyInt64(s.summaryID),
			Text:      s.text.String(),
			Metadata:  copyMetadata(s.metadata),
		}
		return out

	case EventError:
		data, _ := ev.Data.(ErrorData)
		s.err = &SessionError{
			Code:      data.Code,
			Message:   data.Message,
			Retryable: data.Retryable,
		}
		s.failActiveStepLocked()
		changed := s.setStatusLocked(StatusError, reason, now)
		s.freezeDurationLocked(now)
		out := s.outcomeLocked(true, changed)
		failed := *s.err
		out.Failed = &failed
		return out

	case EventHeartbeat:
		return s.outcomeLocked(true, false)

	default:
		return s.outcomeLocked(false, false)
	}
}

// Pause marks the session paused. It does not stop the wall clock.
func (s *Session) Pause(now time.Time) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() || s.status == StatusPaused || s.status == StatusIdle {
		return s.outcomeLocked(false, false)
	}
	changed := s.setStatusLocked(StatusPaused, "paused", now)
	return s.outcomeLocked(true, changed)
}

// ResumeToAnalyzing restores the externally visible status after a pause.
// Resuming always re-enters analyzing regardless of the status that was
// current when the pause began.
func (s *Session) ResumeToAnalyzing(now time.Time) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() || s.status == StatusIdle {
		return s.outcomeLocked(false, false)
	}
	changed := s.setStatusLocked(StatusAnalyzing, "resumed", now)
	return s.outcomeLocked(true, changed)
}

// CancelRun forces the cancelled terminal status and freezes the duration.
func (s *Session) CancelRun(now time.Time) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() || s.status == StatusIdle {
		return s.outcomeLocked(false, false)
	}
	changed := s.setStatusLocked(StatusCancelled, "cancelled", now)
	s.freezeDurationLocked(now)
	return s.outcomeLocked(true, changed)
}

// Tick recomputes the wall-clock duration. Ticking continues while the
// session is paused (elapsed time, not time working) and stops mattering
// once the duration is frozen at a terminal transition.
func (s *Session) Tick(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.IsTerminal() || s.startedAt.IsZero() {
		return s.duration
	}
	s.duration = now.Sub(s.startedAt)
	return s.duration
}

func (s *Session) setStatusLocked(to Status, reason string, now time.Time) bool {
	if s.status == to {
		return false
	}
	s.transitions = append(s.transitions, StatusTransition{
		From:      s.status,
		To:        to,
		Reason:    reason,
		Timestamp: now,
	})
	s.status = to
	return true
}

// completeStepLocked is forward-only: a step already complete or errored
// stays as it is, so replayed events after a reconnect cannot regress the
// step list.
func (s *Session) completeStepLocked(id StepID, now time.Time) {
	st := &s.steps[id]
	if st.Status == StepStatusComplete || st.Status == StepStatusError {
		return
	}
	if st.StartedAt.IsZero() {
		st.StartedAt = now
	}
	st.Status = StepStatusComplete
	st.CompletedAt = now
}

// activateStepLocked only activates a pending step whose predecessors are
// all complete; anything else is a no-op (no skipping, no reordering).
func (s *Session) activateStepLocked(id StepID, now time.Time) {
	st := &s.steps[id]
	if st.Status != StepStatusPending {
		return
	}
	for i := StepID(0); i < id; i++ {
		if s.steps[i].Status != StepStatusComplete {
			return
		}
	}
	st.Status = StepStatusActive
	st.StartedAt = now
}

func (s *Session) failActiveStepLocked() {
	for i := range s.steps {
		if s.steps[i].Status == StepStatusActive {
			s.steps[i].Status = StepStatusError
			return
		}
	}
}

// bumpProgressLocked folds the weighted contribution of step id at the
// given fraction (0..100) into the session progress. Progress only moves
// up; a candidate below the current value is discarded.
func (s *Session) bumpProgressLocked(id StepID, fraction float64) {
	sum := 0
	for i := StepID(0); i < id; i++ {
		sum += i.Weight()
	}
	candidate := sum + int(math.Round(float64(id.Weight())*fraction/100))
	if candidate > 100 {
		candidate = 100
	}
	if candidate > s.progress {
		s.progress = candidate
	}
}

func (s *Session) freezeDurationLocked(now time.Time) {
	if !s.startedAt.IsZero() {
		s.duration = now.Sub(s.startedAt)
	}
}

func (s *Session) outcomeLocked(applied, statusChanged bool) Outcome {
	return Outcome{
		Applied:       applied,
		StatusChanged: statusChanged,
		Status:        s.status,
		Progress:      s.progress,
	}
}

func fractionOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	f := *p
	if f < 0 {
		return 0
	}
	if f > 100 {
		return 100
	}
	return f
}

func copyInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyMetadata(m *VideoMetadata) *VideoMetadata {
	if m == nil {
		return nil
	}
	meta := *m
	return &meta
}

// SessionSnapshot is a point-in-time, lock-free copy of a Session's fields.
type SessionSnapshot struct {
	RunID       string
	Status      Status
	Steps       []Step
	Progress    int
	Text        string
	Metadata    *VideoMetadata
	Err         *SessionError
	SummaryID   *int64
	StartedAt   time.Time
	Duration    time.Duration
	Transitions []StatusTransition
}

// Snapshot returns an atomic copy of the session under its read lock.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := make([]Step, len(s.steps))
	copy(steps, s.steps)

	transitions := make([]StatusTransition, len(s.transitions))
	copy(transitions, s.transitions)

	var errCopy *SessionError
	if s.err != nil {
		e := *s.err
		errCopy = &e
	}

	return SessionSnapshot{
		RunID:       s.runID,
		Status:      s.status,
		Steps:       steps,
		Progress:    s.progress,
		Text:        s.text.String(),
		Metadata:    copyMetadata(s.metadata),
		Err:         errCopy,
		SummaryID:   copyInt64(s.summaryID),
		StartedAt:   s.startedAt,
		Duration:    s.duration,
		Transitions: transitions,
	}
}
