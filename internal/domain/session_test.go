package domain

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func floatPtr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64     { return &i }

func startedSession() *Session {
	s := NewSession("run-1")
	s.Begin(time.Now())
	return s
}

func TestNewSession(t *testing.T) {
	s := NewSession("run-1")

	if s.RunID() != "run-1" {
		t.Errorf("expected RunID 'run-1', got %q", s.RunID())
	}
	if s.Status() != StatusIdle {
		t.Errorf("expected status idle, got %v", s.Status())
	}

	snap := s.Snapshot()
	if len(snap.Steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(snap.Steps))
	}
	total := 0
	for _, step := range snap.Steps {
		if step.Status != StepStatusPending {
			t.Errorf("step %v: expected pending, got %v", step.ID, step.Status)
		}
		total += step.Weight
	}
	if total != 100 {
		t.Errorf("expected step weights to sum to 100, got %d", total)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusIdle, "idle"},
		{StatusConnecting, "connecting"},
		{StatusMetadata, "metadata"},
		{StatusTranscript, "transcript"},
		{StatusAnalyzing, "analyzing"},
		{StatusComplete, "complete"},
		{StatusError, "error"},
		{StatusPaused, "paused"},
		{StatusCancelled, "cancelled"},
		{Status(999), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusComplete, StatusError, StatusCancelled}
	for _, st := range terminal {
		if !st.IsTerminal() {
			t.Errorf("expected %v to be terminal", st)
		}
	}
	active := []Status{StatusIdle, StatusConnecting, StatusMetadata, StatusTranscript, StatusAnalyzing, StatusPaused}
	for _, st := range active {
		if st.IsTerminal() {
			t.Errorf("expected %v not to be terminal", st)
		}
	}
}

func TestBegin(t *testing.T) {
	s := NewSession("run-1")
	now := time.Now()

	out := s.Begin(now)
	if !out.Applied {
		t.Fatal("expected Begin to apply on an idle session")
	}
	if !out.StatusChanged || out.Status != StatusConnecting {
		t.Errorf("expected status change to connecting, got %v (changed=%v)", out.Status, out.StatusChanged)
	}

	snap := s.Snapshot()
	if snap.Steps[StepConnect].Status != StepStatusActive {
		t.Errorf("expected connect step active while dialing, got %v", snap.Steps[StepConnect].Status)
	}
	if snap.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}

	// Begin on a non-idle session is a no-op.
	if out := s.Begin(now); out.Applied {
		t.Error("expected Begin on a started session to be a no-op")
	}
}

func TestApplyTransitionTable(t *testing.T) {
	s := startedSession()

	steps := []struct {
		name       string
		event      Event
		wantStatus Status
	}{
		{"connected", NewConnectedEvent(), StatusConnecting},
		{"metadata", NewMetadataEvent(VideoMetadata{Title: "X"}), StatusMetadata},
		{"transcript", NewTranscriptEvent(floatPtr(50)), StatusTranscript},
		{"transcript_complete", NewTranscriptCompleteEvent(), StatusTranscript},
		{"analysis_start", NewAnalysisStartEvent(), StatusAnalyzing},
		{"token", NewTokenEvent("Hel", floatPtr(40)), StatusAnalyzing},
		{"analysis_complete", NewAnalysisCompleteEvent(), StatusAnalyzing},
		{"complete", NewCompleteEvent(int64Ptr(42)), StatusComplete},
	}

	for _, tt := range steps {
		out := s.Apply(tt.event)
		if !out.Applied {
			t.Fatalf("%s: expected event to apply", tt.name)
		}
		if out.Status != tt.wantStatus {
			t.Errorf("%s: expected status %v, got %v", tt.name, tt.wantStatus, out.Status)
		}
	}

	snap := s.Snapshot()
	if snap.Progress != 100 {
		t.Errorf("expected progress 100 after complete, got %d", snap.Progress)
	}
	if snap.SummaryID == nil || *snap.SummaryID != 42 {
		t.Errorf("expected summary ID 42, got %v", snap.SummaryID)
	}
	for _, step := range snap.Steps {
		if step.Status != StepStatusComplete {
			t.Errorf("step %v: expected complete, got %v", step.ID, step.Status)
		}
	}
}

func TestApplyEndToEndScenario(t *testing.T) {
	s := startedSession()

	events := []Event{
		NewConnectedEvent(),
		NewMetadataEvent(VideoMetadata{Title: "X"}),
		NewTranscriptCompleteEvent(),
		NewAnalysisStartEvent(),
		NewTokenEvent("Hel", nil),
		NewTokenEvent("lo", nil),
		NewAnalysisCompleteEvent(),
		NewCompleteEvent(int64Ptr(42)),
	}
	for _, ev := range events {
		s.Apply(ev)
	}

	snap := s.Snapshot()
	if snap.Status != StatusComplete {
		t.Errorf("expected status complete, got %v", snap.Status)
	}
	if snap.Progress != 100 {
		t.Errorf("expected progress 100, got %d", snap.Progress)
	}
	if snap.Text != "Hello" {
		t.Errorf("expected text 'Hello', got %q", snap.Text)
	}
	if snap.Metadata == nil || snap.Metadata.Title != "X" {
		t.Errorf("expected metadata title 'X', got %v", snap.Metadata)
	}
	if snap.SummaryID == nil || *snap.SummaryID != 42 {
		t.Errorf("expected summary ID 42, got %v", snap.SummaryID)
	}
}

func TestApplyTokenAccumulatesText(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())
	s.Apply(NewMetadataEvent(VideoMetadata{Title: "t"}))
	s.Apply(NewTranscriptCompleteEvent())
	s.Apply(NewAnalysisStartEvent())

	out := s.Apply(NewTokenEvent("foo ", nil))
	if out.Token != "foo " {
		t.Errorf("expected token 'foo ', got %q", out.Token)
	}
	if out.Text != "foo " {
		t.Errorf("expected text 'foo ', got %q", out.Text)
	}

	out = s.Apply(NewTokenEvent("bar", nil))
	if out.Text != "foo bar" {
		t.Errorf("expected text 'foo bar', got %q", out.Text)
	}
}

func TestApplyMetadataSetOnce(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())

	out := s.Apply(NewMetadataEvent(VideoMetadata{Title: "first"}))
	if !out.MetadataSet {
		t.Error("expected first metadata event to set metadata")
	}

	// A replayed metadata event after a reconnect must not overwrite.
	out = s.Apply(NewMetadataEvent(VideoMetadata{Title: "second"}))
	if out.MetadataSet {
		t.Error("expected second metadata event not to set metadata")
	}
	if got := s.Snapshot().Metadata.Title; got != "first" {
		t.Errorf("expected metadata title 'first', got %q", got)
	}
}

func TestApplyErrorEvent(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())
	s.Apply(NewMetadataEvent(VideoMetadata{Title: "t"}))

	out := s.Apply(NewErrorEvent("ANALYSIS_FAILED", "model unavailable", true))
	if out.Failed == nil {
		t.Fatal("expected Failed outcome")
	}
	if out.Failed.Code != "ANALYSIS_FAILED" || !out.Failed.Retryable {
		t.Errorf("unexpected failure: %+v", out.Failed)
	}

	snap := s.Snapshot()
	if snap.Status != StatusError {
		t.Errorf("expected status error, got %v", snap.Status)
	}
	if snap.Steps[StepTranscript].Status != StepStatusError {
		t.Errorf("expected active transcript step to be marked error, got %v", snap.Steps[StepTranscript].Status)
	}
}

func TestApplyIdempotentTerminality(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())
	s.Apply(NewMetadataEvent(VideoMetadata{Title: "X"}))
	s.Apply(NewTranscriptCompleteEvent())
	s.Apply(NewAnalysisStartEvent())
	s.Apply(NewTokenEvent("Hello", nil))
	s.Apply(NewAnalysisCompleteEvent())
	s.Apply(NewCompleteEvent(int64Ptr(7)))

	before := s.Snapshot()

	// Everything after a terminal event is ignored, including replayed
	// buffered events.
	after := []Event{
		NewTokenEvent(" more", nil),
		NewErrorEvent("X", "y", false),
		NewConnectedEvent(),
		NewCompleteEvent(int64Ptr(99)),
		NewHeartbeatEvent(),
	}
	for _, ev := range after {
		if out := s.Apply(ev); out.Applied {
			t.Errorf("expected %v after terminal to be ignored", ev.Type)
		}
	}

	got := s.Snapshot()
	if got.Status != before.Status {
		t.Errorf("status changed after terminal: %v -> %v", before.Status, got.Status)
	}
	if got.Text != before.Text {
		t.Errorf("text changed after terminal: %q -> %q", before.Text, got.Text)
	}
	if *got.SummaryID != *before.SummaryID {
		t.Errorf("summary ID changed after terminal: %d -> %d", *before.SummaryID, *got.SummaryID)
	}
	for i := range got.Steps {
		if got.Steps[i].Status != before.Steps[i].Status {
			t.Errorf("step %v changed after terminal", got.Steps[i].ID)
		}
	}
}

func TestApplyHeartbeatIsNoOp(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())
	before := s.Snapshot()

	out := s.Apply(NewHeartbeatEvent())
	if !out.Applied {
		t.Error("expected heartbeat to count as applied")
	}
	if out.StatusChanged {
		t.Error("expected heartbeat not to change status")
	}

	got := s.Snapshot()
	if got.Status != before.Status || got.Progress != before.Progress {
		t.Error("expected heartbeat to leave state unchanged")
	}
}

func TestStepForwardOnly(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())
	s.Apply(NewMetadataEvent(VideoMetadata{Title: "t"}))
	s.Apply(NewTranscriptCompleteEvent())

	// A replayed connected event after a reconnect must not regress the
	// later steps.
	s.Apply(NewConnectedEvent())

	snap := s.Snapshot()
	if snap.Steps[StepTranscript].Status != StepStatusComplete {
		t.Errorf("expected transcript step to stay complete, got %v", snap.Steps[StepTranscript].Status)
	}
	if snap.Steps[StepAnalysis].Status != StepStatusActive {
		t.Errorf("expected analysis step to stay active, got %v", snap.Steps[StepAnalysis].Status)
	}
}

func TestNoStepSkipping(t *testing.T) {
	s := startedSession()

	// analysis_start without the earlier structural events must not
	// activate the analysis step out of order.
	s.Apply(NewAnalysisStartEvent())

	snap := s.Snapshot()
	if snap.Steps[StepAnalysis].Status != StepStatusPending {
		t.Errorf("expected analysis step to stay pending, got %v", snap.Steps[StepAnalysis].Status)
	}
}

func TestProgressWeights(t *testing.T) {
	s := startedSession()

	tests := []struct {
		event Event
		want  int
	}{
		{NewConnectedEvent(), 5},
		{NewMetadataEvent(VideoMetadata{Title: "t"}), 15},
		{NewTranscriptEvent(floatPtr(40)), 25}, // 15 + 25*0.40
		{NewTranscriptEvent(floatPtr(80)), 35},
		{NewTranscriptCompleteEvent(), 40},
		{NewAnalysisStartEvent(), 40},
		{NewTokenEvent("a", floatPtr(50)), 68}, // 40 + round(55*0.50)
		{NewAnalysisCompleteEvent(), 95},
		{NewCompleteEvent(nil), 100},
	}

	for i, tt := range tests {
		out := s.Apply(tt.event)
		if out.Progress != tt.want {
			t.Errorf("event %d (%v): expected progress %d, got %d", i, tt.event.Type, tt.want, out.Progress)
		}
	}
}

func TestProgressNeverRegresses(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())
	s.Apply(NewMetadataEvent(VideoMetadata{Title: "t"}))
	s.Apply(NewTranscriptEvent(floatPtr(80)))

	before := s.Snapshot().Progress
	// A lower fraction must not move progress backwards.
	out := s.Apply(NewTranscriptEvent(floatPtr(10)))
	if out.Progress < before {
		t.Errorf("progress regressed: %d -> %d", before, out.Progress)
	}
}

// TestProgressMonotonicityProperty checks that over any random prefix of
// a valid event order with random fractions, observed progress never
// decreases.
func TestProgressMonotonicityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("progress is non-decreasing", prop.ForAll(
		func(fractions []float64, cut int) bool {
			events := []Event{
				NewConnectedEvent(),
				NewMetadataEvent(VideoMetadata{Title: "t"}),
			}
			for _, f := range fractions {
				frac := f
				events = append(events, NewTranscriptEvent(&frac))
			}
			events = append(events,
				NewTranscriptCompleteEvent(),
				NewAnalysisStartEvent(),
			)
			for _, f := range fractions {
				frac := f
				events = append(events, NewTokenEvent("x", &frac))
			}
			events = append(events,
				NewAnalysisCompleteEvent(),
				NewCompleteEvent(nil),
			)

			if cut < 0 {
				cut = -cut
			}
			cut = cut % (len(events) + 1)
			events = events[:cut]

			s := NewSession("prop")
			s.Begin(time.Now())
			last := 0
			for _, ev := range events {
				out := s.Apply(ev)
				if out.Progress < last {
					return false
				}
				last = out.Progress
			}
			// 100 is reached only by the complete event.
			if last == 100 && (len(events) == 0 || events[len(events)-1].Type != EventComplete) {
				return false
			}
			return true
		},
		gen.SliceOfN(4, gen.Float64Range(0, 100)),
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestCancelRun(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())

	out := s.CancelRun(time.Now())
	if !out.Applied || out.Status != StatusCancelled {
		t.Fatalf("expected cancelled status, got %+v", out)
	}

	// Cancelled is terminal; nothing moves afterwards.
	if out := s.Apply(NewTokenEvent("x", nil)); out.Applied {
		t.Error("expected events after cancel to be ignored")
	}
	if out := s.CancelRun(time.Now()); out.Applied {
		t.Error("expected second cancel to be a no-op")
	}
}

func TestPauseAndResume(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())
	s.Apply(NewMetadataEvent(VideoMetadata{Title: "t"}))

	out := s.Pause(time.Now())
	if !out.Applied || out.Status != StatusPaused {
		t.Fatalf("expected paused, got %+v", out)
	}

	// Resuming always re-enters analyzing regardless of the pre-pause
	// status.
	out = s.ResumeToAnalyzing(time.Now())
	if !out.Applied || out.Status != StatusAnalyzing {
		t.Fatalf("expected analyzing after resume, got %+v", out)
	}
}

func TestPauseGuards(t *testing.T) {
	s := NewSession("run-1")
	if out := s.Pause(time.Now()); out.Applied {
		t.Error("expected Pause on idle to be a no-op")
	}

	s.Begin(time.Now())
	s.Apply(NewErrorEvent("X", "boom", false))
	if out := s.Pause(time.Now()); out.Applied {
		t.Error("expected Pause on terminal to be a no-op")
	}
}

func TestTick(t *testing.T) {
	s := NewSession("run-1")
	start := time.Now()
	s.Begin(start)

	d := s.Tick(start.Add(3 * time.Second))
	if d != 3*time.Second {
		t.Errorf("expected duration 3s, got %v", d)
	}

	// Ticking continues while paused: elapsed time, not time working.
	s.Pause(start.Add(4 * time.Second))
	d = s.Tick(start.Add(5 * time.Second))
	if d != 5*time.Second {
		t.Errorf("expected duration 5s while paused, got %v", d)
	}

	// Frozen at the terminal transition.
	s.CancelRun(start.Add(6 * time.Second))
	d = s.Tick(start.Add(60 * time.Second))
	if d != 6*time.Second {
		t.Errorf("expected duration frozen at 6s, got %v", d)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())

	snap := s.Snapshot()
	snap.Steps[StepConnect].Status = StepStatusPending

	if s.Snapshot().Steps[StepConnect].Status != StepStatusComplete {
		t.Error("mutating a snapshot must not affect the session")
	}
}

func TestTransitionHistory(t *testing.T) {
	s := startedSession()
	s.Apply(NewConnectedEvent())
	s.Apply(NewMetadataEvent(VideoMetadata{Title: "t"}))

	snap := s.Snapshot()
	if len(snap.Transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(snap.Transitions))
	}
	if snap.Transitions[0].From != StatusIdle || snap.Transitions[0].To != StatusConnecting {
		t.Errorf("unexpected first transition: %+v", snap.Transitions[0])
	}
	if snap.Transitions[1].To != StatusMetadata {
		t.Errorf("unexpected second transition: %+v", snap.Transitions[1])
	}
}
