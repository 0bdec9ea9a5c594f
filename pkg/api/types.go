package api

import (
	"encoding/json"
	"time"
)

// EventType names one kind of record on the analysis stream.
type EventType string

const (
	EventConnected          EventType = "connected"
	EventMetadata           EventType = "metadata"
	EventTranscript         EventType = "transcript"
	EventTranscriptComplete EventType = "transcript_complete"
	EventAnalysisStart      EventType = "analysis_start"
	EventToken              EventType = "token"
	EventAnalysisComplete   EventType = "analysis_complete"
	EventComplete           EventType = "complete"
	EventError              EventType = "error"
	EventHeartbeat          EventType = "heartbeat"
)

type SessionStatus string

const (
	StatusIdle       SessionStatus = "idle"
	StatusConnecting SessionStatus = "connecting"
	StatusMetadata   SessionStatus = "metadata"
	StatusTranscript SessionStatus = "transcript"
	StatusAnalyzing  SessionStatus = "analyzing"
	StatusComplete   SessionStatus = "complete"
	StatusError      SessionStatus = "error"
	StatusPaused     SessionStatus = "paused"
	StatusCancelled  SessionStatus = "cancelled"
)

type StepID string

const (
	StepConnect    StepID = "connect"
	StepMetadata   StepID = "metadata"
	StepTranscript StepID = "transcript"
	StepAnalysis   StepID = "analysis"
	StepComplete   StepID = "complete"
)

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepActive  StepStatus = "active"
	StepDone    StepStatus = "complete"
	StepFailed  StepStatus = "error"
)

// AnalysisMode selects the register the summary is written in.
type AnalysisMode string

const (
	ModeAccessible AnalysisMode = "accessible"
	ModeStandard   AnalysisMode = "standard"
	ModeExpert     AnalysisMode = "expert"
)

func (m AnalysisMode) Valid() bool {
	switch m {
	case ModeAccessible, ModeStandard, ModeExpert:
		return true
	}
	return false
}

// AnalyzeRequest carries the parameters of the session open request.
type AnalyzeRequest struct {
	VideoID       string       `json:"video_id"`
	Mode          AnalysisMode `json:"mode"`
	Language      string       `json:"language"`
	Model         string       `json:"model"`
	WebEnrichment bool         `json:"web_enrichment"`
}

// Event payloads, one per wire event type that carries data.

type ConnectedPayload struct {
	SessionID string `json:"session_id,omitempty"`
}

type VideoMetadata struct {
	Title           string `json:"title"`
	Channel         string `json:"channel,omitempty"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
	Language        string `json:"language,omitempty"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`
}

type TranscriptPayload struct {
	Progress *float64 `json:"progress,omitempty"`
}

type TokenPayload struct {
	Token    string   `json:"token"`
	Progress *float64 `json:"progress,omitempty"`
}

type CompletePayload struct {
	SummaryID *int64 `json:"summary_id,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// SessionError is the terminal error triple surfaced to consumers.
type SessionError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// CompleteResult is the payload handed to OnComplete.
type CompleteResult struct {
	SummaryID *int64         `json:"summary_id,omitempty"`
	Text      string         `json:"text"`
	Metadata  *VideoMetadata `json:"metadata,omitempty"`
}

type StepSnapshot struct {
	ID          StepID     `json:"id"`
	Status      StepStatus `json:"status"`
	Weight      int        `json:"weight"`
	StartedAt   time.Time  `json:"started_at,omitzero"`
	CompletedAt time.Time  `json:"completed_at,omitzero"`
}

// SessionSnapshot is the read-only view of a session, safe to render from
// at any frequency.
type SessionSnapshot struct {
	RunID           string         `json:"run_id"`
	Status          SessionStatus  `json:"status"`
	Steps           []StepSnapshot `json:"steps"`
	Progress        int            `json:"progress"`
	Text            string         `json:"text"`
	Metadata        *VideoMetadata `json:"metadata,omitempty"`
	Error           *SessionError  `json:"error,omitempty"`
	SummaryID       *int64         `json:"summary_id,omitempty"`
	StartedAt       time.Time      `json:"started_at,omitzero"`
	DurationSeconds int64          `json:"duration_seconds"`
}

// MonitorEvent is the envelope the simulator's websocket hub mirrors every
// emitted record into.
type MonitorEvent struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
