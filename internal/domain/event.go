package domain

import "time"

type EventType int

const (
	EventConnected EventType = iota
	EventMetadata
	EventTranscript
	EventTranscriptComplete
	EventAnalysisStart
	EventToken
	EventAnalysisComplete
	EventComplete
	EventError
	EventHeartbeat
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventMetadata:
		return "metadata"
	case EventTranscript:
		return "transcript"
	case EventTranscriptComplete:
		return "transcript_complete"
	case EventAnalysisStart:
		return "analysis_start"
	case EventToken:
		return "token"
	case EventAnalysisComplete:
		return "analysis_complete"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	case EventHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// ParseEventType maps a wire event name to its EventType. The second
// return is false for names this client does not know.
func ParseEventType(name string) (EventType, bool) {
	switch name {
	case "connected":
		return EventConnected, true
	case "metadata":
		return EventMetadata, true
	case "transcript":
		return EventTranscript, true
	case "transcript_complete":
		return EventTranscriptComplete, true
	case "analysis_start":
		return EventAnalysisStart, true
	case "token":
		return EventToken, true
	case "analysis_complete":
		return EventAnalysisComplete, true
	case "complete":
		return EventComplete, true
	case "error":
		return EventError, true
	case "heartbeat":
		return EventHeartbeat, true
	default:
		return 0, false
	}
}

type Event struct {
	Type EventType
	At   time.Time
	Data any
}

type MetadataData struct {
	Meta VideoMetadata
}

type TranscriptData struct {
	Progress *float64
}

type TokenData struct {
	Token    string
	Progress *float64
}

type CompleteData struct {
	SummaryID *int64
}

type ErrorData struct {
	Code      string
	Message   string
	Retryable bool
}

func NewConnectedEvent() Event {
	return Event{Type: EventConnected, At: time.Now()}
}

func NewMetadataEvent(meta VideoMetadata) Event {
	return Event{
		Type: EventMetadata,
		At:   time.Now(),
		Data: MetadataData{Meta: meta},
	}
}

func NewTranscriptEvent(progress *float64) Event {
	return Event{
		Type: EventTranscript,
		At:   time.Now(),
		Data: TranscriptData{Progress: progress},
	}
}

func NewTranscriptCompleteEvent() Event {
	return Event{Type: EventTranscriptComplete, At: time.Now()}
}

func NewAnalysisStartEvent() Event {
	return Event{Type: EventAnalysisStart, At: time.Now()}
}

func NewTokenEvent(token string, progress *float64) Event {
	return Event{
		Type: EventToken,
		At:   time.Now(),
		Data: TokenData{Token: token, Progress: progress},
	}
}

func NewAnalysisCompleteEvent() Event {
	return Event{Type: EventAnalysisComplete, At: time.Now()}
}

func NewCompleteEvent(summaryID *int64) Event {
	return Event{
		Type: EventComplete,
		At:   time.Now(),
		Data: CompleteData{SummaryID: summaryID},
	}
}

func NewErrorEvent(code, message string, retryable bool) Event {
	return Event{
		Type: EventError,
		At:   time.Now(),
		Data: ErrorData{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

func NewHeartbeatEvent() Event {
	return Event{Type: EventHeartbeat, At: time.Now()}
}
