package sse

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lumenvid/recap/internal/domain"
	"github.com/lumenvid/recap/pkg/api"
)

var (
	// ErrUnknownEventType marks a record whose event name this client does
	// not know. Callers treat it as a no-op for forward compatibility with
	// server-added event types.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrMalformedPayload marks a record whose data could not be decoded
	// into the payload its event type requires. One malformed frame never
	// aborts a session; callers log and discard.
	ErrMalformedPayload = errors.New("malformed event payload")
)

// DecodeError wraps a payload decode failure with the record it came from.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q event: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func malformed(rec Record, err error) (domain.Event, error) {
	return domain.Event{}, &DecodeError{
		Type: rec.Type,
		Err:  fmt.Errorf("%w: %w", ErrMalformedPayload, err),
	}
}

// Decode maps an assembled record to a typed domain event.
func Decode(rec Record) (domain.Event, error) {
	typ, ok := domain.ParseEventType(rec.Type)
	if !ok {
		return domain.Event{}, fmt.Errorf("%q: %w", rec.Type, ErrUnknownEventType)
	}

	switch typ {
	case domain.EventConnected:
		if rec.Data != "" {
			var p api.ConnectedPayload
			if err := json.Unmarshal([]byte(rec.Data), &p); err != nil {
				return malformed(rec, err)
			}
		}
		return domain.NewConnectedEvent(), nil

	case domain.EventMetadata:
		var p api.VideoMetadata
		if err := unmarshalRequired(rec.Data, &p); err != nil {
			return malformed(rec, err)
		}
		return domain.NewMetadataEvent(domain.VideoMetadata{
			Title:           p.Title,
			Channel:         p.Channel,
			DurationSeconds: p.DurationSeconds,
			Language:        p.Language,
			ThumbnailURL:    p.ThumbnailURL,
		}), nil

	case domain.EventTranscript:
		var p api.TranscriptPayload
		if err := unmarshalRequired(rec.Data, &p); err != nil {
			return malformed(rec, err)
		}
		return domain.NewTranscriptEvent(p.Progress), nil

	case domain.EventTranscriptComplete:
		return domain.NewTranscriptCompleteEvent(), nil

	case domain.EventAnalysisStart:
		return domain.NewAnalysisStartEvent(), nil

	case domain.EventToken:
		// The token key must be present; an empty payload carries nothing
		// to append and indicates a broken frame.
		var p struct {
			Token    *string  `json:"token"`
			Progress *float64 `json:"progress"`
		}
		if err := unmarshalRequired(rec.Data, &p); err != nil {
			return malformed(rec, err)
		}
		if p.Token == nil {
			return malformed(rec, errors.New("missing token field"))
		}
		return domain.NewTokenEvent(*p.Token, p.Progress), nil

	case domain.EventAnalysisComplete:
		return domain.NewAnalysisCompleteEvent(), nil

	case domain.EventComplete:
		var p api.CompletePayload
		if rec.Data != "" {
			if err := json.Unmarshal([]byte(rec.Data), &p); err != nil {
				return malformed(rec, err)
			}
		}
		return domain.NewCompleteEvent(p.SummaryID), nil

	case domain.EventError:
		var p api.ErrorPayload
		if err := unmarshalRequired(rec.Data, &p); err != nil {
			return malformed(rec, err)
		}
		if p.Code == "" && p.Message == "" {
			return malformed(rec, errors.New("error event carries neither code nor message"))
		}
		return domain.NewErrorEvent(p.Code, p.Message, p.Retryable), nil

	case domain.EventHeartbeat:
		return domain.NewHeartbeatEvent(), nil

	default:
		return domain.Event{}, fmt.Errorf("%q: %w", rec.Type, ErrUnknownEventType)
	}
}

func unmarshalRequired(data string, v any) error {
	if data == "" {
		return errors.New("empty payload")
	}
	return json.Unmarshal([]byte(data), v)
}
