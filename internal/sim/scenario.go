// Package sim is a scripted stand-in for the recap analysis backend. It
// plays a scenario back as the SSE stream, with optional failure
// injection, so the client stack can be exercised end to end without a
// real analysis service.
package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lumenvid/recap/internal/domain"
)

// ScriptEvent is one scripted record on the stream.
type ScriptEvent struct {
	// Type is the wire event name.
	Type string `yaml:"type"`
	// DelayMS is how long to wait before emitting this event.
	DelayMS int `yaml:"delay_ms"`
	// Data is the JSON payload; empty means a bare record.
	Data map[string]any `yaml:"data,omitempty"`
	// Disconnect drops the connection abruptly instead of emitting the
	// event, exercising the client's reconnect path mid-stream.
	Disconnect bool `yaml:"disconnect,omitempty"`
}

// Scenario is one scripted analysis stream.
type Scenario struct {
	Name string `yaml:"name"`
	// Failures makes the first N connection attempts per video fail with
	// a 503 before any event is sent.
	Failures int           `yaml:"failures"`
	Events   []ScriptEvent `yaml:"events"`
}

func (s *Scenario) Validate() error {
	if len(s.Events) == 0 {
		return fmt.Errorf("scenario %q has no events", s.Name)
	}
	if s.Failures < 0 {
		return fmt.Errorf("scenario %q: failures must not be negative", s.Name)
	}
	for i, ev := range s.Events {
		if ev.Disconnect {
			continue
		}
		if _, ok := domain.ParseEventType(ev.Type); !ok {
			return fmt.Errorf("scenario %q: event %d has unknown type %q", s.Name, i, ev.Type)
		}
		if ev.DelayMS < 0 {
			return fmt.Errorf("scenario %q: event %d has negative delay", s.Name, i)
		}
	}
	return nil
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DefaultScenario covers the full happy path: connect, metadata,
// transcript, a short token stream, and completion.
func DefaultScenario() *Scenario {
	return &Scenario{
		Name: "default",
		Events: []ScriptEvent{
			{Type: "connected", DelayMS: 50},
			{Type: "metadata", DelayMS: 100, Data: map[string]any{
				"title":            "How Rockets Work",
				"channel":          "Everyday Physics",
				"duration_seconds": 843,
				"language":         "en",
			}},
			{Type: "transcript", DelayMS: 150, Data: map[string]any{"progress": 40}},
			{Type: "transcript", DelayMS: 150, Data: map[string]any{"progress": 85}},
			{Type: "transcript_complete", DelayMS: 100},
			{Type: "analysis_start", DelayMS: 50},
			{Type: "token", DelayMS: 80, Data: map[string]any{"token": "Rockets ", "progress": 10}},
			{Type: "token", DelayMS: 80, Data: map[string]any{"token": "push ", "progress": 30}},
			{Type: "heartbeat", DelayMS: 40},
			{Type: "token", DelayMS: 80, Data: map[string]any{"token": "mass ", "progress": 55}},
			{Type: "token", DelayMS: 80, Data: map[string]any{"token": "backwards ", "progress": 75}},
			{Type: "token", DelayMS: 80, Data: map[string]any{"token": "to move forward.", "progress": 95}},
			{Type: "analysis_complete", DelayMS: 60},
			{Type: "complete", DelayMS: 60, Data: map[string]any{"summary_id": 42}},
		},
	}
}
