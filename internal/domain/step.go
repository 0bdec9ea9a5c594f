package domain

import "time"

type StepID int

const (
	StepConnect StepID = iota
	StepMetadata
	StepTranscript
	StepAnalysis
	StepComplete
)

func (s StepID) String() string {
	switch s {
	case StepConnect:
		return "connect"
	case StepMetadata:
		return "metadata"
	case StepTranscript:
		return "transcript"
	case StepAnalysis:
		return "analysis"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Fixed per-step weights; they sum to 100.
var stepWeights = [...]int{5, 10, 25, 55, 5}

func (s StepID) Weight() int {
	if s < StepConnect || s > StepComplete {
		return 0
	}
	return stepWeights[s]
}

type StepStatus int

const (
	StepStatusPending StepStatus = iota
	StepStatusActive
	StepStatusComplete
	StepStatusError
)

func (s StepStatus) String() string {
	switch s {
	case StepStatusPending:
		return "pending"
	case StepStatusActive:
		return "active"
	case StepStatusComplete:
		return "complete"
	case StepStatusError:
		return "error"
	default:
		return "unknown"
	}
}

type Step struct {
	ID          StepID
	Status      StepStatus
	Weight      int
	StartedAt   time.Time
	CompletedAt time.Time
}

func newSteps() []Step {
	ids := []StepID{StepConnect, StepMetadata, StepTranscript, StepAnalysis, StepComplete}
	steps := make([]Step, len(ids))
	for i, id := range ids {
		steps[i] = Step{ID: id, Status: StepStatusPending, Weight: id.Weight()}
	}
	return steps
}
