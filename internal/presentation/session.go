package presentation

import (
	"github.com/lumenvid/recap/internal/domain"
	apiTypes "github.com/lumenvid/recap/pkg/api"
)

func SessionSnapshotFromDomain(s domain.SessionSnapshot) apiTypes.SessionSnapshot {
	steps := make([]apiTypes.StepSnapshot, len(s.Steps))
	for i, st := range s.Steps {
		steps[i] = apiTypes.StepSnapshot{
			ID:          apiTypes.StepID(st.ID.String()),
			Status:      apiTypes.StepStatus(st.Status.String()),
			Weight:      st.Weight,
			StartedAt:   st.StartedAt,
			CompletedAt: st.CompletedAt,
		}
	}

	var meta *apiTypes.VideoMetadata
	if s.Metadata != nil {
		meta = &apiTypes.VideoMetadata{
			Title:           s.Metadata.Title,
			Channel:         s.Metadata.Channel,
			DurationSeconds: s.Metadata.DurationSeconds,
			Language:        s.Metadata.Language,
			ThumbnailURL:    s.Metadata.ThumbnailURL,
		}
	}

	var sessionErr *apiTypes.SessionError
	if s.Err != nil {
		sessionErr = &apiTypes.SessionError{
			Code:      s.Err.Code,
			Message:   s.Err.Message,
			Retryable: s.Err.Retryable,
		}
	}

	return apiTypes.SessionSnapshot{
		RunID:           s.RunID,
		Status:          apiTypes.SessionStatus(s.Status.String()),
		Steps:           steps,
		Progress:        s.Progress,
		Text:            s.Text,
		Metadata:        meta,
		Error:           sessionErr,
		SummaryID:       s.SummaryID,
		StartedAt:       s.StartedAt,
		DurationSeconds: int64(s.Duration.Seconds()),
	}
}
