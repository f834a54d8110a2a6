package dto

import (
	"time"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// SaveAnswersRequest carries the client's current answers keyed by question id.
type SaveAnswersRequest struct {
	Answers map[string]string `json:"answers" validate:"required"`
}

// AttemptResponse describes the delivery state of a quiz for the calling student.
type AttemptResponse struct {
	ID               uint              `json:"id"`
	QuizID           uint              `json:"quiz_id"`
	State            string            `json:"state"`
	StartedAt        time.Time         `json:"started_at"`
	Deadline         *time.Time        `json:"deadline"`
	RemainingSeconds *int64            `json:"remaining_seconds"`
	SavedAnswers     map[string]string `json:"saved_answers"`
	SavedAt          *time.Time        `json:"saved_at"`
	SubmissionID     *uint             `json:"submission_id"`
}

// NewAttemptResponse converts an attempt, computing the remaining time at reference.
func NewAttemptResponse(model models.QuizAttempt, reference time.Time) AttemptResponse {
	response := AttemptResponse{
		ID:           model.ID,
		QuizID:       model.QuizID,
		State:        model.State,
		StartedAt:    model.StartedAt,
		Deadline:     model.Deadline,
		SavedAnswers: model.Answers(),
		SavedAt:      model.SavedAt,
		SubmissionID: model.SubmissionID,
	}

	if model.Deadline != nil {
		remaining := int64(model.Deadline.Sub(reference).Seconds())
		if remaining < 0 {
			remaining = 0
		}
		response.RemainingSeconds = &remaining
	}

	return response
}
