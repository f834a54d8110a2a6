package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// AttemptStateInProgress means the student is answering and the clock is running.
	AttemptStateInProgress = "in_progress"
	// AttemptStateSubmitted is terminal.
	AttemptStateSubmitted = "submitted"
)

// AnswerSet maps question IDs (as strings, matching JSON object keys) to the student's answer.
type AnswerSet map[string]string

// QuizAttempt tracks delivery of a quiz to one student.
type QuizAttempt struct {
	ID           uint                          `gorm:"primaryKey" json:"id"`
	QuizID       uint                          `gorm:"not null;uniqueIndex:idx_quiz_attempt_student" json:"quiz_id"`
	StudentID    uint                          `gorm:"not null;uniqueIndex:idx_quiz_attempt_student" json:"student_id"`
	State        string                        `gorm:"size:16;not null;index" json:"state"`
	StartedAt    time.Time                     `gorm:"not null" json:"started_at"`
	Deadline     *time.Time                    `gorm:"index" json:"deadline"`
	SavedAnswers datatypes.JSONType[AnswerSet] `json:"saved_answers"`
	SavedAt      *time.Time                    `json:"saved_at"`
	SubmissionID *uint                         `json:"submission_id"`
	SubmittedAt  *time.Time                    `json:"submitted_at"`
	Trigger      string                        `gorm:"size:16" json:"trigger"`
	CreatedAt    time.Time                     `json:"created_at"`
	UpdatedAt    time.Time                     `json:"updated_at"`
}

// Answers returns a copy of the last answers saved for the attempt.
func (a QuizAttempt) Answers() AnswerSet {
	saved := a.SavedAnswers.Data()
	answers := make(AnswerSet, len(saved))
	for key, value := range saved {
		answers[key] = value
	}
	return answers
}

// Expired reports whether the attempt deadline has passed at the reference time.
func (a QuizAttempt) Expired(reference time.Time) bool {
	return a.Deadline != nil && !reference.Before(*a.Deadline)
}
