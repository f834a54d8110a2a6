package ai

import "context"

// Answer is the reply produced for a student's question.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source"`
}

// Tutor answers free-form study questions.
type Tutor interface {
	Ask(ctx context.Context, question string) (Answer, error)
}
