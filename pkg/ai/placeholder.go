package ai

import (
	"context"
	"fmt"
	"strings"
)

// SourcePlaceholder marks answers produced without a model behind them.
const SourcePlaceholder = "placeholder"

// PlaceholderTutor echoes the question back. It keeps the tutor endpoint usable when no
// model provider is configured.
type PlaceholderTutor struct{}

// NewPlaceholderTutor constructs the fallback tutor.
func NewPlaceholderTutor() *PlaceholderTutor {
	return &PlaceholderTutor{}
}

// Ask returns "AI answer for: <question>".
func (PlaceholderTutor) Ask(ctx context.Context, question string) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question is required")
	}

	return Answer{
		Question: question,
		Answer:   fmt.Sprintf("AI answer for: %s", question),
		Source:   SourcePlaceholder,
	}, nil
}
