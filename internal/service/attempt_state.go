package service

import (
	"errors"
	"fmt"

	"github.com/noah-isme/gema-quiz-api/internal/models"
)

// AttemptState is the delivery state of a quiz for one student.
type AttemptState string

// Attempt states. NotStarted is never stored; it is the absence of an attempt row.
const (
	AttemptNotStarted AttemptState = "not_started"
	AttemptInProgress AttemptState = AttemptState(models.AttemptStateInProgress)
	AttemptSubmitted  AttemptState = AttemptState(models.AttemptStateSubmitted)
)

// AttemptEvent drives a transition.
type AttemptEvent string

// Attempt events.
const (
	EventStart  AttemptEvent = "start"
	EventSave   AttemptEvent = "save"
	EventSubmit AttemptEvent = "submit"
	EventExpire AttemptEvent = "expire"
)

// ErrInvalidTransition indicates the event is not accepted in the current state.
var ErrInvalidTransition = errors.New("invalid attempt transition")

// NextAttemptState is the single transition function of the delivery controller.
//
//	not_started --start--> in_progress
//	in_progress --start|save--> in_progress
//	in_progress --submit|expire--> submitted
//	submitted   --expire--> submitted
//
// Any other event on a submitted attempt fails with ErrAlreadySubmitted.
func NextAttemptState(state AttemptState, event AttemptEvent) (AttemptState, error) {
	switch state {
	case AttemptNotStarted:
		if event == EventStart {
			return AttemptInProgress, nil
		}
		return state, fmt.Errorf("%w: %s before start", ErrInvalidTransition, event)
	case AttemptInProgress:
		switch event {
		case EventStart, EventSave:
			return AttemptInProgress, nil
		case EventSubmit, EventExpire:
			return AttemptSubmitted, nil
		}
	case AttemptSubmitted:
		if event == EventExpire {
			return AttemptSubmitted, nil
		}
		return AttemptSubmitted, ErrAlreadySubmitted
	}
	return state, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, event, state)
}

func attemptStateOf(attempt *models.QuizAttempt) AttemptState {
	if attempt == nil || attempt.ID == 0 {
		return AttemptNotStarted
	}
	return AttemptState(attempt.State)
}
