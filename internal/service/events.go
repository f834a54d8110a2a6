package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/middleware"
)

// Quiz lifecycle events.
const (
	EventSubmissionRecorded = "submission.recorded"
	EventSubmissionGraded   = "submission.graded"
	EventQuizDeleted        = "quiz.deleted"
)

// QuizEvent is the payload published for quiz lifecycle changes.
type QuizEvent struct {
	Type         string    `json:"type"`
	QuizID       uint      `json:"quiz_id"`
	SubmissionID uint      `json:"submission_id,omitempty"`
	StudentID    uint      `json:"student_id,omitempty"`
	ActorID      uint      `json:"actor_id,omitempty"`
	Trigger      string    `json:"trigger,omitempty"`
	Score        *float64  `json:"score,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventPublisher fans quiz events out to other services.
type EventPublisher interface {
	Publish(ctx context.Context, event QuizEvent)
}

type natsEventPublisher struct {
	conn   *nats.Conn
	prefix string
	logger zerolog.Logger
}

// NewEventPublisher publishes on <prefix>.<event type>. A nil connection disables publishing.
func NewEventPublisher(conn *nats.Conn, prefix string, logger zerolog.Logger) EventPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "gema.quiz"
	}
	return &natsEventPublisher{
		conn:   conn,
		prefix: prefix,
		logger: logger.With().Str("component", "quiz_events").Logger(),
	}
}

func (p *natsEventPublisher) Publish(ctx context.Context, event QuizEvent) {
	if p == nil || p.conn == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("event", event.Type).Msg("failed to encode quiz event")
		return
	}

	msg := nats.NewMsg(p.prefix + "." + event.Type)
	msg.Data = payload
	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		msg.Header.Set(middleware.HeaderCorrelationID, id)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		p.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("failed to publish quiz event")
	}
}
