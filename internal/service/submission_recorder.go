package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/observability"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

// RecordInput is a finalized answer set handed over by the delivery controller.
type RecordInput struct {
	QuizID      uint
	StudentID   uint
	Answers     models.AnswerSet
	FilePath    string
	Trigger     string
	SubmittedAt time.Time
}

// SubmissionRecorder persists exactly one submission per quiz and student.
type SubmissionRecorder interface {
	Record(ctx context.Context, input RecordInput) (models.QuizSubmission, error)
}

type submissionRecorder struct {
	quizzes     repository.QuizRepository
	submissions repository.SubmissionRepository
	documents   DocumentService
	events      EventPublisher
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionRecorder constructs the recorder.
func NewSubmissionRecorder(quizzes repository.QuizRepository, submissions repository.SubmissionRepository, documents DocumentService, events EventPublisher, logger zerolog.Logger) SubmissionRecorder {
	if events == nil {
		events = NewEventPublisher(nil, "", logger)
	}
	return &submissionRecorder{
		quizzes:     quizzes,
		submissions: submissions,
		documents:   documents,
		events:      events,
		logger:      logger.With().Str("component", "submission_recorder").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-quiz-api/internal/service/submission_recorder"),
		now:         time.Now,
	}
}

// Record snapshots the quiz's current questions, auto-grades multiple choice entries and
// inserts the submission. When a submission already exists it is returned together with
// ErrDuplicateSubmission. An uploaded answer file is removed whenever it does not end up
// referenced by the new submission.
func (r *submissionRecorder) Record(ctx context.Context, input RecordInput) (submission models.QuizSubmission, err error) {
	ctx, span := r.tracer.Start(ctx, "submission.record")
	span.SetAttributes(
		attribute.Int64("submission.quiz_id", int64(input.QuizID)),
		attribute.Int64("submission.student_id", int64(input.StudentID)),
		attribute.String("submission.trigger", input.Trigger),
	)
	defer span.End()

	created := false
	defer func() {
		if !created && input.FilePath != "" && r.documents != nil {
			r.documents.Remove(context.WithoutCancel(ctx), input.FilePath)
		}
	}()

	quiz, err := loadQuiz(ctx, r.quizzes, input.QuizID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quiz_lookup_failed")
		return models.QuizSubmission{}, err
	}
	if !quiz.IsActive {
		span.SetStatus(codes.Error, "quiz_inactive")
		return models.QuizSubmission{}, ErrQuizInactive
	}

	submittedAt := input.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = r.now()
	}
	trigger := input.Trigger
	if trigger == "" {
		trigger = models.SubmissionTriggerExplicit
	}

	submission = models.QuizSubmission{
		QuizID:      quiz.ID,
		StudentID:   input.StudentID,
		Kind:        quiz.Kind,
		Trigger:     trigger,
		SubmittedAt: submittedAt,
	}

	switch quiz.Kind {
	case models.QuizKindInteractive:
		if strings.TrimSpace(input.FilePath) != "" {
			return models.QuizSubmission{}, errFileOnInteractive
		}
		submission.Entries = BuildGradeEntries(quiz.Questions, input.Answers)
		if score, complete := ScoreFromEntries(submission.Entries); complete {
			submission.Score = &score
			gradedAt := submittedAt
			submission.GradedAt = &gradedAt
		}
	case models.QuizKindDocument:
		submission.FilePath = strings.TrimSpace(input.FilePath)
		if submission.FilePath == "" && trigger == models.SubmissionTriggerExplicit {
			return models.QuizSubmission{}, validationError("file", "document quizzes are answered with a file")
		}
	}

	created, err = r.submissions.CreateOnce(ctx, &submission)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		r.logger.Error().Err(err).Uint("quiz_id", quiz.ID).Uint("student_id", input.StudentID).Msg("failed to record submission")
		return models.QuizSubmission{}, err
	}

	if !created {
		observability.DuplicateSubmissions().WithLabelValues(quiz.Kind).Inc()
		span.SetAttributes(attribute.Bool("submission.duplicate", true))
		r.logger.Info().Uint("quiz_id", quiz.ID).Uint("student_id", input.StudentID).Uint("submission_id", submission.ID).Msg("submission already recorded")
		return submission, ErrDuplicateSubmission
	}

	observability.SubmissionsRecorded().WithLabelValues(quiz.Kind, trigger).Inc()
	span.SetAttributes(attribute.Int64("submission.id", int64(submission.ID)))
	span.SetStatus(codes.Ok, "recorded")
	r.logger.Info().
		Uint("quiz_id", quiz.ID).
		Uint("student_id", input.StudentID).
		Uint("submission_id", submission.ID).
		Str("trigger", trigger).
		Int("entries", len(submission.Entries)).
		Msg("submission recorded")

	r.events.Publish(ctx, QuizEvent{
		Type:         EventSubmissionRecorded,
		QuizID:       quiz.ID,
		SubmissionID: submission.ID,
		StudentID:    input.StudentID,
		Trigger:      trigger,
		Score:        submission.Score,
		OccurredAt:   submittedAt,
	})

	return submission, nil
}

// IsDuplicate reports whether err means the submission already existed.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateSubmission)
}
