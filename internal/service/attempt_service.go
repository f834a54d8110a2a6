package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/observability"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

const expireBatchSize = 100

// SubmitInput is what a student hands in. Answers is nil when the body carried none.
type SubmitInput struct {
	Answers  models.AnswerSet
	FilePath string
	Forced   bool
}

// SubmitResult is the submission a submit call resolved to.
type SubmitResult struct {
	Submission  models.QuizSubmission
	Duplicate   bool
	TotalPoints int
}

// AttemptService is the delivery and timer controller.
type AttemptService interface {
	Start(ctx context.Context, quizID uint, actor Principal) (dto.AttemptResponse, error)
	SaveAnswers(ctx context.Context, quizID uint, answers models.AnswerSet, actor Principal) (dto.AttemptResponse, error)
	Submit(ctx context.Context, quizID uint, input SubmitInput, actor Principal) (SubmitResult, error)
	ExpireOverdue(ctx context.Context, reference time.Time) (int, error)
	Run(ctx context.Context, interval time.Duration)
}

type attemptService struct {
	quizzes     repository.QuizRepository
	attempts    repository.AttemptRepository
	submissions repository.SubmissionRepository
	recorder    SubmissionRecorder
	documents   DocumentService
	grace       time.Duration
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewAttemptService constructs the delivery controller. grace is how long after the deadline
// an explicit submit still counts as the student's own.
func NewAttemptService(
	quizzes repository.QuizRepository,
	attempts repository.AttemptRepository,
	submissions repository.SubmissionRepository,
	recorder SubmissionRecorder,
	documents DocumentService,
	grace time.Duration,
	logger zerolog.Logger,
) AttemptService {
	if grace < 0 {
		grace = 0
	}
	return &attemptService{
		quizzes:     quizzes,
		attempts:    attempts,
		submissions: submissions,
		recorder:    recorder,
		documents:   documents,
		grace:       grace,
		logger:      logger.With().Str("component", "attempt_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-quiz-api/internal/service/attempt"),
		now:         time.Now,
	}
}

func (s *attemptService) Start(ctx context.Context, quizID uint, actor Principal) (dto.AttemptResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.start")
	span.SetAttributes(
		attribute.Int64("attempt.quiz_id", int64(quizID)),
		attribute.Int64("attempt.student_id", int64(actor.ID)),
	)
	defer span.End()

	if !actor.IsStudent() {
		return dto.AttemptResponse{}, ErrForbidden
	}

	now := s.now()
	quiz, err := loadQuiz(ctx, s.quizzes, quizID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quiz_lookup_failed")
		return dto.AttemptResponse{}, err
	}

	attempt, err := s.begin(ctx, quiz, actor.ID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start_rejected")
		return dto.AttemptResponse{}, err
	}

	return dto.NewAttemptResponse(attempt, now), nil
}

// begin applies the start rules and returns the new or resumed attempt.
func (s *attemptService) begin(ctx context.Context, quiz models.Quiz, studentID uint, now time.Time) (models.QuizAttempt, error) {
	if !quiz.IsActive {
		return models.QuizAttempt{}, ErrQuizInactive
	}

	existing, err := s.attempts.Get(ctx, quiz.ID, studentID)
	switch {
	case err == nil:
		if _, err := NextAttemptState(attemptStateOf(&existing), EventStart); err != nil {
			return models.QuizAttempt{}, err
		}
		return existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.QuizAttempt{}, err
	}

	if quiz.IsOverdue(now) {
		return models.QuizAttempt{}, ErrDeadlineExceeded
	}

	if _, err := s.submissions.GetByQuizAndStudent(ctx, quiz.ID, studentID); err == nil {
		return models.QuizAttempt{}, ErrAlreadySubmitted
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.QuizAttempt{}, err
	}

	state, err := NextAttemptState(AttemptNotStarted, EventStart)
	if err != nil {
		return models.QuizAttempt{}, err
	}

	attempt := models.QuizAttempt{
		QuizID:       quiz.ID,
		StudentID:    studentID,
		State:        string(state),
		StartedAt:    now,
		SavedAnswers: datatypes.NewJSONType(models.AnswerSet{}),
	}
	if limit := quiz.TimeLimit(); limit > 0 {
		deadline := now.Add(limit)
		attempt.Deadline = &deadline
	}

	created, err := s.attempts.Start(ctx, &attempt)
	if err != nil {
		return models.QuizAttempt{}, err
	}
	if !created {
		if _, err := NextAttemptState(attemptStateOf(&attempt), EventStart); err != nil {
			return models.QuizAttempt{}, err
		}
		return attempt, nil
	}

	observability.AttemptsStarted().Inc()
	s.logger.Info().Uint("quiz_id", quiz.ID).Uint("student_id", studentID).Msg("attempt started")
	return attempt, nil
}

func (s *attemptService) SaveAnswers(ctx context.Context, quizID uint, answers models.AnswerSet, actor Principal) (dto.AttemptResponse, error) {
	if !actor.IsStudent() {
		return dto.AttemptResponse{}, ErrForbidden
	}

	attempt, err := s.attempts.Get(ctx, quizID, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrAttemptNotFound
		}
		return dto.AttemptResponse{}, err
	}

	if _, err := NextAttemptState(attemptStateOf(&attempt), EventSave); err != nil {
		return dto.AttemptResponse{}, err
	}

	quiz, err := loadQuiz(ctx, s.quizzes, quizID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	if !quiz.IsActive {
		return dto.AttemptResponse{}, ErrQuizInactive
	}

	now := s.now()
	if s.pastGrace(attempt, now) {
		return dto.AttemptResponse{}, ErrDeadlineExceeded
	}

	if answers == nil {
		answers = models.AnswerSet{}
	}
	saved, err := s.attempts.SaveAnswers(ctx, attempt.ID, answers, now)
	if err != nil {
		return dto.AttemptResponse{}, err
	}
	if !saved {
		return dto.AttemptResponse{}, ErrAlreadySubmitted
	}

	attempt.SavedAnswers = datatypes.NewJSONType(answers)
	attempt.SavedAt = &now
	return dto.NewAttemptResponse(attempt, now), nil
}

// Submit finalizes the attempt. A submit without a started attempt starts one first. Past the
// deadline plus grace, or when the client reports the countdown fired, the submission is forced;
// a late submit always uses the answers last saved on the server.
func (s *attemptService) Submit(ctx context.Context, quizID uint, input SubmitInput, actor Principal) (result SubmitResult, err error) {
	ctx, span := s.tracer.Start(ctx, "attempt.submit")
	span.SetAttributes(
		attribute.Int64("attempt.quiz_id", int64(quizID)),
		attribute.Int64("attempt.student_id", int64(actor.ID)),
		attribute.Bool("attempt.forced", input.Forced),
	)
	defer span.End()

	handedOver := false
	totalPoints := 0
	defer func() {
		if !handedOver && input.FilePath != "" && s.documents != nil {
			s.documents.Remove(context.WithoutCancel(ctx), input.FilePath)
		}
		if err == nil {
			result.TotalPoints = totalPoints
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "submit_failed")
		}
	}()

	if !actor.IsStudent() {
		return SubmitResult{}, ErrForbidden
	}

	now := s.now()
	quiz, err := loadQuiz(ctx, s.quizzes, quizID)
	if err != nil {
		return SubmitResult{}, err
	}
	totalPoints = quiz.TotalPoints
	if quiz.IsInteractive() && input.FilePath != "" {
		return SubmitResult{}, errFileOnInteractive
	}

	if existing, err := s.submissions.GetByQuizAndStudent(ctx, quizID, actor.ID); err == nil {
		return SubmitResult{Submission: existing, Duplicate: true}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return SubmitResult{}, err
	}

	attempt, err := s.begin(ctx, quiz, actor.ID, now)
	if err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return s.existing(ctx, quizID, actor.ID)
		}
		return SubmitResult{}, err
	}

	event := EventSubmit
	trigger := models.SubmissionTriggerExplicit
	answers := input.Answers
	late := s.pastGrace(attempt, now)
	if late || input.Forced {
		event = EventExpire
		trigger = models.SubmissionTriggerForced
	}
	if late || answers == nil {
		answers = attempt.Answers()
	}
	if _, err := NextAttemptState(attemptStateOf(&attempt), event); err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return s.existing(ctx, quizID, actor.ID)
		}
		return SubmitResult{}, err
	}

	handedOver = true
	return s.finalize(ctx, attempt, RecordInput{
		QuizID:      quizID,
		StudentID:   actor.ID,
		Answers:     answers,
		FilePath:    input.FilePath,
		Trigger:     trigger,
		SubmittedAt: now,
	})
}

// ExpireOverdue force-submits every in-progress attempt whose deadline plus grace has passed,
// using the answers saved on the server. It returns how many submissions were recorded.
func (s *attemptService) ExpireOverdue(ctx context.Context, reference time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.expire_overdue")
	defer span.End()

	cutoff := reference.Add(-s.grace)
	attempts, err := s.attempts.ListExpired(ctx, cutoff, expireBatchSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_failed")
		return 0, err
	}

	recorded := 0
	for _, attempt := range attempts {
		if !attempt.Expired(cutoff) {
			continue
		}
		if _, err := NextAttemptState(attemptStateOf(&attempt), EventExpire); err != nil {
			continue
		}

		submittedAt := reference
		if attempt.Deadline != nil && submittedAt.Before(*attempt.Deadline) {
			submittedAt = *attempt.Deadline
		}

		result, err := s.finalize(ctx, attempt, RecordInput{
			QuizID:      attempt.QuizID,
			StudentID:   attempt.StudentID,
			Answers:     attempt.Answers(),
			Trigger:     models.SubmissionTriggerForced,
			SubmittedAt: submittedAt,
		})
		if err != nil {
			s.logger.Warn().Err(err).Uint("quiz_id", attempt.QuizID).Uint("student_id", attempt.StudentID).Msg("failed to expire attempt")
			continue
		}
		if !result.Duplicate {
			recorded++
		}
	}

	span.SetAttributes(attribute.Int("attempt.expired", recorded))
	return recorded, nil
}

// Run sweeps expired attempts every interval until ctx is cancelled.
func (s *attemptService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("attempt sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("attempt sweeper stopped")
			return
		case <-ticker.C:
			count, err := s.ExpireOverdue(ctx, s.now())
			if err != nil {
				s.logger.Error().Err(err).Msg("attempt sweep failed")
				continue
			}
			if count > 0 {
				s.logger.Info().Int("forced", count).Msg("expired attempts submitted")
			}
		}
	}
}

func (s *attemptService) finalize(ctx context.Context, attempt models.QuizAttempt, input RecordInput) (SubmitResult, error) {
	submission, err := s.recorder.Record(ctx, input)
	duplicate := IsDuplicate(err)
	if err != nil && !duplicate {
		return SubmitResult{}, err
	}

	marked, markErr := s.attempts.MarkSubmitted(ctx, attempt.ID, submission.ID, submission.Trigger, submission.SubmittedAt)
	if markErr != nil {
		s.logger.Warn().Err(markErr).Uint("attempt_id", attempt.ID).Msg("failed to close attempt")
	}
	if marked && submission.Trigger == models.SubmissionTriggerForced && !duplicate {
		observability.AttemptsForced().Inc()
	}

	return SubmitResult{Submission: submission, Duplicate: duplicate}, nil
}

func (s *attemptService) existing(ctx context.Context, quizID, studentID uint) (SubmitResult, error) {
	submission, err := s.submissions.GetByQuizAndStudent(ctx, quizID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SubmitResult{}, ErrAlreadySubmitted
		}
		return SubmitResult{}, err
	}
	return SubmitResult{Submission: submission, Duplicate: true}, nil
}

func (s *attemptService) pastGrace(attempt models.QuizAttempt, now time.Time) bool {
	return attempt.Deadline != nil && now.After(attempt.Deadline.Add(s.grace))
}
