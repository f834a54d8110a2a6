package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/observability"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

// GradingService applies manual grades from the owning teacher.
type GradingService interface {
	Grade(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest, actor Principal) (dto.SubmissionResponse, error)
}

type gradingService struct {
	quizzes     repository.QuizRepository
	submissions repository.SubmissionRepository
	guard       courseGuard
	validator   *validator.Validate
	activity    ActivityRecorder
	events      EventPublisher
	policy      *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(
	quizzes repository.QuizRepository,
	courses repository.CourseRepository,
	submissions repository.SubmissionRepository,
	validate *validator.Validate,
	activity ActivityRecorder,
	events EventPublisher,
	logger zerolog.Logger,
) GradingService {
	if events == nil {
		events = NewEventPublisher(nil, "", logger)
	}
	return &gradingService{
		quizzes:     quizzes,
		submissions: submissions,
		guard:       courseGuard{courses: courses},
		validator:   validate,
		activity:    activity,
		events:      events,
		policy:      bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

// Grade stores essay awards and feedback. Awards for multiple choice entries are ignored and
// essay awards are clamped to [0, points]. The score is written only once every entry carries
// an award; grading time, grader and feedback are written on every call.
func (s *gradingService) Grade(ctx context.Context, submissionID uint, payload dto.GradeSubmissionRequest, actor Principal) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-quiz-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.update")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	quiz, err := s.guard.ownedQuiz(ctx, s.quizzes, submission.QuizID, actor)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "authorization_failed")
		if errors.Is(err, ErrQuizNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	awards, err := collectAwards(submission, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	var feedback *string
	if payload.Feedback != nil {
		cleaned := strings.TrimSpace(s.policy.Sanitize(*payload.Feedback))
		feedback = &cleaned
	}

	gradedAt := s.now()
	graderID := actor.ID
	updated, err := s.submissions.ApplyGrades(ctx, submissionID, func(locked *models.QuizSubmission) error {
		for i := range locked.Entries {
			entry := &locked.Entries[i]
			award, ok := awards[entry.QuestionID]
			if !ok || entry.IsMultipleChoice() {
				continue
			}
			clamped := ClampAward(award, entry.Points)
			entry.PointsAwarded = &clamped
		}

		if locked.Kind == models.QuizKindDocument {
			if payload.Score != nil {
				score := ClampAward(*payload.Score, quiz.TotalPoints)
				locked.Score = &score
			}
		} else if score, complete := ScoreFromEntries(locked.Entries); complete {
			locked.Score = &score
		} else {
			locked.Score = nil
		}

		locked.GradedAt = &gradedAt
		locked.GradedBy = &graderID
		if feedback != nil {
			locked.Feedback = *feedback
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist_failed")
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("failed to apply grades")
		return dto.SubmissionResponse{}, err
	}

	outcome := "partial"
	if updated.IsGraded() {
		outcome = "complete"
	}
	observability.Gradings().WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("grading.outcome", outcome))
	span.SetStatus(codes.Ok, "graded")

	metadata := map[string]interface{}{
		"submission_id": updated.ID,
		"student_id":    updated.StudentID,
		"awards":        len(awards),
		"outcome":       outcome,
	}
	if updated.Score != nil {
		metadata["score"] = *updated.Score
	}
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "submission.graded",
		EntityType: EntityQuiz,
		EntityID:   &quiz.ID,
		Metadata:   metadata,
	})
	s.events.Publish(ctx, QuizEvent{
		Type:         EventSubmissionGraded,
		QuizID:       quiz.ID,
		SubmissionID: updated.ID,
		StudentID:    updated.StudentID,
		ActorID:      actor.ID,
		Score:        updated.Score,
		OccurredAt:   gradedAt,
	})

	response := dto.NewSubmissionResponse(updated, true)
	response.Percentage = PercentagePtr(updated.Score, quiz.TotalPoints)
	return response, nil
}

// collectAwards maps question ids to awarded points, rejecting ids that are not part of the
// submission. A later award for the same question wins.
func collectAwards(submission models.QuizSubmission, payload dto.GradeSubmissionRequest) (map[uint]float64, error) {
	if submission.Kind == models.QuizKindInteractive && payload.Score != nil {
		return nil, validationError("score", "interactive submissions are scored per question")
	}
	if submission.Kind == models.QuizKindDocument && len(payload.Grades) > 0 {
		return nil, validationError("grades", "document submissions have no questions")
	}

	known := make(map[uint]struct{}, len(submission.Entries))
	for _, entry := range submission.Entries {
		known[entry.QuestionID] = struct{}{}
	}

	awards := make(map[uint]float64, len(payload.Grades))
	for i, grade := range payload.Grades {
		if _, ok := known[grade.QuestionID]; !ok {
			return nil, validationError(fmt.Sprintf("grades[%d].question_id", i), "question %d is not part of this submission", grade.QuestionID)
		}
		awards[grade.QuestionID] = grade.PointsAwarded
	}
	return awards, nil
}
