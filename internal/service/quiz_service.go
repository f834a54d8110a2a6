package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

// QuizService covers quiz definition and the question bank.
type QuizService interface {
	Create(ctx context.Context, courseID uint, payload dto.QuizCreateRequest, actor Principal) (dto.QuizResponse, error)
	Update(ctx context.Context, quizID uint, payload dto.QuizUpdateRequest, actor Principal) (dto.QuizResponse, error)
	Delete(ctx context.Context, quizID uint, actor Principal) error
	DefineQuestions(ctx context.Context, quizID uint, payload dto.DefineQuestionsRequest, actor Principal) (dto.QuizResponse, error)
	ListForTeacher(ctx context.Context, courseID uint, actor Principal) ([]dto.QuizResponse, error)
	GetForTeacher(ctx context.Context, quizID uint, actor Principal) (dto.QuizResponse, error)
	ListVisible(ctx context.Context, courseID uint, actor Principal) ([]dto.StudentQuizResponse, error)
	GetForStudent(ctx context.Context, quizID uint, actor Principal) (dto.StudentQuizResponse, error)
	Activity(ctx context.Context, quizID uint, req dto.ActivityListRequest, actor Principal) (dto.ActivityListResponse, error)
	OpenDocument(ctx context.Context, quizID uint, actor Principal) (StoredFile, error)
}

type quizService struct {
	quizzes     repository.QuizRepository
	submissions repository.SubmissionRepository
	guard       courseGuard
	documents   DocumentService
	cache       *QuizCache
	activity    ActivityService
	events      EventPublisher
	validator   *validator.Validate
	titles      *bluemonday.Policy
	rich        *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewQuizService constructs the quiz definition service.
func NewQuizService(
	quizzes repository.QuizRepository,
	courses repository.CourseRepository,
	submissions repository.SubmissionRepository,
	documents DocumentService,
	cache *QuizCache,
	activity ActivityService,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) QuizService {
	if events == nil {
		events = NewEventPublisher(nil, "", logger)
	}

	rich := bluemonday.UGCPolicy()
	rich.AllowElements("p", "strong", "em", "code", "pre", "ul", "ol", "li", "br")

	return &quizService{
		quizzes:     quizzes,
		submissions: submissions,
		guard:       courseGuard{courses: courses},
		documents:   documents,
		cache:       cache,
		activity:    activity,
		events:      events,
		validator:   validate,
		titles:      bluemonday.StrictPolicy(),
		rich:        rich,
		logger:      logger.With().Str("component", "quiz_service").Logger(),
		now:         time.Now,
	}
}

func (s *quizService) Create(ctx context.Context, courseID uint, payload dto.QuizCreateRequest, actor Principal) (dto.QuizResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuizResponse{}, err
	}

	if err := s.guard.authorize(ctx, courseID, actor); err != nil {
		return dto.QuizResponse{}, err
	}

	quiz := models.Quiz{
		CourseID:         courseID,
		CreatedBy:        actor.ID,
		Kind:             payload.Kind,
		Title:            strings.TrimSpace(s.titles.Sanitize(payload.Title)),
		Description:      strings.TrimSpace(s.rich.Sanitize(payload.Description)),
		TotalPoints:      payload.TotalPoints,
		TimeLimitMinutes: payload.TimeLimitMinutes,
		DueAt:            payload.DueAt,
	}
	if quiz.Title == "" {
		return dto.QuizResponse{}, validationError("title", "must not be empty")
	}

	switch quiz.Kind {
	case models.QuizKindInteractive:
		for i, item := range payload.Questions {
			if item.ID != nil {
				return dto.QuizResponse{}, validationError(fmt.Sprintf("questions[%d].id", i), "must be empty when creating a quiz")
			}
		}
		questions, err := buildQuestions(payload.Questions)
		if err != nil {
			return dto.QuizResponse{}, err
		}
		quiz.Questions = questions
	case models.QuizKindDocument:
		if len(payload.Questions) > 0 {
			return dto.QuizResponse{}, validationError("questions", "document quizzes cannot have questions")
		}
		quiz.DocumentPath = strings.TrimSpace(payload.DocumentPath)
	}

	if payload.IsActive != nil {
		quiz.IsActive = *payload.IsActive
	} else {
		quiz.IsActive = quiz.Kind == models.QuizKindDocument || len(quiz.Questions) > 0
	}

	if err := checkQuizInvariants(quiz); err != nil {
		return dto.QuizResponse{}, err
	}

	if err := s.quizzes.Create(ctx, &quiz); err != nil {
		s.logger.Error().Err(err).Uint("course_id", courseID).Msg("failed to create quiz")
		return dto.QuizResponse{}, err
	}

	s.logger.Info().Uint("quiz_id", quiz.ID).Uint("course_id", courseID).Str("kind", quiz.Kind).Msg("quiz created")
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "quiz.created",
		EntityType: EntityQuiz,
		EntityID:   &quiz.ID,
		Metadata: map[string]interface{}{
			"course_id": courseID,
			"kind":      quiz.Kind,
			"questions": len(quiz.Questions),
		},
	})

	return dto.NewQuizResponse(quiz), nil
}

func (s *quizService) Update(ctx context.Context, quizID uint, payload dto.QuizUpdateRequest, actor Principal) (dto.QuizResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuizResponse{}, err
	}

	quiz, err := s.guard.ownedQuiz(ctx, s.quizzes, quizID, actor)
	if err != nil {
		return dto.QuizResponse{}, err
	}

	previousDocument := quiz.DocumentPath
	changed := make([]string, 0, 8)

	if payload.Title != nil {
		quiz.Title = strings.TrimSpace(s.titles.Sanitize(*payload.Title))
		if quiz.Title == "" {
			return dto.QuizResponse{}, validationError("title", "must not be empty")
		}
		changed = append(changed, "title")
	}
	if payload.Description != nil {
		quiz.Description = strings.TrimSpace(s.rich.Sanitize(*payload.Description))
		changed = append(changed, "description")
	}
	if payload.TotalPoints != nil {
		quiz.TotalPoints = *payload.TotalPoints
		changed = append(changed, "total_points")
	}
	if payload.TimeLimitMinutes != nil {
		if *payload.TimeLimitMinutes == 0 {
			quiz.TimeLimitMinutes = nil
		} else {
			limit := *payload.TimeLimitMinutes
			quiz.TimeLimitMinutes = &limit
		}
		changed = append(changed, "time_limit_minutes")
	}
	if payload.ClearDueAt {
		quiz.DueAt = nil
		changed = append(changed, "due_at")
	} else if payload.DueAt != nil {
		dueAt := *payload.DueAt
		quiz.DueAt = &dueAt
		changed = append(changed, "due_at")
	}
	if payload.IsActive != nil {
		quiz.IsActive = *payload.IsActive
		changed = append(changed, "is_active")
	}
	if payload.DocumentPath != nil {
		if quiz.IsInteractive() {
			return dto.QuizResponse{}, validationError("document_path", "interactive quizzes have no document")
		}
		quiz.DocumentPath = strings.TrimSpace(*payload.DocumentPath)
		changed = append(changed, "document_path")
	}

	if err := checkQuizInvariants(quiz); err != nil {
		return dto.QuizResponse{}, err
	}

	if err := s.quizzes.Update(ctx, &quiz); err != nil {
		s.logger.Error().Err(err).Uint("quiz_id", quizID).Msg("failed to update quiz")
		return dto.QuizResponse{}, err
	}
	s.cache.Invalidate(ctx, quizID)

	if previousDocument != "" && previousDocument != quiz.DocumentPath && s.documents != nil {
		s.documents.Remove(ctx, previousDocument)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "quiz.updated",
		EntityType: EntityQuiz,
		EntityID:   &quiz.ID,
		Metadata:   map[string]interface{}{"fields": changed},
	})

	updated, err := loadQuiz(ctx, s.quizzes, quizID)
	if err != nil {
		return dto.QuizResponse{}, err
	}
	return dto.NewQuizResponse(updated), nil
}

func (s *quizService) Delete(ctx context.Context, quizID uint, actor Principal) error {
	quiz, err := s.guard.ownedQuiz(ctx, s.quizzes, quizID, actor)
	if err != nil {
		return err
	}

	files, err := s.quizzes.Delete(ctx, quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuizNotFound
		}
		s.logger.Error().Err(err).Uint("quiz_id", quizID).Msg("failed to delete quiz")
		return err
	}
	s.cache.Invalidate(ctx, quizID)

	if s.documents != nil {
		for _, file := range files {
			s.documents.Remove(ctx, file)
		}
	}

	s.logger.Info().Uint("quiz_id", quizID).Int("files", len(files)).Msg("quiz deleted")
	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "quiz.deleted",
		EntityType: EntityQuiz,
		EntityID:   &quiz.ID,
		Metadata: map[string]interface{}{
			"course_id": quiz.CourseID,
			"title":     quiz.Title,
		},
	})
	s.events.Publish(ctx, QuizEvent{Type: EventQuizDeleted, QuizID: quizID, ActorID: actor.ID})

	return nil
}

func (s *quizService) DefineQuestions(ctx context.Context, quizID uint, payload dto.DefineQuestionsRequest, actor Principal) (dto.QuizResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuizResponse{}, err
	}

	quiz, err := s.guard.ownedQuiz(ctx, s.quizzes, quizID, actor)
	if err != nil {
		return dto.QuizResponse{}, err
	}

	if !quiz.IsInteractive() {
		return dto.QuizResponse{}, validationError("kind", "document quizzes have no question bank")
	}
	if len(payload.Questions) == 0 && quiz.IsActive {
		return dto.QuizResponse{}, validationError("questions", "an active quiz needs at least one question")
	}

	existing := make(map[uint]struct{}, len(quiz.Questions))
	for _, question := range quiz.Questions {
		existing[question.ID] = struct{}{}
	}
	seen := make(map[uint]struct{}, len(payload.Questions))
	for i, item := range payload.Questions {
		if item.ID == nil {
			continue
		}
		if _, ok := existing[*item.ID]; !ok {
			return dto.QuizResponse{}, ErrQuestionNotFound
		}
		if _, dup := seen[*item.ID]; dup {
			return dto.QuizResponse{}, validationError(fmt.Sprintf("questions[%d].id", i), "question %d is listed twice", *item.ID)
		}
		seen[*item.ID] = struct{}{}
	}

	questions, err := buildQuestions(payload.Questions)
	if err != nil {
		return dto.QuizResponse{}, err
	}

	stored, err := s.quizzes.ReplaceQuestions(ctx, quizID, questions)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuizResponse{}, ErrQuestionNotFound
		}
		s.logger.Error().Err(err).Uint("quiz_id", quizID).Msg("failed to replace questions")
		return dto.QuizResponse{}, err
	}
	s.cache.Invalidate(ctx, quizID)

	removed := 0
	for id := range existing {
		if _, kept := seen[id]; !kept {
			removed++
		}
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "quiz.questions_defined",
		EntityType: EntityQuiz,
		EntityID:   &quiz.ID,
		Metadata: map[string]interface{}{
			"questions": len(stored),
			"removed":   removed,
		},
	})

	quiz.Questions = stored
	return dto.NewQuizResponse(quiz), nil
}

func (s *quizService) ListForTeacher(ctx context.Context, courseID uint, actor Principal) ([]dto.QuizResponse, error) {
	if err := s.guard.authorize(ctx, courseID, actor); err != nil {
		return nil, err
	}

	quizzes, err := s.quizzes.ListByCourse(ctx, courseID, false)
	if err != nil {
		return nil, err
	}
	return dto.NewQuizResponseSlice(quizzes), nil
}

func (s *quizService) GetForTeacher(ctx context.Context, quizID uint, actor Principal) (dto.QuizResponse, error) {
	quiz, err := s.guard.ownedQuiz(ctx, s.quizzes, quizID, actor)
	if err != nil {
		return dto.QuizResponse{}, err
	}
	return dto.NewQuizResponse(quiz), nil
}

func (s *quizService) ListVisible(ctx context.Context, courseID uint, actor Principal) ([]dto.StudentQuizResponse, error) {
	if !actor.IsStudent() {
		return nil, ErrForbidden
	}

	quizzes, err := s.quizzes.ListByCourse(ctx, courseID, true)
	if err != nil {
		return nil, err
	}

	submitted, err := s.submittedQuizzes(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	responses := make([]dto.StudentQuizResponse, 0, len(quizzes))
	for _, quiz := range quizzes {
		response := dto.NewStudentQuizResponse(quiz)
		annotateStudentQuiz(&response, now, submitted[quiz.ID])
		responses = append(responses, response)
	}
	return responses, nil
}

func (s *quizService) GetForStudent(ctx context.Context, quizID uint, actor Principal) (dto.StudentQuizResponse, error) {
	if !actor.IsStudent() {
		return dto.StudentQuizResponse{}, ErrForbidden
	}

	response, ok := s.cache.Get(ctx, quizID)
	if !ok {
		quiz, err := loadQuiz(ctx, s.quizzes, quizID)
		if err != nil {
			return dto.StudentQuizResponse{}, err
		}
		if !quiz.IsActive {
			return dto.StudentQuizResponse{}, ErrQuizNotFound
		}
		response = dto.NewStudentQuizResponse(quiz)
		s.cache.Set(ctx, response)
	}

	var submissionID *uint
	submission, err := s.submissions.GetByQuizAndStudent(ctx, quizID, actor.ID)
	switch {
	case err == nil:
		submissionID = &submission.ID
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.StudentQuizResponse{}, err
	}

	annotateStudentQuiz(&response, s.now(), submissionID)
	return response, nil
}

func (s *quizService) Activity(ctx context.Context, quizID uint, req dto.ActivityListRequest, actor Principal) (dto.ActivityListResponse, error) {
	if _, err := s.guard.ownedQuiz(ctx, s.quizzes, quizID, actor); err != nil {
		return dto.ActivityListResponse{}, err
	}
	return s.activity.ListForEntity(ctx, EntityQuiz, quizID, req)
}

// OpenDocument opens the document of a document quiz. Students may only read active quizzes.
func (s *quizService) OpenDocument(ctx context.Context, quizID uint, actor Principal) (StoredFile, error) {
	var quiz models.Quiz
	var err error
	if actor.IsStudent() {
		quiz, err = loadQuiz(ctx, s.quizzes, quizID)
		if err == nil && !quiz.IsActive {
			err = ErrQuizNotFound
		}
	} else {
		quiz, err = s.guard.ownedQuiz(ctx, s.quizzes, quizID, actor)
	}
	if err != nil {
		return StoredFile{}, err
	}

	if quiz.DocumentPath == "" {
		return StoredFile{}, ErrQuizNotFound
	}
	if s.documents == nil {
		return StoredFile{}, ErrFileStoreUnavailable
	}

	content, err := s.documents.Open(ctx, quiz.DocumentPath)
	if err != nil {
		s.logger.Warn().Err(err).Uint("quiz_id", quizID).Msg("failed to open quiz document")
		return StoredFile{}, err
	}
	return StoredFile{Name: path.Base(quiz.DocumentPath), Content: content}, nil
}

func (s *quizService) submittedQuizzes(ctx context.Context, studentID uint) (map[uint]*uint, error) {
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return nil, err
	}
	submitted := make(map[uint]*uint, len(submissions))
	for i := range submissions {
		submitted[submissions[i].QuizID] = &submissions[i].ID
	}
	return submitted, nil
}

func annotateStudentQuiz(response *dto.StudentQuizResponse, now time.Time, submissionID *uint) {
	response.Overdue = response.DueAt != nil && now.After(*response.DueAt)
	response.HasSubmitted = submissionID != nil
	response.SubmissionID = submissionID
}

// checkQuizInvariants enforces the activation rules of both quiz kinds.
func checkQuizInvariants(quiz models.Quiz) error {
	switch quiz.Kind {
	case models.QuizKindDocument:
		if strings.TrimSpace(quiz.DocumentPath) == "" {
			return validationError("document_path", "document quizzes need a document")
		}
	case models.QuizKindInteractive:
		if quiz.IsActive && len(quiz.Questions) == 0 {
			return validationError("is_active", "interactive quizzes need at least one question before activation")
		}
	default:
		return validationError("kind", "unknown quiz kind %q", quiz.Kind)
	}
	return nil
}

// buildQuestions validates question payloads and converts them into models ordered by position.
func buildQuestions(items []dto.QuestionRequest) ([]models.Question, error) {
	questions := make([]models.Question, 0, len(items))
	for i, item := range items {
		field := fmt.Sprintf("questions[%d]", i)

		text := strings.TrimSpace(item.Text)
		if text == "" {
			return nil, validationError(field+".text", "must not be empty")
		}
		if item.Points <= 0 {
			return nil, validationError(field+".points", "must be positive")
		}

		question := models.Question{
			Position: i + 1,
			Type:     item.Type,
			Points:   item.Points,
			Text:     text,
		}
		if item.ID != nil {
			question.ID = *item.ID
		}

		switch item.Type {
		case models.QuestionTypeMultipleChoice:
			question.OptionA = strings.TrimSpace(item.OptionA)
			question.OptionB = strings.TrimSpace(item.OptionB)
			question.OptionC = strings.TrimSpace(item.OptionC)
			question.OptionD = strings.TrimSpace(item.OptionD)

			options := question.Options()
			if len(options) < 2 {
				return nil, validationError(field+".options", "multiple choice questions need at least two options")
			}
			if _, ok := options[item.CorrectOption]; !ok {
				return nil, validationError(field+".correct_option", "must name one of the non-empty options")
			}
			question.CorrectOption = item.CorrectOption
		case models.QuestionTypeEssay:
			question.AnswerKey = strings.TrimSpace(item.AnswerKey)
		default:
			return nil, validationError(field+".type", "unknown question type %q", item.Type)
		}

		questions = append(questions, question)
	}
	return questions, nil
}
