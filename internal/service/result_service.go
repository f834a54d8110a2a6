package service

import (
	"context"
	"errors"
	"io"
	"math"
	"path"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

// StoredFile is an opened answer file or quiz document.
type StoredFile struct {
	Name    string
	Content io.ReadCloser
}

// ResultService serves the teacher and student views of submissions.
type ResultService interface {
	ListForQuiz(ctx context.Context, quizID uint, actor Principal) (dto.QuizSubmissionListResponse, error)
	GetForTeacher(ctx context.Context, submissionID uint, actor Principal) (dto.SubmissionResponse, error)
	OpenAnswerFile(ctx context.Context, submissionID uint, actor Principal) (StoredFile, error)
	ListForStudent(ctx context.Context, actor Principal) (dto.StudentQuizResultList, error)
	GetForStudent(ctx context.Context, submissionID uint, actor Principal) (dto.StudentQuizResult, error)
}

type resultService struct {
	quizzes     repository.QuizRepository
	submissions repository.SubmissionRepository
	guard       courseGuard
	documents   DocumentService
	logger      zerolog.Logger
}

// NewResultService constructs the result service.
func NewResultService(quizzes repository.QuizRepository, courses repository.CourseRepository, submissions repository.SubmissionRepository, documents DocumentService, logger zerolog.Logger) ResultService {
	return &resultService{
		quizzes:     quizzes,
		submissions: submissions,
		guard:       courseGuard{courses: courses},
		documents:   documents,
		logger:      logger.With().Str("component", "result_service").Logger(),
	}
}

func (s *resultService) ListForQuiz(ctx context.Context, quizID uint, actor Principal) (dto.QuizSubmissionListResponse, error) {
	quiz, err := s.guard.ownedQuiz(ctx, s.quizzes, quizID, actor)
	if err != nil {
		return dto.QuizSubmissionListResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{QuizID: &quizID})
	if err != nil {
		return dto.QuizSubmissionListResponse{}, err
	}

	items := make([]dto.SubmissionResponse, 0, len(submissions))
	stats := dto.SubmissionStats{Total: len(submissions)}
	for _, submission := range submissions {
		item := dto.NewSubmissionResponse(submission, false)
		item.Percentage = PercentagePtr(submission.Score, quiz.TotalPoints)
		if submission.IsGraded() {
			stats.Graded++
		} else {
			stats.Pending++
		}
		items = append(items, item)
	}
	stats.AverageScore = AverageScore(submissions)

	return dto.QuizSubmissionListResponse{
		QuizID:      quiz.ID,
		QuizTitle:   quiz.Title,
		TotalPoints: quiz.TotalPoints,
		Items:       items,
		Stats:       stats,
	}, nil
}

func (s *resultService) GetForTeacher(ctx context.Context, submissionID uint, actor Principal) (dto.SubmissionResponse, error) {
	submission, quiz, err := s.teacherSubmission(ctx, submissionID, actor)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	response := dto.NewSubmissionResponse(submission, true)
	response.Percentage = PercentagePtr(submission.Score, quiz.TotalPoints)
	return response, nil
}

// OpenAnswerFile opens the file of a document submission for its teacher or its student.
func (s *resultService) OpenAnswerFile(ctx context.Context, submissionID uint, actor Principal) (StoredFile, error) {
	var submission models.QuizSubmission
	var err error
	if actor.IsStudent() {
		submission, err = s.studentSubmission(ctx, submissionID, actor)
	} else {
		submission, _, err = s.teacherSubmission(ctx, submissionID, actor)
	}
	if err != nil {
		return StoredFile{}, err
	}
	if submission.FilePath == "" {
		return StoredFile{}, ErrSubmissionNotFound
	}
	if s.documents == nil {
		return StoredFile{}, ErrFileStoreUnavailable
	}

	content, err := s.documents.Open(ctx, submission.FilePath)
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to open answer file")
		return StoredFile{}, err
	}
	return StoredFile{Name: path.Base(submission.FilePath), Content: content}, nil
}

func (s *resultService) ListForStudent(ctx context.Context, actor Principal) (dto.StudentQuizResultList, error) {
	if !actor.IsStudent() {
		return dto.StudentQuizResultList{}, ErrForbidden
	}

	studentID := actor.ID
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return dto.StudentQuizResultList{}, err
	}

	items := make([]dto.StudentQuizResult, 0, len(submissions))
	total := 0
	graded := 0
	for _, submission := range submissions {
		item := newStudentResult(submission)
		if item.Percentage != nil {
			total += *item.Percentage
			graded++
		}
		items = append(items, item)
	}

	var average *float64
	if graded > 0 {
		value := math.Round(float64(total)/float64(graded)*100) / 100
		average = &value
	}

	return dto.StudentQuizResultList{Items: items, AveragePercentage: average}, nil
}

func (s *resultService) GetForStudent(ctx context.Context, submissionID uint, actor Principal) (dto.StudentQuizResult, error) {
	submission, err := s.studentSubmission(ctx, submissionID, actor)
	if err != nil {
		return dto.StudentQuizResult{}, err
	}
	if !submission.IsGraded() {
		return dto.StudentQuizResult{}, ErrNotGraded
	}

	result := newStudentResult(submission)
	result.Entries = dto.NewGradeEntryResponseSlice(submission.Entries, true)
	return result, nil
}

func (s *resultService) teacherSubmission(ctx context.Context, submissionID uint, actor Principal) (models.QuizSubmission, models.Quiz, error) {
	if !actor.IsTeacher() {
		return models.QuizSubmission{}, models.Quiz{}, ErrForbidden
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.QuizSubmission{}, models.Quiz{}, ErrSubmissionNotFound
		}
		return models.QuizSubmission{}, models.Quiz{}, err
	}

	quiz, err := s.guard.ownedQuiz(ctx, s.quizzes, submission.QuizID, actor)
	if err != nil {
		if errors.Is(err, ErrQuizNotFound) {
			return models.QuizSubmission{}, models.Quiz{}, ErrSubmissionNotFound
		}
		return models.QuizSubmission{}, models.Quiz{}, err
	}
	return submission, quiz, nil
}

// studentSubmission loads a submission owned by the student. Other students' submissions are
// reported as missing.
func (s *resultService) studentSubmission(ctx context.Context, submissionID uint, actor Principal) (models.QuizSubmission, error) {
	if !actor.IsStudent() {
		return models.QuizSubmission{}, ErrForbidden
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.QuizSubmission{}, ErrSubmissionNotFound
		}
		return models.QuizSubmission{}, err
	}
	if submission.StudentID != actor.ID {
		return models.QuizSubmission{}, ErrSubmissionNotFound
	}
	return submission, nil
}

func newStudentResult(submission models.QuizSubmission) dto.StudentQuizResult {
	result := dto.StudentQuizResult{
		SubmissionID: submission.ID,
		QuizID:       submission.QuizID,
		Kind:         submission.Kind,
		SubmittedAt:  submission.SubmittedAt,
		IsGraded:     submission.IsGraded(),
	}

	if submission.Quiz != nil {
		result.QuizTitle = submission.Quiz.Title
		result.CourseID = submission.Quiz.CourseID
		result.TotalPoints = submission.Quiz.TotalPoints
		if submission.Quiz.Course != nil {
			result.CourseTitle = submission.Quiz.Course.Title
		}
	}

	if result.IsGraded {
		result.Score = submission.Score
		result.Percentage = PercentagePtr(submission.Score, result.TotalPoints)
		result.Feedback = submission.Feedback
	}
	return result
}
