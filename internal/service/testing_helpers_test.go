package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/database"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
)

var testDBSequence int64

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// newTestDB opens an isolated in-memory database. A single connection keeps sqlite writers
// serialized the way postgres row locks would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:quiz_service_%d_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSequence, 1), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type quizEnv struct {
	db          *gorm.DB
	quizzes     repository.QuizRepository
	courses     repository.CourseRepository
	submissions repository.SubmissionRepository
	attempts    repository.AttemptRepository
	activity    ActivityService
	validate    *validator.Validate
	clock       *testClock
	teacher     Principal
	student     Principal
	course      models.Course
}

func newQuizEnv(t *testing.T) *quizEnv {
	t.Helper()

	db := newTestDB(t)
	course := models.Course{TeacherID: 7, Title: "Pemrograman Web"}
	require.NoError(t, db.Create(&course).Error)

	return &quizEnv{
		db:          db,
		quizzes:     repository.NewQuizRepository(db),
		courses:     repository.NewCourseRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		attempts:    repository.NewAttemptRepository(db),
		activity:    NewActivityService(repository.NewActivityLogRepository(db), testLogger()),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		clock:       newTestClock(),
		teacher:     Principal{ID: 7, Role: RoleTeacher},
		student:     Principal{ID: 21, Role: RoleStudent},
		course:      course,
	}
}

func (e *quizEnv) createQuiz(t *testing.T, quiz models.Quiz) models.Quiz {
	t.Helper()

	quiz.CourseID = e.course.ID
	quiz.CreatedBy = e.teacher.ID
	if quiz.Kind == "" {
		quiz.Kind = models.QuizKindInteractive
	}
	if quiz.Title == "" {
		quiz.Title = "Kuis HTML"
	}
	require.NoError(t, e.quizzes.Create(context.Background(), &quiz))

	loaded, err := e.quizzes.GetByID(context.Background(), quiz.ID)
	require.NoError(t, err)
	return loaded
}

func (e *quizEnv) recorder() *submissionRecorder {
	recorder := NewSubmissionRecorder(e.quizzes, e.submissions, nil, nil, testLogger()).(*submissionRecorder)
	recorder.now = e.clock.Now
	return recorder
}

func (e *quizEnv) attemptService(grace time.Duration) *attemptService {
	svc := NewAttemptService(e.quizzes, e.attempts, e.submissions, e.recorder(), nil, grace, testLogger()).(*attemptService)
	svc.now = e.clock.Now
	return svc
}

func (e *quizEnv) gradingService() *gradingService {
	svc := NewGradingService(e.quizzes, e.courses, e.submissions, e.validate, e.activity, nil, testLogger()).(*gradingService)
	svc.now = e.clock.Now
	return svc
}

func (e *quizEnv) quizService(cache *QuizCache) *quizService {
	svc := NewQuizService(e.quizzes, e.courses, e.submissions, nil, cache, e.activity, nil, e.validate, testLogger()).(*quizService)
	svc.now = e.clock.Now
	return svc
}

func (e *quizEnv) resultService() ResultService {
	return NewResultService(e.quizzes, e.courses, e.submissions, nil, testLogger())
}

func mcQuestion(text string, points int, correct string) models.Question {
	return models.Question{
		Type:          models.QuestionTypeMultipleChoice,
		Text:          text,
		Points:        points,
		OptionA:       "Pilihan A",
		OptionB:       "Pilihan B",
		OptionC:       "Pilihan C",
		OptionD:       "Pilihan D",
		CorrectOption: correct,
	}
}

func essayQuestion(text string, points int) models.Question {
	return models.Question{
		Type:   models.QuestionTypeEssay,
		Text:   text,
		Points: points,
	}
}

func answerKey(id uint) string {
	return fmt.Sprintf("%d", id)
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrInt(v int) *int {
	return &v
}

func ptrFloat(v float64) *float64 {
	return &v
}

func ptrBool(v bool) *bool {
	return &v
}

func ptrString(v string) *string {
	return &v
}
