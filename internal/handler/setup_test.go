package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-quiz-api/internal/config"
	"github.com/noah-isme/gema-quiz-api/internal/database"
	"github.com/noah-isme/gema-quiz-api/internal/handler"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/repository"
	"github.com/noah-isme/gema-quiz-api/internal/router"
	"github.com/noah-isme/gema-quiz-api/internal/service"
	"github.com/noah-isme/gema-quiz-api/pkg/filestore"
)

const (
	teacherID uint = 7
	studentID uint = 21
)

var dbSequence atomic.Int64

type quizApp struct {
	app       *fiber.App
	db        *gorm.DB
	course    models.Course
	storeRoot string
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func setupQuizApp(t *testing.T) *quizApp {
	t.Helper()

	dsn := fmt.Sprintf("file:quiz_handler_%d_%d?mode=memory&cache=shared", dbSequence.Add(1), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	course := models.Course{TeacherID: teacherID, Title: "Pemrograman Web"}
	require.NoError(t, db.Create(&course).Error)

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	storeRoot := t.TempDir()
	store, err := filestore.NewLocal(storeRoot, logger)
	require.NoError(t, err)

	quizRepo := repository.NewQuizRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	documents := service.NewDocumentService(store, 1, logger)
	quizzes := service.NewQuizService(quizRepo, courseRepo, submissionRepo, documents, nil, activity, nil, validate, logger)
	recorder := service.NewSubmissionRecorder(quizRepo, submissionRepo, documents, nil, logger)
	attempts := service.NewAttemptService(quizRepo, attemptRepo, submissionRepo, recorder, documents, 30*time.Second, logger)
	grading := service.NewGradingService(quizRepo, courseRepo, submissionRepo, validate, activity, nil, logger)
	results := service.NewResultService(quizRepo, courseRepo, submissionRepo, documents, logger)
	tutor := service.NewTutorService(nil, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		QuizHandler:          handler.NewQuizHandler(quizzes, documents, logger),
		AttemptHandler:       handler.NewAttemptHandler(attempts, documents, 100, logger),
		SubmissionHandler:    handler.NewSubmissionHandler(results, grading, logger),
		StudentResultHandler: handler.NewStudentResultHandler(results, logger),
		TutorHandler:         handler.NewTutorHandler(tutor, logger),
		TutorRateLimit:       100,
		JWTMiddleware: func(c *fiber.Ctx) error {
			if raw := c.Get("X-Test-User"); raw != "" {
				id, err := strconv.ParseUint(raw, 10, 64)
				if err != nil {
					return fiber.ErrUnauthorized
				}
				c.Locals("user_id", uint(id))
				c.Locals("user_role", c.Get("X-Test-Role"))
			}
			return c.Next()
		},
	})

	return &quizApp{app: app, db: db, course: course, storeRoot: storeRoot}
}

func (a *quizApp) do(t *testing.T, req *http.Request, userID uint, role string) *http.Response {
	t.Helper()

	if userID > 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(userID), 10))
		req.Header.Set("X-Test-Role", role)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (a *quizApp) json(t *testing.T, method, path string, payload interface{}, userID uint, role string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return a.do(t, req, userID, role)
}

func (a *quizApp) upload(t *testing.T, path, fileName string, content []byte, fields map[string]string, userID uint, role string) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return a.do(t, req, userID, role)
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func decodeData(t *testing.T, resp *http.Response, target interface{}) apiResponse {
	t.Helper()

	var envelope apiResponse
	decodeResponse(t, resp, &envelope)
	if target != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, target), string(envelope.Data))
	}
	return envelope
}
