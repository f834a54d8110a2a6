package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/models"
	"github.com/noah-isme/gema-quiz-api/internal/service"
	"github.com/noah-isme/gema-quiz-api/internal/utils"
)

// AttemptHandler exposes the student delivery endpoints: start, autosave and submit.
type AttemptHandler struct {
	attempts  service.AttemptService
	documents service.DocumentService
	submitMax int
	logger    zerolog.Logger
}

// NewAttemptHandler constructs an attempt handler. submitLimit caps submit calls per minute and user.
func NewAttemptHandler(attempts service.AttemptService, documents service.DocumentService, submitLimit int, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts:  attempts,
		documents: documents,
		submitMax: submitLimit,
		logger:    logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register wires the attempt routes under /quizzes.
func (h *AttemptHandler) Register(router fiber.Router) {
	student := middleware.AuthOptions{Role: middleware.AuthRoleStudent}

	router.Post("/:id/attempts", middleware.WithAuth(h.start, student))
	router.Put("/:id/attempts/answers", middleware.WithAuth(h.saveAnswers, student))
	limit := middleware.RateLimit("quiz-submit", h.submitMax, time.Minute)
	submit := middleware.WithAuth(h.submit, student)
	router.Post("/:id/submissions", limit, submit)
	// Older clients post to /submit.
	router.Post("/:id/submit", limit, submit)
}

func (h *AttemptHandler) start(c *fiber.Ctx) error {
	quizID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	attempt, err := h.attempts.Start(requestContext(c), quizID, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to start quiz")
	}
	return utils.SendSuccess(c, "attempt started", attempt)
}

func (h *AttemptHandler) saveAnswers(c *fiber.Ctx) error {
	quizID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SaveAnswersRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if payload.Answers == nil {
		payload.Answers = map[string]string{}
	}

	attempt, err := h.attempts.SaveAnswers(requestContext(c), quizID, models.AnswerSet(payload.Answers), principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to save answers")
	}
	return utils.SendSuccess(c, "answers saved", attempt)
}

// submit accepts JSON answers for interactive quizzes or a multipart file for document quizzes.
// A repeated submit answers 200 with the submission already on record.
func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	quizID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := requestContext(c)
	var input service.SubmitInput
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		file, err := c.FormFile("file")
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "file is required")
		}
		if h.documents == nil {
			return handleServiceError(c, h.logger, service.ErrFileStoreUnavailable, "failed to submit quiz")
		}
		stored, err := h.documents.Store(ctx, service.PurposeAnswerFile, file)
		if err != nil {
			return handleServiceError(c, h.logger, err, "failed to submit quiz")
		}
		input.FilePath = stored.Path
		input.Forced, _ = strconv.ParseBool(c.FormValue("forced"))
	} else if len(c.Body()) > 0 {
		var payload dto.SubmitQuizRequest
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		if payload.Answers != nil {
			input.Answers = models.AnswerSet(payload.Answers)
		}
		input.Forced = payload.Forced
	}

	result, err := h.attempts.Submit(ctx, quizID, input, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to submit quiz")
	}

	receipt := dto.NewSubmissionReceipt(result.Submission, result.Duplicate)
	if result.Submission.IsGraded() {
		receipt.Score = result.Submission.Score
		receipt.Percentage = service.PercentagePtr(result.Submission.Score, result.TotalPoints)
	}

	if result.Duplicate {
		return utils.SendSuccess(c, "quiz already submitted", receipt)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "quiz submitted", receipt)
}
