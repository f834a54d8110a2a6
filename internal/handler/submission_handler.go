package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/service"
	"github.com/noah-isme/gema-quiz-api/internal/utils"
)

// SubmissionHandler exposes submission listings, details and manual grading for teachers.
type SubmissionHandler struct {
	results service.ResultService
	grading service.GradingService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs a submission handler.
func NewSubmissionHandler(results service.ResultService, grading service.GradingService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		results: results,
		grading: grading,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// RegisterQuizRoutes wires /quizzes/:id/submissions.
func (h *SubmissionHandler) RegisterQuizRoutes(router fiber.Router) {
	router.Get("/:id/submissions", middleware.WithAuth(h.listForQuiz, middleware.AuthOptions{Role: middleware.AuthRoleTeacher}))
}

// Register wires /submissions routes.
func (h *SubmissionHandler) Register(router fiber.Router) {
	teacher := middleware.AuthOptions{Role: middleware.AuthRoleTeacher}

	router.Get("/:id", middleware.WithAuth(h.get, teacher))
	router.Get("/:id/file", middleware.WithAuth(h.file, middleware.AuthOptions{}))
	router.Post("/:id/grade", middleware.WithAuth(h.grade, teacher))
}

func (h *SubmissionHandler) listForQuiz(c *fiber.Ctx) error {
	quizID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.results.ListForQuiz(requestContext(c), quizID, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to list submissions")
	}
	return utils.SendSuccess(c, "submissions retrieved", result)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.results.GetForTeacher(requestContext(c), id, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to load submission")
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) file(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := h.results.OpenAnswerFile(requestContext(c), id, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to open answer file")
	}
	return sendFile(c, file)
}

func (h *SubmissionHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GradeSubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.grading.Grade(requestContext(c), id, payload, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to grade submission")
	}
	return utils.SendSuccess(c, "submission graded", submission)
}

// StudentResultHandler exposes a student's own quiz results.
type StudentResultHandler struct {
	results service.ResultService
	logger  zerolog.Logger
}

// NewStudentResultHandler constructs the handler.
func NewStudentResultHandler(results service.ResultService, logger zerolog.Logger) *StudentResultHandler {
	return &StudentResultHandler{
		results: results,
		logger:  logger.With().Str("component", "student_result_handler").Logger(),
	}
}

// Register wires /student/quiz-results routes. The group is expected to be student only.
func (h *StudentResultHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *StudentResultHandler) list(c *fiber.Ctx) error {
	results, err := h.results.ListForStudent(requestContext(c), principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to list results")
	}
	return utils.OK(c, results.Items, "results retrieved", fiber.Map{
		"count":              len(results.Items),
		"average_percentage": results.AveragePercentage,
	})
}

func (h *StudentResultHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.results.GetForStudent(requestContext(c), id, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to load result")
	}
	return utils.SendSuccess(c, "result retrieved", result)
}
