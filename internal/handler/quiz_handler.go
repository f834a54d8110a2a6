package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/service"
	"github.com/noah-isme/gema-quiz-api/internal/utils"
)

// QuizHandler exposes quiz definition and question bank endpoints.
type QuizHandler struct {
	quizzes   service.QuizService
	documents service.DocumentService
	logger    zerolog.Logger
}

// NewQuizHandler constructs a quiz handler.
func NewQuizHandler(quizzes service.QuizService, documents service.DocumentService, logger zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		quizzes:   quizzes,
		documents: documents,
		logger:    logger.With().Str("component", "quiz_handler").Logger(),
	}
}

// RegisterCourseRoutes wires /courses/:courseId/quizzes.
func (h *QuizHandler) RegisterCourseRoutes(router fiber.Router) {
	router.Get("/:courseId/quizzes", middleware.WithAuth(h.listByCourse, middleware.AuthOptions{}))
	router.Post("/:courseId/quizzes", middleware.WithAuth(h.create, middleware.AuthOptions{Role: middleware.AuthRoleTeacher}))
}

// Register wires /quizzes routes.
func (h *QuizHandler) Register(router fiber.Router) {
	teacher := middleware.AuthOptions{Role: middleware.AuthRoleTeacher}

	router.Post("/documents", middleware.WithAuth(h.uploadDocument, teacher))
	router.Get("/:id", middleware.WithAuth(h.get, middleware.AuthOptions{}))
	update := middleware.WithAuth(h.update, teacher)
	router.Put("/:id", update)
	router.Patch("/:id", update)
	router.Delete("/:id", middleware.WithAuth(h.delete, teacher))
	router.Put("/:id/questions", middleware.WithAuth(h.defineQuestions, teacher))
	router.Get("/:id/activity", middleware.WithAuth(h.activity, teacher))
	router.Get("/:id/document", middleware.WithAuth(h.document, middleware.AuthOptions{}))
}

func (h *QuizHandler) listByCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actor := principalFromContext(c)
	if actor.IsStudent() {
		quizzes, err := h.quizzes.ListVisible(requestContext(c), courseID, actor)
		if err != nil {
			return handleServiceError(c, h.logger, err, "failed to list quizzes")
		}
		return utils.OK(c, quizzes, "quizzes retrieved", fiber.Map{"count": len(quizzes)})
	}

	quizzes, err := h.quizzes.ListForTeacher(requestContext(c), courseID, actor)
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to list quizzes")
	}
	return utils.OK(c, quizzes, "quizzes retrieved", fiber.Map{"count": len(quizzes)})
}

func (h *QuizHandler) create(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.QuizCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	quiz, err := h.quizzes.Create(requestContext(c), courseID, payload, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to create quiz")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "quiz created", quiz)
}

func (h *QuizHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actor := principalFromContext(c)
	if actor.IsStudent() {
		quiz, err := h.quizzes.GetForStudent(requestContext(c), id, actor)
		if err != nil {
			return handleServiceError(c, h.logger, err, "failed to load quiz")
		}
		return utils.SendSuccess(c, "quiz retrieved", quiz)
	}

	quiz, err := h.quizzes.GetForTeacher(requestContext(c), id, actor)
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to load quiz")
	}
	return utils.SendSuccess(c, "quiz retrieved", quiz)
}

func (h *QuizHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.QuizUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	quiz, err := h.quizzes.Update(requestContext(c), id, payload, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to update quiz")
	}
	return utils.SendSuccess(c, "quiz updated", quiz)
}

func (h *QuizHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.quizzes.Delete(requestContext(c), id, principalFromContext(c)); err != nil {
		return handleServiceError(c, h.logger, err, "failed to delete quiz")
	}
	return utils.SendSuccess(c, "quiz deleted", fiber.Map{"id": id})
}

func (h *QuizHandler) defineQuestions(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.DefineQuestionsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	quiz, err := h.quizzes.DefineQuestions(requestContext(c), id, payload, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to save questions")
	}
	return utils.SendSuccess(c, "questions saved", quiz)
}

func (h *QuizHandler) activity(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page parameter")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size parameter")
	}

	req := dto.ActivityListRequest{Page: page, PageSize: pageSize, Action: c.Query("action")}
	result, err := h.quizzes.Activity(requestContext(c), id, req, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to load activity")
	}
	return utils.OK(c, result.Items, "activity retrieved", result.Pagination)
}

func (h *QuizHandler) uploadDocument(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}
	if h.documents == nil {
		return handleServiceError(c, h.logger, service.ErrFileStoreUnavailable, "upload failed")
	}

	result, err := h.documents.Store(requestContext(c), service.PurposeQuizDocument, file)
	if err != nil {
		return handleServiceError(c, h.logger, err, "upload failed")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "document uploaded", result)
}

func (h *QuizHandler) document(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := h.quizzes.OpenDocument(requestContext(c), id, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "failed to open document")
	}
	return sendFile(c, file)
}
