package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/dto"
	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/service"
	"github.com/noah-isme/gema-quiz-api/internal/utils"
)

// TutorHandler exposes the AI tutor.
type TutorHandler struct {
	service service.TutorService
	logger  zerolog.Logger
}

// NewTutorHandler constructs a tutor handler.
func NewTutorHandler(service service.TutorService, logger zerolog.Logger) *TutorHandler {
	return &TutorHandler{
		service: service,
		logger:  logger.With().Str("component", "tutor_handler").Logger(),
	}
}

// Register wires tutor routes.
func (h *TutorHandler) Register(router fiber.Router) {
	router.Post("/ask", middleware.WithAuth(h.ask, middleware.AuthOptions{}))
}

func (h *TutorHandler) ask(c *fiber.Ctx) error {
	var payload dto.TutorAskRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	answer, err := h.service.Ask(requestContext(c), payload, principalFromContext(c))
	if err != nil {
		return handleServiceError(c, h.logger, err, "tutor unavailable")
	}
	return utils.SendSuccess(c, "answer generated", answer)
}
