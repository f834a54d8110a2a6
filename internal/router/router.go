package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-quiz-api/internal/config"
	"github.com/noah-isme/gema-quiz-api/internal/handler"
	"github.com/noah-isme/gema-quiz-api/internal/middleware"
	"github.com/noah-isme/gema-quiz-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	QuizHandler          *handler.QuizHandler
	AttemptHandler       *handler.AttemptHandler
	SubmissionHandler    *handler.SubmissionHandler
	StudentResultHandler *handler.StudentResultHandler
	TutorHandler         *handler.TutorHandler
	HealthProbes         map[string]handler.HealthProbe
	JWTMiddleware        fiber.Handler
	TutorRateLimit       int
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, nil))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	protected := api.Group("", jwtMiddleware)

	if deps.QuizHandler != nil {
		deps.QuizHandler.RegisterCourseRoutes(protected.Group("/courses"))
	}

	quizzes := protected.Group("/quizzes")
	if deps.AttemptHandler != nil {
		deps.AttemptHandler.Register(quizzes)
	}
	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.RegisterQuizRoutes(quizzes)
		deps.SubmissionHandler.Register(protected.Group("/submissions"))
	}
	if deps.QuizHandler != nil {
		deps.QuizHandler.Register(quizzes)
	}

	if deps.StudentResultHandler != nil {
		results := protected.Group("/student/quiz-results", middleware.RequireRole(middleware.RoleStudent))
		deps.StudentResultHandler.Register(results)
	}

	if deps.TutorHandler != nil {
		tutor := protected.Group("/tutor", middleware.RateLimit("tutor", deps.TutorRateLimit, 0))
		deps.TutorHandler.Register(tutor)
	}
}
