package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-quiz-api/internal/observability"
)

// Observability records request metrics for /api routes and writes one
// structured log line per request, tagged with the caller and quiz id.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if !strings.HasPrefix(c.Path(), "/api/") {
			return err
		}

		elapsed := time.Since(start)
		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)

		observability.APIRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.APILatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.APIErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		event := requestEvent(logger, status).
			Str("correlation_id", GetCorrelationID(c)).
			Str("method", method).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Str("latency_bucket", latencyBucket(elapsed))
		if id, ok := c.Locals("user_id").(uint); ok && id > 0 {
			event = event.Uint("user_id", id).Str("role", normalizeRoleValue(c.Locals("user_role")))
		}
		if quizID := c.Params("id"); quizID != "" && strings.Contains(route, "/quizzes/") {
			event = event.Str("quiz_id", quizID)
		}
		event.Msg("request completed")

		return err
	}
}

func requestEvent(logger zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= fiber.StatusInternalServerError:
		return logger.Error()
	case status >= fiber.StatusBadRequest:
		return logger.Warn()
	default:
		return logger.Info()
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

func latencyBucket(d time.Duration) string {
	for _, limit := range []time.Duration{25, 50, 100, 250, 500} {
		if d <= limit*time.Millisecond {
			return "<=" + strconv.Itoa(int(limit)) + "ms"
		}
	}
	return ">500ms"
}
