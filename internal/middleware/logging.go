package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-collector/internal/logger"
)

// Logging writes one structured line for each HTTP request.
func Logging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			latency := time.Since(start)

			if err != nil {
				c.Error(err)
			}

			log.WithFields(map[string]any{
				"request_id": RequestIDFromContext(c),
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     c.Response().Status,
				"latency":    latency.String(),
			}).Info("request")

			return err
		}
	}
}
