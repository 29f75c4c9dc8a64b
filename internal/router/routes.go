package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-collector/internal/auth"
	"github.com/octobees/contact-collector/internal/config"
	"github.com/octobees/contact-collector/internal/handler"
	middlewarepkg "github.com/octobees/contact-collector/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Collect     *handler.CollectHandler
	Status      *handler.StatusHandler
	Export      *handler.ExportHandler
	Reveal      *handler.RevealHandler
	Collections *handler.CollectionsHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"ok": true, "status": "healthy"})
	})

	identified := e.Group("", middlewarepkg.Identity(jwtManager))

	identified.POST("/collect-job", handlers.Collect.Enqueue, middlewarepkg.CollectRateLimiter(cfg.RateLimitCollect))
	identified.GET("/collect-status", handlers.Status.Status)
	identified.GET("/export-csv", handlers.Export.Export)
	identified.POST("/reveal", handlers.Reveal.Reveal)
	identified.GET("/collections", handlers.Collections.List)
	identified.DELETE("/collections/:domain", handlers.Collections.Delete)
}
