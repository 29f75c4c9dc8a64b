package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-collector/internal/dto"
)

// Error sends the shared failure envelope.
func Error(c echo.Context, status int, message string) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, dto.ErrorResponse{OK: false, Error: message})
}

// QuotaError reports an over-quota rejection with the ledger position.
func QuotaError(c echo.Context, message string, count, limit int) error {
	return c.JSON(http.StatusForbidden, dto.QuotaResponse{
		OK:    false,
		Error: message,
		Count: count,
		Limit: limit,
	})
}
