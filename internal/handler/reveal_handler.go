package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-collector/internal/dto"
	middlewarepkg "github.com/octobees/contact-collector/internal/middleware"
	"github.com/octobees/contact-collector/internal/repository"
	"github.com/octobees/contact-collector/internal/service"
)

// RevealHandler discloses full contact records, gated by the reveal quota.
type RevealHandler struct {
	store repository.CollectionsRepository
	usage *service.UsageService
}

// NewRevealHandler constructs the reveal handler.
func NewRevealHandler(store repository.CollectionsRepository, usage *service.UsageService) *RevealHandler {
	return &RevealHandler{store: store, usage: usage}
}

// Reveal handles POST /reveal. The quota is only charged when the record
// actually exists.
func (h *RevealHandler) Reveal(c echo.Context) error {
	var req dto.RevealRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	domain, err := service.NormalizeDomain(req.Domain)
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid domain")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return Error(c, http.StatusBadRequest, "email is required")
	}

	stored := h.store.Load(c.Request().Context(), domain)
	if stored == nil {
		return Error(c, http.StatusNotFound, "no stored results for domain")
	}

	idx := -1
	for i, item := range stored.Items {
		if item.Email == email {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Error(c, http.StatusNotFound, "email not found in stored results")
	}

	identity := middlewarepkg.IdentityFromContext(c)
	plan := middlewarepkg.PlanFromContext(c)
	res, err := h.usage.Spend(c.Request().Context(), identity, plan, service.KindReveal, 1)
	if err != nil {
		if errors.Is(err, service.ErrQuotaExceeded) {
			return QuotaError(c, "reveal quota exceeded", res.Count, res.Limit)
		}
		return Error(c, http.StatusInternalServerError, "usage ledger unavailable")
	}

	return c.JSON(http.StatusOK, dto.RevealResponse{
		OK:      true,
		Domain:  domain,
		Contact: stored.Items[idx],
	})
}
