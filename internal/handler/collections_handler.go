package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-collector/internal/dto"
	"github.com/octobees/contact-collector/internal/repository"
	"github.com/octobees/contact-collector/internal/service"
)

// CollectionsHandler exposes the stored-result inventory.
type CollectionsHandler struct {
	store repository.CollectionsRepository
}

// NewCollectionsHandler constructs the collections handler.
func NewCollectionsHandler(store repository.CollectionsRepository) *CollectionsHandler {
	return &CollectionsHandler{store: store}
}

// List handles GET /collections.
func (h *CollectionsHandler) List(c echo.Context) error {
	domains := h.store.List(c.Request().Context())
	if domains == nil {
		domains = []string{}
	}
	return c.JSON(http.StatusOK, dto.CollectionsResponse{
		OK:      true,
		Domains: domains,
		Count:   len(domains),
	})
}

// Delete handles DELETE /collections/:domain.
func (h *CollectionsHandler) Delete(c echo.Context) error {
	domain, err := service.NormalizeDomain(c.Param("domain"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid domain")
	}

	if !h.store.Delete(c.Request().Context(), domain) {
		return Error(c, http.StatusNotFound, "no stored results for domain")
	}
	return c.JSON(http.StatusOK, dto.DeletedResponse{OK: true, Domain: domain})
}
