package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-collector/internal/dto"
	middlewarepkg "github.com/octobees/contact-collector/internal/middleware"
	"github.com/octobees/contact-collector/internal/queue"
	"github.com/octobees/contact-collector/internal/service"
)

// CollectHandler enqueues domain collection jobs.
type CollectHandler struct {
	queue *queue.Queue
	usage *service.UsageService
}

// NewCollectHandler constructs the enqueue handler.
func NewCollectHandler(q *queue.Queue, usage *service.UsageService) *CollectHandler {
	return &CollectHandler{queue: q, usage: usage}
}

// Enqueue handles POST /collect-job. A duplicate enqueue for a domain with a
// live job returns that job without consuming quota.
func (h *CollectHandler) Enqueue(c echo.Context) error {
	var req dto.CollectRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	domain, err := service.NormalizeDomain(req.Domain)
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid domain")
	}

	if job, ok := h.queue.FindByDomain(domain); ok && !job.State.Terminal() {
		return c.JSON(http.StatusOK, dto.EnqueueResponse{
			OK:       true,
			JobID:    job.ID,
			Status:   string(job.State),
			Existing: true,
		})
	}

	identity := middlewarepkg.IdentityFromContext(c)
	plan := middlewarepkg.PlanFromContext(c)
	res, err := h.usage.Spend(c.Request().Context(), identity, plan, service.KindSearch, 1)
	if err != nil {
		if errors.Is(err, service.ErrQuotaExceeded) {
			return QuotaError(c, "search quota exceeded", res.Count, res.Limit)
		}
		return Error(c, http.StatusInternalServerError, "usage ledger unavailable")
	}

	job, existing := h.queue.Enqueue(domain)
	if existing {
		return c.JSON(http.StatusOK, dto.EnqueueResponse{
			OK:       true,
			JobID:    job.ID,
			Status:   string(job.State),
			Existing: true,
		})
	}

	return c.JSON(http.StatusAccepted, dto.EnqueueResponse{
		OK:     true,
		JobID:  job.ID,
		Domain: domain,
		Status: "queued",
	})
}
