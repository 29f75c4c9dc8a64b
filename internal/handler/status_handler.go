package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-collector/internal/dto"
	"github.com/octobees/contact-collector/internal/entity"
	"github.com/octobees/contact-collector/internal/queue"
	"github.com/octobees/contact-collector/internal/repository"
	"github.com/octobees/contact-collector/internal/service"
)

// StatusHandler reports collection job state.
type StatusHandler struct {
	queue *queue.Queue
	store repository.CollectionsRepository
}

// NewStatusHandler constructs the status handler.
func NewStatusHandler(q *queue.Queue, store repository.CollectionsRepository) *StatusHandler {
	return &StatusHandler{queue: q, store: store}
}

// Status handles GET /collect-status?domain=|jobId=. When no job matches a
// domain but a stored result exists (the job may have been garbage
// collected), a completed status is synthesized from the store.
func (h *StatusHandler) Status(c echo.Context) error {
	jobID := c.QueryParam("jobId")
	rawDomain := c.QueryParam("domain")

	if jobID == "" && rawDomain == "" {
		return Error(c, http.StatusBadRequest, "domain or jobId is required")
	}

	if jobID != "" {
		job, ok := h.queue.Get(jobID)
		if !ok {
			return Error(c, http.StatusNotFound, "job not found")
		}
		return c.JSON(http.StatusOK, h.jobResponse(c, job))
	}

	domain, err := service.NormalizeDomain(rawDomain)
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid domain")
	}

	job, ok := h.queue.FindByDomain(domain)
	if !ok {
		stored := h.store.Load(c.Request().Context(), domain)
		if stored == nil {
			return Error(c, http.StatusNotFound, "no job or stored results for domain")
		}
		itemCount := len(stored.Items)
		total := stored.Total
		return c.JSON(http.StatusOK, dto.StatusResponse{
			OK:               true,
			Domain:           domain,
			Status:           string(entity.JobCompleted),
			HasStoredResults: true,
			ItemCount:        &itemCount,
			Total:            &total,
			StoredAt:         &stored.CollectedAt,
		})
	}

	return c.JSON(http.StatusOK, h.jobResponse(c, job))
}

func (h *StatusHandler) jobResponse(c echo.Context, job *entity.CollectionJob) dto.StatusResponse {
	resp := dto.StatusResponse{
		OK:           true,
		JobID:        job.ID,
		Domain:       job.Domain,
		Status:       string(job.State),
		AttemptsMade: job.AttemptsMade,
		FailedReason: job.FailedReason,
	}
	if job.Progress.Status != "" {
		progress := job.Progress
		resp.Progress = &progress
	}

	if job.State == entity.JobCompleted {
		if stored := h.store.Load(c.Request().Context(), job.Domain); stored != nil {
			itemCount := len(stored.Items)
			total := stored.Total
			resp.HasStoredResults = true
			resp.ItemCount = &itemCount
			resp.Total = &total
			resp.StoredAt = &stored.CollectedAt
		}
	}
	return resp
}
