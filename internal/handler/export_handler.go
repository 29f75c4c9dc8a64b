package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-collector/internal/dto"
	"github.com/octobees/contact-collector/internal/entity"
	"github.com/octobees/contact-collector/internal/queue"
	"github.com/octobees/contact-collector/internal/repository"
	"github.com/octobees/contact-collector/internal/service"
)

// ExportHandler serves stored results as CSV attachments.
type ExportHandler struct {
	queue *queue.Queue
	store repository.CollectionsRepository
}

// NewExportHandler constructs the CSV export handler.
func NewExportHandler(q *queue.Queue, store repository.CollectionsRepository) *ExportHandler {
	return &ExportHandler{queue: q, store: store}
}

// Export handles GET /export-csv?domain=. A stored result always wins over
// an in-flight re-collection: callers get the stale data now and can watch
// storedAt on the status endpoint for freshness. Only when nothing is
// stored yet does an active job yield a 202.
func (h *ExportHandler) Export(c echo.Context) error {
	domain, err := service.NormalizeDomain(c.QueryParam("domain"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid domain")
	}

	stored := h.store.Load(c.Request().Context(), domain)
	if stored == nil {
		if job, ok := h.queue.FindByDomain(domain); ok && !job.State.Terminal() {
			return c.JSON(http.StatusAccepted, dto.PendingExportResponse{
				OK:     false,
				Status: string(job.State),
				JobID:  job.ID,
			})
		}
		return Error(c, http.StatusNotFound, "no stored results for domain")
	}

	body, err := renderCSV(stored.Items)
	if err != nil {
		return Error(c, http.StatusInternalServerError, "failed to render csv")
	}

	filename := fmt.Sprintf("%s_contacts_%s.csv", domain, time.Now().UTC().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Blob(http.StatusOK, "text/csv", body)
}

func renderCSV(items []entity.ContactRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"email", "name", "title", "confidence", "source"}); err != nil {
		return nil, err
	}
	for _, item := range items {
		row := []string{
			item.Email,
			item.Name,
			item.Title,
			strconv.FormatFloat(item.Confidence, 'f', -1, 64),
			item.Source,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
