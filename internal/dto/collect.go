package dto

import (
	"time"

	"github.com/octobees/contact-collector/internal/entity"
)

// CollectRequest is the payload for the collect-job endpoint.
type CollectRequest struct {
	Domain string `json:"domain"`
}

// RevealRequest asks for the full record of one previously collected email.
type RevealRequest struct {
	Domain string `json:"domain"`
	Email  string `json:"email"`
}

// ErrorResponse is the shared failure envelope.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// QuotaResponse reports a rejected increment along with the ledger position.
type QuotaResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Count int    `json:"count"`
	Limit int    `json:"limit"`
}

// EnqueueResponse is returned by the collect-job endpoint.
type EnqueueResponse struct {
	OK       bool   `json:"ok"`
	JobID    string `json:"jobId"`
	Domain   string `json:"domain,omitempty"`
	Status   string `json:"status"`
	Existing bool   `json:"existing,omitempty"`
}

// StatusResponse is returned by the collect-status endpoint.
type StatusResponse struct {
	OK               bool             `json:"ok"`
	JobID            string           `json:"jobId,omitempty"`
	Domain           string           `json:"domain"`
	Status           string           `json:"status"`
	Progress         *entity.Progress `json:"progress,omitempty"`
	HasStoredResults bool             `json:"hasStoredResults"`
	ItemCount        *int             `json:"itemCount,omitempty"`
	Total            *int             `json:"total,omitempty"`
	StoredAt         *time.Time       `json:"storedAt,omitempty"`
	FailedReason     string           `json:"failedReason,omitempty"`
	AttemptsMade     int              `json:"attemptsMade,omitempty"`
}

// PendingExportResponse tells the caller to poll status instead of exporting.
type PendingExportResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
	JobID  string `json:"jobId"`
}

// RevealResponse carries one unmasked contact record.
type RevealResponse struct {
	OK      bool                 `json:"ok"`
	Domain  string               `json:"domain"`
	Contact entity.ContactRecord `json:"contact"`
}

// CollectionsResponse lists every stored domain.
type CollectionsResponse struct {
	OK      bool     `json:"ok"`
	Domains []string `json:"domains"`
	Count   int      `json:"count"`
}

// DeletedResponse confirms removal of a stored result.
type DeletedResponse struct {
	OK     bool   `json:"ok"`
	Domain string `json:"domain"`
}
