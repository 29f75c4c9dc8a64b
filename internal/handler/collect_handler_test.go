package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-collector/internal/dto"
	"github.com/octobees/contact-collector/internal/logger"
	"github.com/octobees/contact-collector/internal/queue"
	"github.com/octobees/contact-collector/internal/repository"
	"github.com/octobees/contact-collector/internal/service"
)

func testQueue() *queue.Queue {
	return queue.New(testQueueConfig(), logger.Discard())
}

func postCollect(t *testing.T, h *CollectHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/collect-job", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Enqueue(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestCollectHandler_Validation(t *testing.T) {
	h := NewCollectHandler(testQueue(), service.NewUsageService(repository.NewMemoryUsageRepository()))

	t.Run("invalid payload", func(t *testing.T) {
		rec := postCollect(t, h, "{")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid domain", func(t *testing.T) {
		rec := postCollect(t, h, `{"domain":"not a domain"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCollectHandler_EnqueueIsIdempotent(t *testing.T) {
	h := NewCollectHandler(testQueue(), service.NewUsageService(repository.NewMemoryUsageRepository()))

	rec := postCollect(t, h, `{"domain":"example.com"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 on fresh enqueue, got %d", rec.Code)
	}
	var first dto.EnqueueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !first.OK || first.JobID == "" || first.Status != "queued" || first.Domain != "example.com" {
		t.Fatalf("unexpected fresh enqueue response: %+v", first)
	}

	rec = postCollect(t, h, `{"domain":"example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate enqueue, got %d", rec.Code)
	}
	var second dto.EnqueueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !second.Existing {
		t.Fatalf("expected existing=true on duplicate enqueue")
	}
	if second.JobID != first.JobID {
		t.Fatalf("expected same job id, got %s vs %s", first.JobID, second.JobID)
	}
}

func TestCollectHandler_NormalizesSubmittedDomain(t *testing.T) {
	h := NewCollectHandler(testQueue(), service.NewUsageService(repository.NewMemoryUsageRepository()))

	rec := postCollect(t, h, `{"domain":"https://www.Example.COM/about"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp dto.EnqueueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Domain != "example.com" {
		t.Fatalf("expected normalized domain, got %q", resp.Domain)
	}
}

func TestCollectHandler_SearchQuotaEnforced(t *testing.T) {
	h := NewCollectHandler(testQueue(), service.NewUsageService(repository.NewMemoryUsageRepository()))

	// Free plan allows 5 searches; distinct domains so dedupe never kicks in.
	for i := 0; i < 5; i++ {
		rec := postCollect(t, h, fmt.Sprintf(`{"domain":"domain%d.com"}`, i))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("search %d: expected 202, got %d", i+1, rec.Code)
		}
	}

	rec := postCollect(t, h, `{"domain":"domain6.com"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 once quota spent, got %d", rec.Code)
	}
	var quota dto.QuotaResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &quota); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if quota.Count != 5 || quota.Limit != 5 {
		t.Fatalf("expected counter pinned at limit, got %+v", quota)
	}
}

func TestCollectHandler_DuplicateDoesNotSpendQuota(t *testing.T) {
	usageRepo := repository.NewMemoryUsageRepository()
	h := NewCollectHandler(testQueue(), service.NewUsageService(usageRepo))

	for i := 0; i < 5; i++ {
		rec := postCollect(t, h, `{"domain":"example.com"}`)
		want := http.StatusAccepted
		if i > 0 {
			want = http.StatusOK
		}
		if rec.Code != want {
			t.Fatalf("enqueue %d: expected %d, got %d", i+1, want, rec.Code)
		}
	}

	// Only the first enqueue consumed a search.
	rec := postCollect(t, h, `{"domain":"other.com"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected quota available for second domain, got %d", rec.Code)
	}
}
