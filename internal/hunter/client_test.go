package hunter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/octobees/contact-collector/internal/config"
	"github.com/octobees/contact-collector/internal/entity"
	"github.com/octobees/contact-collector/internal/logger"
)

func newTestClient(t *testing.T, baseURL string, pageSize, maxResults int) *Client {
	t.Helper()
	cfg := config.CollectorConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		PageSize:   pageSize,
		MaxResults: maxResults,
		PageDelay:  time.Millisecond,
	}
	return NewClient(cfg, logger.Discard(), WithBackoff(time.Millisecond, 5*time.Millisecond))
}

func TestCollectDomain_MissingAPIKey(t *testing.T) {
	client := NewClient(config.CollectorConfig{PageSize: 100, MaxResults: 2000}, logger.Discard())
	if _, err := client.CollectDomain(context.Background(), "example.com", Options{}); err != ErrMissingAPIKey {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestCollectDomain_PaginatesAndDedupes(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("missing api_key query param")
		}
		if r.URL.Query().Get("offset") == "0" {
			fmt.Fprint(w, `{"data":{"domain":"example.com","total":3,"emails":[
				{"value":"alice@example.com","first_name":"Alice","last_name":"Smith","position":"CEO","confidence":95},
				{"value":"Alice@Example.com","first_name":"Alice","last_name":"Smith","confidence":90},
				{"value":"bob@example.com","name":"Bob Jones","confidence":80,"sources":[{"uri":"https://example.com/team"}]}
			]}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"domain":"example.com","emails":[]}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 100, 2000)

	var statuses []string
	res, err := client.CollectDomain(context.Background(), "example.com", Options{
		OnProgress: func(p entity.Progress) { statuses = append(statuses, p.Status) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 deduplicated items, got %d", len(res.Items))
	}
	if res.Items[0].Email != "alice@example.com" || res.Items[1].Email != "bob@example.com" {
		t.Fatalf("expected insertion order preserved, got %+v", res.Items)
	}
	if res.Items[0].Confidence != 0.95 {
		t.Fatalf("expected first occurrence kept (confidence 0.95), got %v", res.Items[0].Confidence)
	}
	if res.Items[1].Source != "https://example.com/team" {
		t.Fatalf("expected source uri, got %q", res.Items[1].Source)
	}
	if res.Total != 3 {
		t.Fatalf("expected provider-reported total 3, got %d", res.Total)
	}
	if requests != 2 {
		t.Fatalf("expected 2 page requests, got %d", requests)
	}
	if len(statuses) == 0 || statuses[0] != entity.ProgressFetching {
		t.Fatalf("expected fetching progress first, got %v", statuses)
	}
}

func TestCollectDomain_RateLimitBackoff(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"data":{"total":1,"emails":[{"value":"alice@example.com","confidence":50}]}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 100, 2000)

	var backoffs []int64
	res, err := client.CollectDomain(context.Background(), "example.com", Options{
		OnProgress: func(p entity.Progress) {
			if p.Status == entity.ProgressRateLimited {
				backoffs = append(backoffs, p.BackoffMs)
			}
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected retry to eventually succeed, got %d items", len(res.Items))
	}
	if requests != 3 {
		t.Fatalf("expected 3 requests (2 rate limited + 1 ok), got %d", requests)
	}
	if len(backoffs) != 2 || backoffs[1] < backoffs[0] {
		t.Fatalf("expected growing backoff reports, got %v", backoffs)
	}
}

func TestCollectDomain_MalformedPayloadStopsGracefully(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			fmt.Fprint(w, `{"data":{"total":50,"emails":[{"value":"alice@example.com","confidence":70}]}}`)
			return
		}
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 100, 2000)

	res, err := client.CollectDomain(context.Background(), "example.com", Options{})
	if err != nil {
		t.Fatalf("expected graceful stop, got error: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected partial result preserved, got %d items", len(res.Items))
	}
}

func TestCollectDomain_SafetyCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		fmt.Fprintf(w, `{"data":{"total":1000,"emails":[
			{"value":"a%s@example.com"},{"value":"b%s@example.com"}
		]}}`, offset, offset)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2, 3)

	res, err := client.CollectDomain(context.Background(), "example.com", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Items) != 3 {
		t.Fatalf("expected collection capped at 3 items, got %d", len(res.Items))
	}
}

func TestCollectDomain_CacheHit(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"data":{"emails":[]}}`)
	}))
	defer server.Close()

	cache := NewMemoryCache(time.Minute)
	cache.Set("example.com", &Result{
		Items: []entity.ContactRecord{{Email: "cached@example.com"}},
		Total: 1,
	})

	client := newTestClient(t, server.URL, 100, 2000)
	res, err := client.CollectDomain(context.Background(), "example.com", Options{Cache: cache})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 0 {
		t.Fatalf("expected provider untouched on cache hit, got %d requests", requests)
	}
	if len(res.Items) != 1 || res.Items[0].Email != "cached@example.com" {
		t.Fatalf("unexpected cached result: %+v", res)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("example.com", &Result{Total: 1})
	if _, ok := cache.Get("example.com"); !ok {
		t.Fatalf("expected fresh entry to hit")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := cache.Get("example.com"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestNormalizeConfidence(t *testing.T) {
	if got := normalizeConfidence(floatPtr(95)); got != 0.95 {
		t.Fatalf("expected 0.95, got %v", got)
	}
	if got := normalizeConfidence(nil); got != 0 {
		t.Fatalf("expected 0 for absent confidence, got %v", got)
	}
	if got := normalizeConfidence(floatPtr(0.5)); got != 0.5 {
		t.Fatalf("expected pass-through for [0,1] scale, got %v", got)
	}
	if got := normalizeConfidence(floatPtr(-10)); got != 0 {
		t.Fatalf("expected negative clamped to 0, got %v", got)
	}
}

func TestNormalizeRecord(t *testing.T) {
	record, ok := normalizeRecord(rawEmail{
		Value:       "  John.Doe@Example.COM ",
		FirstName:   "John",
		LastName:    "Doe",
		Position:    "CTO",
		PhoneNumber: "+1 415 555 2671",
	})
	if !ok {
		t.Fatalf("expected record to be kept")
	}
	if record.Email != "john.doe@example.com" {
		t.Fatalf("expected lowercased trimmed email, got %q", record.Email)
	}
	if record.Name != "John Doe" || record.Title != "CTO" {
		t.Fatalf("unexpected name/title: %+v", record)
	}
	if record.Phone != "+14155552671" {
		t.Fatalf("expected E.164 phone, got %q", record.Phone)
	}

	if _, ok := normalizeRecord(rawEmail{Name: "No Email"}); ok {
		t.Fatalf("expected record without email to be dropped")
	}
}

func floatPtr(v float64) *float64 { return &v }
