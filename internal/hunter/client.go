package hunter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/nyaruka/phonenumbers"

	"github.com/octobees/contact-collector/internal/config"
	"github.com/octobees/contact-collector/internal/entity"
	"github.com/octobees/contact-collector/internal/logger"
)

// ErrMissingAPIKey indicates the provider API key was never configured.
var ErrMissingAPIKey = errors.New("hunter api key is not configured")

const (
	defaultBackoffBase = time.Second
	defaultBackoffCap  = 30 * time.Second
	defaultPhoneRegion = "US"
)

// Result is the aggregate outcome of collecting one domain from the provider.
type Result struct {
	Items []entity.ContactRecord
	Total int
}

// Cache optionally short-circuits a collection run. A hit returns without
// touching the provider at all.
type Cache interface {
	Get(domain string) (*Result, bool)
	Set(domain string, res *Result)
}

// Options carries per-call hooks for CollectDomain.
type Options struct {
	OnProgress func(entity.Progress)
	Cache      Cache
}

// Client pages through the provider's domain-search API and normalizes
// responses into contact records.
type Client struct {
	http        *resty.Client
	apiKey      string
	pageSize    int
	maxResults  int
	pageDelay   time.Duration
	backoffBase time.Duration
	backoffCap  time.Duration
	log         *logger.Logger
}

// Option configures optional client behaviour.
type Option func(*Client)

// WithBackoff overrides the rate-limit backoff window, used by tests.
func WithBackoff(base, cap time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.backoffBase = base
		}
		if cap > 0 {
			c.backoffCap = cap
		}
	}
}

// WithPageDelay overrides the pause between successful page fetches.
func WithPageDelay(d time.Duration) Option {
	return func(c *Client) {
		c.pageDelay = d
	}
}

// NewClient builds a provider client from configuration.
func NewClient(cfg config.CollectorConfig, log *logger.Logger, opts ...Option) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")

	c := &Client{
		http:        httpClient,
		apiKey:      cfg.APIKey,
		pageSize:    cfg.PageSize,
		maxResults:  cfg.MaxResults,
		pageDelay:   cfg.PageDelay,
		backoffBase: defaultBackoffBase,
		backoffCap:  defaultBackoffCap,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse mirrors the provider payload. Older API revisions put the
// record count under meta.results instead of data.total.
type searchResponse struct {
	Data struct {
		Domain string     `json:"domain"`
		Total  *int       `json:"total"`
		Emails []rawEmail `json:"emails"`
	} `json:"data"`
	Meta struct {
		Results *int `json:"results"`
	} `json:"meta"`
}

type rawEmail struct {
	Value       string   `json:"value"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Position    string   `json:"position"`
	Title       string   `json:"title"`
	Confidence  *float64 `json:"confidence"`
	PhoneNumber string   `json:"phone_number"`
	Sources     []struct {
		URI string `json:"uri"`
	} `json:"sources"`
}

// CollectDomain fetches every available contact record for the domain,
// following pagination until the provider runs dry, the reported total is
// reached, or the safety cap kicks in. HTTP 429 responses are retried with
// exponential backoff; any other provider failure stops the run gracefully
// and returns what was accumulated so far.
func (c *Client) CollectDomain(ctx context.Context, domain string, opts Options) (*Result, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	if opts.Cache != nil {
		if cached, ok := opts.Cache.Get(domain); ok {
			c.log.With("domain", domain).Debug("collection served from cache")
			return cached, nil
		}
	}

	var (
		items         []entity.ContactRecord
		seen          = make(map[string]struct{})
		reportedTotal int
		backoffStreak int
		page          = 1
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report(opts, entity.Progress{Status: entity.ProgressFetching, Page: page, Collected: len(items), Total: reportedTotal})

		offset := (page - 1) * c.pageSize
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"domain":  domain,
				"limit":   strconv.Itoa(c.pageSize),
				"offset":  strconv.Itoa(offset),
				"api_key": c.apiKey,
			}).
			Get("/domain-search")
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.WithFields(map[string]any{"domain": domain, "page": page}).
				WithError(err).Warn("provider request failed, stopping collection")
			break
		}

		if resp.StatusCode() == http.StatusTooManyRequests {
			backoffStreak++
			delay := backoffDelay(c.backoffBase, c.backoffCap, backoffStreak)
			report(opts, entity.Progress{Status: entity.ProgressRateLimited, Page: page, Collected: len(items), Total: reportedTotal, BackoffMs: delay.Milliseconds()})
			c.log.WithFields(map[string]any{"domain": domain, "page": page, "backoff": delay}).
				Info("provider rate limited, backing off")
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode() != http.StatusOK {
			c.log.WithFields(map[string]any{"domain": domain, "page": page, "status": resp.StatusCode()}).
				Warn("provider returned unexpected status, stopping collection")
			break
		}

		var payload searchResponse
		if err := json.Unmarshal(resp.Body(), &payload); err != nil {
			c.log.WithFields(map[string]any{"domain": domain, "page": page}).
				WithError(err).Warn("provider returned malformed payload, stopping collection")
			break
		}

		backoffStreak = 0

		if reportedTotal == 0 {
			if payload.Data.Total != nil {
				reportedTotal = *payload.Data.Total
			} else if payload.Meta.Results != nil {
				reportedTotal = *payload.Meta.Results
			}
		}

		if len(payload.Data.Emails) == 0 {
			break
		}

		report(opts, entity.Progress{Status: entity.ProgressNormalizing, Page: page, Collected: len(items), Total: reportedTotal})

		capped := false
		for _, raw := range payload.Data.Emails {
			record, ok := normalizeRecord(raw)
			if !ok {
				continue
			}
			if _, dup := seen[record.Email]; dup {
				continue
			}
			seen[record.Email] = struct{}{}
			items = append(items, record)
			if len(items) >= c.maxResults {
				capped = true
				break
			}
		}

		if capped {
			c.log.WithFields(map[string]any{"domain": domain, "cap": c.maxResults}).
				Warn("collection reached safety cap")
			break
		}
		if reportedTotal > 0 && len(items) >= reportedTotal {
			break
		}

		page++
		if err := sleep(ctx, c.pageDelay); err != nil {
			return nil, err
		}
	}

	if reportedTotal < len(items) {
		reportedTotal = len(items)
	}

	res := &Result{Items: items, Total: reportedTotal}
	if opts.Cache != nil {
		opts.Cache.Set(domain, res)
	}
	return res, nil
}

// normalizeRecord maps one raw provider record onto a ContactRecord. Records
// without a usable email address are dropped.
func normalizeRecord(raw rawEmail) (entity.ContactRecord, bool) {
	email := strings.ToLower(strings.TrimSpace(raw.Value))
	if email == "" {
		email = strings.ToLower(strings.TrimSpace(raw.Email))
	}
	if email == "" {
		return entity.ContactRecord{}, false
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = strings.TrimSpace(strings.TrimSpace(raw.FirstName) + " " + strings.TrimSpace(raw.LastName))
	}

	title := strings.TrimSpace(raw.Position)
	if title == "" {
		title = strings.TrimSpace(raw.Title)
	}

	var source string
	if len(raw.Sources) > 0 {
		source = strings.TrimSpace(raw.Sources[0].URI)
	}

	return entity.ContactRecord{
		Email:      email,
		Name:       name,
		Title:      title,
		Confidence: normalizeConfidence(raw.Confidence),
		Source:     source,
		Phone:      normalizePhone(raw.PhoneNumber),
	}, true
}

// normalizeConfidence maps the provider's 0-100 scale onto [0,1]. Values
// already in [0,1] pass through, absent values become 0.
func normalizeConfidence(v *float64) float64 {
	if v == nil {
		return 0
	}
	score := *v
	if score > 1 {
		score = score / 100
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	number, err := phonenumbers.Parse(raw, defaultPhoneRegion)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

func backoffDelay(base, cap time.Duration, streak int) time.Duration {
	delay := base
	for i := 1; i < streak; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func report(opts Options, p entity.Progress) {
	if opts.OnProgress != nil {
		opts.OnProgress(p)
	}
}
