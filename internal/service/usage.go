package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/octobees/contact-collector/internal/repository"
)

// ErrQuotaExceeded indicates the identity spent its plan allowance for the
// current period.
var ErrQuotaExceeded = errors.New("quota exceeded")

// Usage kinds tracked by the ledger.
const (
	KindSearch = "search"
	KindReveal = "reveal"
)

// PlanLimits caps each usage kind for one billing plan.
type PlanLimits struct {
	Searches int
	Reveals  int
}

// plans maps plan names to their monthly allowances. Unknown plans fall
// back to free.
var plans = map[string]PlanLimits{
	"free":    {Searches: 5, Reveals: 2},
	"starter": {Searches: 50, Reveals: 25},
	"growth":  {Searches: 500, Reveals: 250},
	"scale":   {Searches: 5000, Reveals: 2500},
}

// LimitsForPlan resolves the allowance table for a plan name.
func LimitsForPlan(plan string) PlanLimits {
	if limits, ok := plans[strings.ToLower(strings.TrimSpace(plan))]; ok {
		return limits
	}
	return plans["free"]
}

// UsageResult reports the ledger position after an increment attempt.
type UsageResult struct {
	Count int
	Limit int
}

// UsageService enforces plan quotas over a calendar-month period.
type UsageService struct {
	repo repository.UsageRepository
	now  func() time.Time
}

// NewUsageService builds a quota service over the given ledger.
func NewUsageService(repo repository.UsageRepository) *UsageService {
	return &UsageService{repo: repo, now: time.Now}
}

// Spend consumes amount units of kind for identity under plan. Over-quota
// attempts return ErrQuotaExceeded and leave the counter untouched.
func (s *UsageService) Spend(ctx context.Context, identity, plan, kind string, amount int) (UsageResult, error) {
	limits := LimitsForPlan(plan)

	var limit int
	switch kind {
	case KindSearch:
		limit = limits.Searches
	case KindReveal:
		limit = limits.Reveals
	default:
		return UsageResult{}, fmt.Errorf("unknown usage kind %q", kind)
	}

	period := s.now().UTC().Format("2006-01")
	count, accepted, err := s.repo.Increment(ctx, identity, period, kind, amount, limit)
	if err != nil {
		return UsageResult{}, fmt.Errorf("spend %s quota: %w", kind, err)
	}
	if !accepted {
		return UsageResult{Count: count, Limit: limit}, ErrQuotaExceeded
	}
	return UsageResult{Count: count, Limit: limit}, nil
}
