package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/octobees/contact-collector/internal/entity"
)

// MemoryCollectionsRepository keeps collection results in process memory.
// It backs tests and the no-database dev mode; contents are lost on restart.
type MemoryCollectionsRepository struct {
	mu      sync.RWMutex
	results map[string]*entity.CollectionResult
}

// NewMemoryCollectionsRepository builds an empty in-memory store.
func NewMemoryCollectionsRepository() *MemoryCollectionsRepository {
	return &MemoryCollectionsRepository{results: make(map[string]*entity.CollectionResult)}
}

func (r *MemoryCollectionsRepository) Save(_ context.Context, res *entity.CollectionResult) bool {
	if res == nil || res.Domain == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[StorageKey(res.Domain)] = copyResult(res)
	return true
}

func (r *MemoryCollectionsRepository) Load(_ context.Context, domain string) *entity.CollectionResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[StorageKey(domain)]
	if !ok {
		return nil
	}
	return copyResult(res)
}

func (r *MemoryCollectionsRepository) Exists(_ context.Context, domain string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.results[StorageKey(domain)]
	return ok
}

func (r *MemoryCollectionsRepository) List(_ context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	domains := make([]string, 0, len(r.results))
	for domain := range r.results {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

func (r *MemoryCollectionsRepository) Delete(_ context.Context, domain string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := StorageKey(domain)
	if _, ok := r.results[key]; !ok {
		return false
	}
	delete(r.results, key)
	return true
}

func copyResult(res *entity.CollectionResult) *entity.CollectionResult {
	out := *res
	out.Items = append([]entity.ContactRecord(nil), res.Items...)
	if res.Metadata != nil {
		out.Metadata = make(map[string]any, len(res.Metadata))
		for k, v := range res.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

var _ CollectionsRepository = (*MemoryCollectionsRepository)(nil)

// MemoryUsageRepository is the in-memory counterpart of the usage ledger.
type MemoryUsageRepository struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryUsageRepository builds an empty in-memory ledger.
func NewMemoryUsageRepository() *MemoryUsageRepository {
	return &MemoryUsageRepository{counts: make(map[string]int)}
}

func (r *MemoryUsageRepository) Increment(_ context.Context, identity, period, kind string, amount, limit int) (int, bool, error) {
	if amount <= 0 {
		amount = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identity + "|" + period + "|" + kind
	current := r.counts[key]
	if current+amount > limit {
		return current, false, nil
	}
	r.counts[key] = current + amount
	return current + amount, true, nil
}

var _ UsageRepository = (*MemoryUsageRepository)(nil)
