package handler

import (
	"context"
	"testing"
	"time"

	"github.com/octobees/contact-collector/internal/config"
	"github.com/octobees/contact-collector/internal/entity"
	"github.com/octobees/contact-collector/internal/hunter"
	"github.com/octobees/contact-collector/internal/logger"
	"github.com/octobees/contact-collector/internal/queue"
	"github.com/octobees/contact-collector/internal/repository"
)

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		Concurrency: 1,
		JobsPerSec:  1000,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		Retention:   time.Hour,
	}
}

type stubCollector struct {
	items []entity.ContactRecord
	total int
}

func (s stubCollector) CollectDomain(ctx context.Context, domain string, opts hunter.Options) (*hunter.Result, error) {
	return &hunter.Result{Items: s.items, Total: s.total}, nil
}

// runJobToCompletion drives one collection job through a real worker pool
// backed by a stub collector and returns the settled job.
func runJobToCompletion(t *testing.T, q *queue.Queue, store repository.CollectionsRepository, domain string, items []entity.ContactRecord, total int) *entity.CollectionJob {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	pool := queue.NewPool(q, stubCollector{items: items, total: total}, store, testQueueConfig(), 0, logger.Discard())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})

	job, _ := q.Enqueue(domain)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, ok := q.Get(job.ID); ok && got.State == entity.JobCompleted {
			return got
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job for %s did not complete in time", domain)
	return nil
}
