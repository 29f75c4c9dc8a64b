package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/octobees/contact-collector/internal/config"
	"github.com/octobees/contact-collector/internal/entity"
	"github.com/octobees/contact-collector/internal/hunter"
	"github.com/octobees/contact-collector/internal/logger"
	"github.com/octobees/contact-collector/internal/repository"
)

// ErrPersistFailed indicates the collection store rejected the write. The
// job is retried under the queue's backoff policy.
var ErrPersistFailed = errors.New("failed to persist collection result")

// errMissingDomain marks a malformed job; retrying cannot help.
var errMissingDomain = errors.New("job has no domain")

// Collector abstracts the provider client for the worker pipeline.
type Collector interface {
	CollectDomain(ctx context.Context, domain string, opts hunter.Options) (*hunter.Result, error)
}

// Pool executes queued collection jobs. Job starts are gated by a token
// bucket so a burst of enqueues cannot hammer the provider across domains,
// independent of the per-domain pagination delay inside the client.
type Pool struct {
	queue       *Queue
	collector   Collector
	store       repository.CollectionsRepository
	limiter     *rate.Limiter
	concurrency int
	timeout     time.Duration
	retention   time.Duration
	log         *logger.Logger
	wg          sync.WaitGroup
}

// NewPool wires a worker pool over the queue, provider client and store.
func NewPool(q *Queue, collector Collector, store repository.CollectionsRepository, cfg config.QueueConfig, timeout time.Duration, log *logger.Logger) *Pool {
	jobsPerSec := cfg.JobsPerSec
	if jobsPerSec <= 0 {
		jobsPerSec = 10
	}
	return &Pool{
		queue:       q,
		collector:   collector,
		store:       store,
		limiter:     rate.NewLimiter(rate.Limit(jobsPerSec), 1),
		concurrency: cfg.Concurrency,
		timeout:     timeout,
		retention:   cfg.Retention,
		log:         log,
	}
}

// Start launches the worker goroutines and the terminal-job janitor. They
// run until ctx is cancelled; use Wait to block for drain.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go func(slot int) {
			defer p.wg.Done()
			p.run(ctx, slot)
		}(i)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.janitor(ctx)
	}()
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, slot int) {
	log := p.log.With("worker", slot)
	for {
		id, ok := p.queue.Next(ctx)
		if !ok {
			return
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		p.process(ctx, id, log)
	}
}

// process executes the fetch, normalize and persist pipeline for one job.
func (p *Pool) process(ctx context.Context, id string, log *logger.Logger) {
	job, ok := p.queue.markActive(id)
	if !ok {
		return
	}
	log = log.WithFields(map[string]any{"job_id": id, "domain": job.Domain, "attempt": job.AttemptsMade})

	if job.Domain == "" {
		p.queue.UpdateProgress(id, entity.Progress{Status: entity.ProgressFailed, Error: errMissingDomain.Error()})
		p.queue.fail(id, errMissingDomain.Error(), false)
		return
	}

	jobCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log.Info("collection started")

	res, err := p.collector.CollectDomain(jobCtx, job.Domain, hunter.Options{
		OnProgress: func(progress entity.Progress) {
			p.queue.UpdateProgress(id, progress)
		},
	})
	if err != nil {
		p.failJob(id, err, log)
		return
	}

	stored := &entity.CollectionResult{
		Domain:      job.Domain,
		Items:       res.Items,
		Total:       res.Total,
		CollectedAt: time.Now().UTC(),
		Metadata:    map[string]any{"job_id": id, "attempts": job.AttemptsMade},
	}
	if !p.store.Save(jobCtx, stored) {
		p.failJob(id, ErrPersistFailed, log)
		return
	}

	p.queue.UpdateProgress(id, entity.Progress{
		Status:    entity.ProgressCompleted,
		Collected: len(res.Items),
		Total:     res.Total,
	})
	p.queue.complete(id)
	log.WithFields(map[string]any{"items": len(res.Items), "total": res.Total}).Info("collection completed")
}

func (p *Pool) failJob(id string, err error, log *logger.Logger) {
	p.queue.UpdateProgress(id, entity.Progress{Status: entity.ProgressFailed, Error: err.Error()})

	// A missing API key cannot be fixed by retrying.
	retryable := !errors.Is(err, hunter.ErrMissingAPIKey)
	p.queue.fail(id, err.Error(), retryable)
	log.WithError(err).Warn("collection attempt failed")
}

func (p *Pool) janitor(ctx context.Context) {
	interval := p.retention
	if interval <= 0 || interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := p.queue.Sweep(); removed > 0 {
				p.log.With("removed", removed).Debug("swept terminal jobs")
			}
		}
	}
}
