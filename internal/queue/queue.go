package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/octobees/contact-collector/internal/config"
	"github.com/octobees/contact-collector/internal/entity"
	"github.com/octobees/contact-collector/internal/logger"
)

// Queue is an in-memory job queue with per-domain single-flight semantics:
// enqueueing a domain that already has a live job returns that job instead
// of creating a duplicate. Failed jobs are retried with exponential backoff
// up to a configured attempt ceiling; terminal jobs are swept after a
// retention window.
type Queue struct {
	mu          sync.Mutex
	jobs        map[string]*entity.CollectionJob
	pending     chan string
	maxAttempts int
	backoffBase time.Duration
	retention   time.Duration
	log         *logger.Logger
	now         func() time.Time
	closed      bool
}

// New builds an empty queue using the given retry policy.
func New(cfg config.QueueConfig, log *logger.Logger) *Queue {
	return &Queue{
		jobs:        make(map[string]*entity.CollectionJob),
		pending:     make(chan string, 1024),
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		retention:   cfg.Retention,
		log:         log,
		now:         time.Now,
	}
}

// Enqueue registers a collection job for domain. When a live job (waiting,
// delayed or active) already targets the domain, that job is returned with
// existing=true and nothing new is created.
func (q *Queue) Enqueue(domain string) (*entity.CollectionJob, bool) {
	q.mu.Lock()

	for _, job := range q.jobs {
		if job.Domain == domain && !job.State.Terminal() {
			snapshot := *job
			q.mu.Unlock()
			return &snapshot, true
		}
	}

	now := q.now()
	job := &entity.CollectionJob{
		ID:        fmt.Sprintf("%s-%d", domain, now.UnixMilli()),
		Domain:    domain,
		State:     entity.JobWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs[job.ID] = job
	snapshot := *job
	q.mu.Unlock()

	q.dispatch(job.ID)
	return &snapshot, false
}

// Get returns a snapshot of the job with the given id.
func (q *Queue) Get(id string) (*entity.CollectionJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// FindByDomain returns the most relevant job for domain: a live one if any,
// otherwise the most recently updated terminal one.
func (q *Queue) FindByDomain(domain string) (*entity.CollectionJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var best *entity.CollectionJob
	for _, job := range q.jobs {
		if job.Domain != domain {
			continue
		}
		switch {
		case best == nil:
			best = job
		case best.State.Terminal() && !job.State.Terminal():
			best = job
		case best.State.Terminal() == job.State.Terminal() && job.UpdatedAt.After(best.UpdatedAt):
			best = job
		}
	}
	if best == nil {
		return nil, false
	}
	snapshot := *best
	return &snapshot, true
}

// HasLiveJob reports whether a non-terminal job exists for domain.
func (q *Queue) HasLiveJob(domain string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.jobs {
		if job.Domain == domain && !job.State.Terminal() {
			return true
		}
	}
	return false
}

// UpdateProgress records the latest pipeline position, last write wins.
func (q *Queue) UpdateProgress(id string, p entity.Progress) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[id]; ok {
		job.Progress = p
		job.UpdatedAt = q.now()
	}
}

// Next blocks until a job is ready for execution or the context ends.
func (q *Queue) Next(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case id := <-q.pending:
		return id, true
	}
}

// markActive transitions the job to active and counts the attempt.
func (q *Queue) markActive(id string) (*entity.CollectionJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok || job.State.Terminal() {
		return nil, false
	}
	job.State = entity.JobActive
	job.AttemptsMade++
	job.UpdatedAt = q.now()
	snapshot := *job
	return &snapshot, true
}

// complete settles the job as completed.
func (q *Queue) complete(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job, ok := q.jobs[id]; ok {
		job.State = entity.JobCompleted
		job.UpdatedAt = q.now()
	}
}

// fail either schedules a delayed retry or settles the job as failed,
// depending on retryability and the attempt ceiling.
func (q *Queue) fail(id, reason string, retryable bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}

	attempts := job.AttemptsMade
	if !retryable || attempts >= q.maxAttempts {
		job.State = entity.JobFailed
		job.FailedReason = reason
		job.UpdatedAt = q.now()
		q.mu.Unlock()
		q.log.WithFields(map[string]any{"job_id": id, "attempts": attempts, "reason": reason}).
			Warn("job settled as failed")
		return
	}

	job.State = entity.JobDelayed
	job.FailedReason = reason
	job.UpdatedAt = q.now()
	delay := q.backoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	q.mu.Unlock()

	q.log.WithFields(map[string]any{"job_id": id, "attempt": attempts, "delay": delay}).
		Info("job scheduled for retry")
	time.AfterFunc(delay, func() { q.promote(id) })
}

// promote moves a delayed job back to waiting and redelivers it.
func (q *Queue) promote(id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.State != entity.JobDelayed || q.closed {
		q.mu.Unlock()
		return
	}
	job.State = entity.JobWaiting
	job.UpdatedAt = q.now()
	q.mu.Unlock()

	q.dispatch(id)
}

// dispatch hands the job id to the worker channel. The buffer is large
// enough that overflow means the system is badly oversubscribed; in that
// case the job is settled as failed rather than silently dropped.
func (q *Queue) dispatch(id string) {
	select {
	case q.pending <- id:
	default:
		q.fail(id, "queue backlog full", false)
	}
}

// Sweep removes terminal jobs whose last update is older than the
// retention window. Returns the number of jobs removed.
func (q *Queue) Sweep() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := q.now().Add(-q.retention)
	removed := 0
	for id, job := range q.jobs {
		if job.State.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(q.jobs, id)
			removed++
		}
	}
	return removed
}

// Close stops delayed jobs from re-entering the queue.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
