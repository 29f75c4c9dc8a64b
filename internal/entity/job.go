package entity

import "time"

// JobState tracks a collection job through its lifecycle.
type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobDelayed   JobState = "delayed"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Progress status values reported by the collection pipeline.
const (
	ProgressFetching    = "fetching"
	ProgressRateLimited = "rate_limited"
	ProgressNormalizing = "normalizing"
	ProgressCompleted   = "completed"
	ProgressFailed      = "failed"
)

// Progress is the last reported pipeline position for a job. Status selects
// which of the remaining fields are meaningful.
type Progress struct {
	Status    string `json:"status"`
	Page      int    `json:"page,omitempty"`
	Collected int    `json:"collected,omitempty"`
	Total     int    `json:"total,omitempty"`
	BackoffMs int64  `json:"backoffMs,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CollectionJob is one queued unit of collection work.
type CollectionJob struct {
	ID           string    `json:"id"`
	Domain       string    `json:"domain"`
	State        JobState  `json:"state"`
	Progress     Progress  `json:"progress"`
	AttemptsMade int       `json:"attempts_made"`
	FailedReason string    `json:"failed_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
