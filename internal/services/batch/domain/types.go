// Package domain declares batch engine types and ports
package domain

import "time"

// Status is the lifecycle state of a batch job
type Status string

const (
	// StatusQueued means the job is waiting for the dispatcher
	StatusQueued Status = "queued"
	// StatusRunning means the dispatcher is processing the job's items
	StatusRunning Status = "running"
	// StatusPaused means dispatching of new items is stopped; in-flight
	// items finish and their results are still counted
	StatusPaused Status = "paused"
	// StatusCompleted is terminal; item failures do not prevent it
	StatusCompleted Status = "completed"
	// StatusFailed is terminal; the job itself could not run to the end
	StatusFailed Status = "failed"
)

// Terminal reports whether the status never transitions again
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Job is a queued unit of work replaying the analysis pipeline over many
// subjects. Owned exclusively by the engine; Status() returns copies
type Job struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	Subjects     []string   `json:"subjects"`
	Processed    int        `json:"processed"`
	Succeeded    int        `json:"succeeded"`
	Failed       int        `json:"failed"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ItemResult is the outcome of one subject inside a job
type ItemResult struct {
	Subject string
	OK      bool
	Err     string
}

// Checkpoint is the periodically persisted progress marker. Best-effort:
// resuming from it after a crash is an optimization, not exactly-once
type Checkpoint struct {
	JobID     string
	Processed int
	Succeeded int
	Failed    int
	UpdatedAt time.Time
}
