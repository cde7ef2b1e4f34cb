package domain

import "context"

// EnginePort is the external surface of the batch engine
type EnginePort interface {
	// Submit enqueues a job over the given subjects and returns its id
	// immediately. Fails when the queue is full or the engine is stopped
	Submit(ctx context.Context, subjects []string) (string, error)

	// Status returns a point-in-time snapshot of the job
	Status(ctx context.Context, jobID string) (Job, error)

	// Pause stops dispatching new items; in-flight items complete
	Pause(ctx context.Context, jobID string) error

	// Resume continues a paused job from where it stopped
	Resume(ctx context.Context, jobID string) error
}

// StorageRepo persists jobs and checkpoints
type StorageRepo interface {
	InsertJob(ctx context.Context, j Job) error
	UpdateJob(ctx context.Context, j Job) error

	// GetJob returns the stored row; not-found maps to perr.NotFound
	GetJob(ctx context.Context, jobID string) (Job, error)

	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	LoadCheckpoint(ctx context.Context, jobID string) (Checkpoint, bool, error)

	// MarkInterrupted fails every job left running or paused by a previous
	// process and returns how many rows it touched
	MarkInterrupted(ctx context.Context, msg string) (int64, error)
}
