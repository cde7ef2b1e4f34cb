// Package guardrails holds cross cutting safety helpers for batch work
package guardrails

import (
	"context"
	"time"
)

// Timeouts is an optional budget bundle for one batch job.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Job is the overall time budget for processing one job
	Job time.Duration

	// Item caps one subject's analysis
	Item time.Duration

	// DB caps job row and checkpoint writes
	DB time.Duration
}

// WithJob returns a context limited by the job budget without extending any
// parent deadline. If Job is zero it returns a cancelable child that simply
// inherits the parent deadline
func WithJob(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Job)
}

// ForItem returns a sub context for one item bounded by Item and any remaining parent budget
func ForItem(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Item)
}

// ForDB returns a sub context for persistence bounded by DB and any remaining parent budget
func ForDB(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.DB)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		d := time.Until(dl)
		if d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout chooses the tighter of the requested duration and any
// parent remainder. Never extends the parent deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
