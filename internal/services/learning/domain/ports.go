package domain

import (
	"context"
	"time"

	"redpen/internal/core/learning"
	"redpen/internal/core/ruleengine"
)

// FeedbackPort is the sole external entry point for developer feedback
type FeedbackPort interface {
	// Submit increments exactly one outcome counter for the referenced rule.
	// Safe to call concurrently for different rules; serialized per rule
	Submit(ctx context.Context, in FeedbackInput) error
}

// FilterPort gates and ranks raw findings by learned relevance
type FilterPort interface {
	// Rank drops low-relevance findings and sorts survivors descending by
	// relevance (stable; deterministic for identical inputs and records)
	Rank(ctx context.Context, findings []ruleengine.Finding) ([]learning.Ranked, error)

	// Confidence returns the [0.1,0.95] trust level for one rule (0.5 unseen)
	Confidence(ctx context.Context, ruleID string) (float64, error)

	// Pacing returns the delay before the next surfaced finding for the rule
	Pacing(ctx context.Context, ruleID string) (time.Duration, error)
}

// RecorderPort receives aggregate analysis-run signals
type RecorderPort interface {
	// RecordFound bumps issuesFound per rule after an analysis run
	RecordFound(ctx context.Context, counts map[string]int64) error
}

// InsightsPort serves the read-only aggregate snapshot
type InsightsPort interface {
	Insights(ctx context.Context) (Insights, error)
}

// StorageRepo is the persistence surface bound per transaction
type StorageRepo interface {
	// Get returns the record for ruleID, zero-value when absent
	Get(ctx context.Context, ruleID string) (learning.Record, error)

	// Upsert writes the full record (counters + recomputed score)
	Upsert(ctx context.Context, rec learning.Record) error

	// List returns every stored record keyed by rule id
	List(ctx context.Context) (map[string]learning.Record, error)

	// RunTotals reports (runs, issuesFound summed) over analysis_runs
	RunTotals(ctx context.Context) (int64, int64, error)
}
