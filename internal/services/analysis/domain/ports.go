package domain

import (
	"context"

	"redpen/internal/core/ruleengine"
	learndom "redpen/internal/services/learning/domain"
)

// ChangeSource is the code-review platform capability the core consumes.
// Transient failures on Post* are logged and treated as "not posted"
type ChangeSource interface {
	GetChangedFiles(ctx context.Context, subjectID string) ([]ruleengine.FileUnit, error)
	PostFinding(ctx context.Context, subjectID string, f ruleengine.Finding) error
	PostSummary(ctx context.Context, subjectID string, text string) error
}

// RunnerPort is the external port for submission analysis
type RunnerPort interface {
	// AnalyzeSubmission runs the full pipeline for one submission:
	// fetch -> evaluate -> filter -> budget -> post -> persist run
	AnalyzeSubmission(ctx context.Context, subjectID string) (Outcome, error)

	// Analyze runs evaluate+filter+budget over the given files without
	// posting anything (used by batch replay and dry runs)
	Analyze(ctx context.Context, files []ruleengine.FileUnit, budget int) (Result, error)
}

// Ports are dependencies injected into the analysis module
type Ports struct {
	Changes  ChangeSource          // required
	Filter   learndom.FilterPort   // required
	Recorder learndom.RecorderPort // required
}

// StorageRepo persists analysis runs
type StorageRepo interface {
	InsertRun(ctx context.Context, r Run) error
}

// EventSink receives per-finding analytics events (columnar store); optional
type EventSink interface {
	WriteFindings(ctx context.Context, runID string, fs []ruleengine.Finding) error
}
