package service

import (
	"context"
	"time"

	"redpen/internal/core/ruleengine"
	"redpen/internal/platform/store"
)

// CHEventSink streams finding events into ClickHouse for analytics.
// Best-effort: callers log and continue on failure
type CHEventSink struct {
	CH  store.Clickhouse
	now func() time.Time
}

// NewCHEventSink wraps the ClickHouse seam; returns nil when ch is nil so
// wiring can pass it straight through as the optional sink
func NewCHEventSink(ch store.Clickhouse) *CHEventSink {
	if ch == nil {
		return nil
	}
	return &CHEventSink{CH: ch, now: time.Now}
}

// WriteFindings implements domain.EventSink
func (s *CHEventSink) WriteFindings(ctx context.Context, runID string, fs []ruleengine.Finding) error {
	if len(fs) == 0 {
		return nil
	}
	at := s.now().UTC()
	rows := make([][]any, 0, len(fs))
	for _, f := range fs {
		rows = append(rows, []any{
			runID, f.RuleID, f.Path, int32(f.Line), string(f.Severity), at,
		})
	}
	return s.CH.Insert(ctx, "finding_events", rows)
}
