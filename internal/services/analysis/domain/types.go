// Package domain defines the core types and interfaces for the analysis service
package domain

import (
	"fmt"
	"strings"
	"time"

	"redpen/internal/core/learning"
	"redpen/internal/core/ruleengine"
)

// Outcome is the structured result of one submission analysis. Failures are
// reported here, never as a raw panic or stack to the caller
type Outcome struct {
	SubjectID      string `json:"subject_id"`
	Success        bool   `json:"success"`
	FilesAnalyzed  int    `json:"files_analyzed"`
	IssuesFound    int    `json:"issues_found"`
	CommentsPosted int    `json:"comments_posted"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// Run is the immutable record of one submission analysis, persisted once
type Run struct {
	ID             string
	SubjectID      string
	StartedAt      time.Time
	FinishedAt     time.Time
	Status         string // "ok" | "error"
	FilesAnalyzed  int
	IssuesFound    int
	CommentsPosted int
	RuleUsage      map[string]int64 // ruleID -> findings emitted
	ErrText        string
}

// Result is what Analyze returns before anything is posted
type Result struct {
	Findings  []learning.Ranked // budget-capped, priority sorted
	Raw       int               // findings before filtering
	RuleUsage map[string]int64
}

// Summary aggregates a finished analysis for the submission-level comment
type Summary struct {
	FilesAnalyzed int
	BySeverity    map[string]int
	Posted        int
	Truncated     bool // budget cut findings
}

// Text renders the submission-level summary comment
func (s Summary) Text() string {
	if s.Posted == 0 && len(s.BySeverity) == 0 {
		return fmt.Sprintf("Automated review: %d file(s) analyzed, no issues worth flagging.", s.FilesAnalyzed)
	}
	parts := make([]string, 0, 3)
	for _, sev := range []string{"error", "warning", "info"} {
		if n := s.BySeverity[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	text := fmt.Sprintf("Automated review: %d file(s) analyzed, %d comment(s) posted (%s).",
		s.FilesAnalyzed, s.Posted, strings.Join(parts, ", "))
	if s.Truncated {
		text += " Additional lower-relevance findings were suppressed."
	}
	return text
}

// FileSource abstracts where file content comes from; re-exported so callers
// of this package do not import ruleengine for the common case
type FileUnit = ruleengine.FileUnit
