// Package domain defines the core types and interfaces for the learning service
package domain

import (
	"time"

	"redpen/internal/core/learning"
)

// FeedbackInput references one surfaced finding and the developer's verdict
type FeedbackInput struct {
	RuleID  string           `json:"rule_id" validate:"required"`
	Path    string           `json:"path,omitempty"`
	Line    int              `json:"line,omitempty"`
	Outcome learning.Outcome `json:"outcome" validate:"required,oneof=accepted rejected ignored"`
}

// RuleScore is one rule's position in the insight lists
type RuleScore struct {
	RuleID string  `json:"rule_id"`
	Score  float64 `json:"score"`
	Found  int64   `json:"found"`
}

// Insights is a read-only aggregate snapshot over all records and runs
type Insights struct {
	TotalAnalyzed       int64       `json:"total_analyzed"` // analysis runs
	AvgIssuesPerRun     float64     `json:"avg_issues_per_run"`
	AvgEffectiveness    float64     `json:"avg_effectiveness"`
	MostEffectiveRules  []RuleScore `json:"most_effective_rules"`  // top 5, score >= 0.7
	LeastEffectiveRules []RuleScore `json:"least_effective_rules"` // bottom 5, score < 0.3
	SatisfactionScore   float64     `json:"satisfaction_score"`
	GeneratedAt         time.Time   `json:"generated_at"`
}
