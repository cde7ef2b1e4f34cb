package module

import (
	"time"

	"redpen/internal/platform/config"
)

// Options holds configuration settings for the analysis module
type Options struct {
	MaxConcurrentFiles int
	CommentBudget      int
	RuleConcurrency    int
	MaxFindingsPerFile int
	AnalyzeOnlyChanged bool
	DryRun             bool
	PackWindow         time.Duration
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	af := cfg.Prefix("CORE_ANALYSIS_")
	return Options{
		MaxConcurrentFiles: af.MayInt("MAX_FILES", 10),
		CommentBudget:      af.MayInt("COMMENT_BUDGET", 10),
		RuleConcurrency:    af.MayInt("RULE_CONCURRENCY", 0), // 0 -> GOMAXPROCS
		MaxFindingsPerFile: af.MayInt("MAX_FINDINGS_PER_FILE", 0),
		AnalyzeOnlyChanged: af.MayBool("ONLY_CHANGED", true),
		DryRun:             af.MayBool("DRY_RUN", false),
		PackWindow:         af.MayDuration("PACK_WINDOW", 60*time.Minute),
	}
}
