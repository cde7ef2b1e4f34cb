package module

import (
	"time"

	"redpen/internal/core/learning"
	"redpen/internal/platform/config"
)

// Options holds configuration settings for the learning module
type Options struct {
	Pacing      learning.PacingConfig
	SnapshotTTL time.Duration
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	lf := cfg.Prefix("CORE_LEARNING_")
	return Options{
		Pacing: learning.PacingConfig{
			Base: lf.MayDuration("PACING_BASE", learning.DefaultPacing.Base),
			Min:  lf.MayDuration("PACING_MIN", learning.DefaultPacing.Min),
			Max:  lf.MayDuration("PACING_MAX", learning.DefaultPacing.Max),
		},
		SnapshotTTL: lf.MayDuration("SNAPSHOT_TTL", 30*time.Second),
	}
}
