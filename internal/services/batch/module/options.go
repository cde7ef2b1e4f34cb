package module

import (
	"time"

	"redpen/internal/platform/config"
)

// Options holds configuration settings for the batch module
type Options struct {
	QueueDepth      int
	ItemConcurrency int
	CheckpointEvery int
	DrainBatch      int
	ItemTimeout     time.Duration
	JobTimeout      time.Duration
	DBTimeout       time.Duration
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	bf := cfg.Prefix("CORE_BATCH_")
	return Options{
		QueueDepth:      bf.MayInt("QUEUE_DEPTH", 16),
		ItemConcurrency: bf.MayInt("ITEM_CONCURRENCY", 0), // 0 -> GOMAXPROCS
		CheckpointEvery: bf.MayInt("CHECKPOINT_EVERY", 25),
		DrainBatch:      bf.MayInt("DRAIN_BATCH", 50),
		ItemTimeout:     bf.MayDuration("ITEM_TIMEOUT", 0),
		JobTimeout:      bf.MayDuration("JOB_TIMEOUT", 0),
		DBTimeout:       bf.MayDuration("DB_TIMEOUT", 5*time.Second),
	}
}
