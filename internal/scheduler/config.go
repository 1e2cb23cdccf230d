package scheduler

import (
	"time"

	"github.com/smallbiznis/proppass/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled        bool
	RunInterval    time.Duration
	SweepBatchSize int
	SweepTimeout   time.Duration
	EnabledJobs    []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		RunInterval:    time.Minute,
		SweepBatchSize: 100,
		SweepTimeout:   30 * time.Second,
	}
}

// ProvideConfig derives the scheduler settings from the application config.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:        cfg.SchedulerEnabled,
		RunInterval:    time.Duration(cfg.SchedulerIntervalSeconds) * time.Second,
		SweepBatchSize: cfg.SchedulerSweepBatch,
		EnabledJobs:    cfg.SchedulerJobs,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = defaults.SweepBatchSize
	}
	if c.SweepTimeout <= 0 {
		c.SweepTimeout = defaults.SweepTimeout
	}
	return c
}
