package scheduler

import (
	"time"

	"github.com/smallbiznis/moiledger/internal/config"
)

// Config controls the index repair sweep.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	// JobTimeout bounds one sweep over every organization.
	JobTimeout time.Duration
	LockTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: 6 * time.Hour,
		JobTimeout:  10 * time.Minute,
		LockTTL:     15 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Tenant.IndexRepairEnabled,
		RunInterval: cfg.Tenant.IndexRepairInterval,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.LockTTL < c.JobTimeout {
		c.LockTTL = c.JobTimeout
	}
	return c
}
