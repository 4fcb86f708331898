package scheduler

import (
	"time"

	"github.com/smallbiznis/fieldops/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	Enabled        bool
	RunInterval    time.Duration
	BatchSize      int
	JobTimeout     time.Duration
	CheckoutTTL    time.Duration
	UnassignedLead time.Duration
	// EnabledJobs limits the run to the named jobs. Empty runs them all.
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		RunInterval:    time.Minute,
		BatchSize:      50,
		JobTimeout:     30 * time.Second,
		CheckoutTTL:    30 * time.Minute,
		UnassignedLead: 2 * time.Hour,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:        cfg.Scheduler.Enabled,
		RunInterval:    cfg.Scheduler.RunInterval,
		CheckoutTTL:    cfg.Scheduler.CheckoutTTL,
		UnassignedLead: cfg.Scheduler.UnassignedLead,
		EnabledJobs:    cfg.Scheduler.EnabledJobs,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.CheckoutTTL <= 0 {
		c.CheckoutTTL = defaults.CheckoutTTL
	}
	if c.UnassignedLead <= 0 {
		c.UnassignedLead = defaults.UnassignedLead
	}
	return c
}
