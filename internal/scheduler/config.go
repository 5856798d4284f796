package scheduler

import (
	"time"

	"github.com/chrisfit/storefront/internal/config"
)

// Config controls the orphan media sweep.
type Config struct {
	Enabled     bool
	Cron        string
	GracePeriod time.Duration
	Timeout     time.Duration
	LockTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Cron:        config.DefaultSweepCron,
		GracePeriod: 24 * time.Hour,
		Timeout:     5 * time.Minute,
		LockTTL:     10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Sweep.Enabled,
		Cron:        cfg.Sweep.Cron,
		GracePeriod: cfg.Sweep.GracePeriod,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Cron == "" {
		c.Cron = defaults.Cron
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = defaults.GracePeriod
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if c.LockTTL <= c.Timeout {
		c.LockTTL = 2 * c.Timeout
	}
	return c
}
