package app

import (
	"time"

	"github.com/matchbook/notifier/internal/digest"
)

// DigestConfig converts CronConfig into the unread message digest job settings.
func (c CronConfig) DigestConfig() digest.Config {
	return digest.Config{
		Staleness:           c.Staleness,
		DispatchConcurrency: c.DispatchConcurrency,
		LockTTL:             c.LockTTL,
	}
}

// RunRetention returns how long cron run records are kept, or zero when pruning is disabled.
func (c CronConfig) RunRetention() time.Duration {
	if c.RunRetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.RunRetentionDays) * 24 * time.Hour
}
