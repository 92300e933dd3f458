package maintenance

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/matchbook/notifier/internal/models"
	"github.com/matchbook/notifier/internal/services"
	"github.com/matchbook/notifier/pkg/logger"
)

const (
	// CleanupJobID identifies the retention job in the registry and the run ledger.
	CleanupJobID = "maintenance-cleanup"

	defaultRunRetention = 30 * 24 * time.Hour
)

// ExpiredPurger removes expired cache entries. Only the database-backed cache needs it.
type ExpiredPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// RunLedger is the subset of the cron run service the cleaner depends on.
type RunLedger interface {
	Record(ctx context.Context, record services.CronRunRecord) (*models.CronRun, error)
	CleanupOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// CleanupStats captures the number of rows removed by one cleanup pass.
type CleanupStats struct {
	CronRuns     int64 `json:"cronRuns"`
	CacheEntries int64 `json:"cacheEntries"`
}

// CleanerOption customises the Cleaner.
type CleanerOption func(*Cleaner)

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) CleanerOption {
	return func(c *Cleaner) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRunRetention adjusts how long run ledger rows are kept.
func WithRunRetention(retention time.Duration) CleanerOption {
	return func(c *Cleaner) {
		if retention > 0 {
			c.retention = retention
		}
	}
}

// WithCachePurger enables expired cache entry cleanup.
func WithCachePurger(purger ExpiredPurger) CleanerOption {
	return func(c *Cleaner) {
		c.cache = purger
	}
}

// Cleaner prunes the run ledger and expired cache entries.
type Cleaner struct {
	runs      RunLedger
	cache     ExpiredPurger
	retention time.Duration
	now       func() time.Time
	log       *zap.Logger
}

// NewCleaner constructs a Cleaner. A nil ledger disables run pruning.
func NewCleaner(runs RunLedger, opts ...CleanerOption) *Cleaner {
	cleaner := &Cleaner{
		runs:      runs,
		retention: defaultRunRetention,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(cleaner)
	}
	return cleaner
}

// Run executes every cleanup routine, continuing past individual failures, and records
// the pass in the run ledger.
func (c *Cleaner) Run(ctx context.Context, trigger string) (CleanupStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.runs == nil && c.cache == nil {
		return CleanupStats{}, errors.New("cleanup: nothing to clean")
	}

	started := c.now()
	var (
		stats CleanupStats
		errs  error
	)

	if c.runs != nil {
		removed, err := c.runs.CleanupOlderThan(ctx, c.retention)
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		stats.CronRuns = removed
	}

	if c.cache != nil {
		removed, err := c.cache.PurgeExpired(ctx, c.now())
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		stats.CacheEntries = removed
	}

	status := models.CronRunSuccess
	if errs != nil {
		status = models.CronRunFailed
		c.log.Warn("cleanup failed", zap.Error(errs))
	} else {
		c.log.Info("cleanup finished",
			zap.Int64("cron_runs", stats.CronRuns),
			zap.Int64("cache_entries", stats.CacheEntries),
		)
	}

	if c.runs != nil {
		if _, err := c.runs.Record(context.WithoutCancel(ctx), services.CronRunRecord{
			Job:        CleanupJobID,
			Trigger:    trigger,
			Status:     status,
			StartedAt:  started,
			FinishedAt: c.now(),
			Err:        errs,
			Metadata: map[string]any{
				"cron_runs":     stats.CronRuns,
				"cache_entries": stats.CacheEntries,
			},
		}); err != nil {
			c.log.Warn("record cleanup run", zap.Error(err))
		}
	}

	return stats, errs
}
