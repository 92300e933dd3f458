package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/matchbook/notifier/internal/models"
	"github.com/matchbook/notifier/internal/monitoring"
)

// LatestRunFinder returns the newest ledger row of a job, or nil when it never ran.
type LatestRunFinder interface {
	Latest(ctx context.Context, job string) (*models.CronRun, error)
}

// CronRun degrades the report when the latest run of job failed or is older than maxAge.
// A job that never ran is reported up. maxAge <= 0 disables the staleness check.
func CronRun(runs LatestRunFinder, job string, maxAge time.Duration) monitoring.Check {
	return monitoring.NewCheck("cron:"+job, func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if runs == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "run ledger disabled"}
		}

		latest, err := runs.Latest(ctx, job)
		if err != nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDegraded, Details: err.Error(), Duration: time.Since(start)}
		}
		if latest == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "pending first run", Duration: time.Since(start)}
		}

		if latest.Status == models.CronRunFailed {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  fmt.Sprintf("last run failed at %s: %s", latest.StartedAt.UTC().Format(time.RFC3339), latest.Error),
				Duration: time.Since(start),
			}
		}
		if maxAge > 0 && time.Since(latest.StartedAt) > maxAge {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "stale run " + latest.StartedAt.UTC().Format(time.RFC3339),
				Duration: time.Since(start),
			}
		}
		return monitoring.ProbeResult{Status: monitoring.StatusUp, Duration: time.Since(start)}
	})
}
