package checks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testutil "github.com/matchbook/notifier/internal/database/testutil"
	"github.com/matchbook/notifier/internal/models"
	"github.com/matchbook/notifier/internal/monitoring"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubRuns struct {
	run *models.CronRun
	err error
}

func (s stubRuns) Latest(context.Context, string) (*models.CronRun, error) { return s.run, s.err }

func TestDatabase(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	require.Equal(t, monitoring.StatusUp, Database(db, 0).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDown, Database(nil, 0).Run(context.Background()).Status)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	require.Equal(t, monitoring.StatusDown, Database(db, time.Second).Run(context.Background()).Status)
}

func TestRedis(t *testing.T) {
	require.Equal(t, monitoring.StatusUp, Redis(stubPinger{}, 0).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDegraded, Redis(nil, 0).Run(context.Background()).Status)
	require.Equal(t, monitoring.StatusDown, Redis(stubPinger{err: errors.New("refused")}, 0).Run(context.Background()).Status)
}

func TestCronRun(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Minute)
	tests := []struct {
		name   string
		runs   LatestRunFinder
		status monitoring.ProbeStatus
	}{
		{name: "no ledger", runs: nil, status: monitoring.StatusUp},
		{name: "never ran", runs: stubRuns{}, status: monitoring.StatusUp},
		{name: "lookup error", runs: stubRuns{err: errors.New("db gone")}, status: monitoring.StatusDegraded},
		{name: "recent success", runs: stubRuns{run: &models.CronRun{Status: models.CronRunSuccess, StartedAt: recent}}, status: monitoring.StatusUp},
		{name: "last failed", runs: stubRuns{run: &models.CronRun{Status: models.CronRunFailed, StartedAt: recent, Error: "boom"}}, status: monitoring.StatusDegraded},
		{name: "stale", runs: stubRuns{run: &models.CronRun{Status: models.CronRunSuccess, StartedAt: recent.Add(-2 * time.Hour)}}, status: monitoring.StatusDegraded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			check := CronRun(tc.runs, "unread-messages", time.Hour)
			require.Equal(t, "cron:unread-messages", check.Name)
			require.Equal(t, tc.status, check.Run(context.Background()).Status)
		})
	}
}
