package maintenance

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/matchbook/notifier/internal/models"
	apperrors "github.com/matchbook/notifier/pkg/errors"
)

type stubLatest map[string]*models.CronRun

func (s stubLatest) Latest(_ context.Context, job string) (*models.CronRun, error) {
	return s[job], nil
}

func TestSchedulerRegisterValidation(t *testing.T) {
	s := NewScheduler()
	noop := func(context.Context, string) (any, error) { return nil, nil }

	require.Error(t, s.Register(Definition{ID: "", Run: noop}))
	require.Error(t, s.Register(Definition{ID: "x"}))
	require.Error(t, s.Register(Definition{ID: "bad", Schedule: "every now and then", Run: noop}))

	require.NoError(t, s.Register(Definition{ID: "ok", Schedule: "*/5 * * * *", Run: noop}))
	require.Error(t, s.Register(Definition{ID: "ok", Run: noop}))
}

func TestSchedulerJobsAndTrigger(t *testing.T) {
	last := &models.CronRun{Job: "digest", Status: models.CronRunSuccess}
	s := NewScheduler(WithLatestRuns(stubLatest{"digest": last}))

	var gotTrigger string
	require.NoError(t, s.Register(Definition{
		ID:          "digest",
		Name:        "Unread messages",
		Description: "Digest unread messages",
		Schedule:    "*/5 * * * *",
		Run: func(_ context.Context, trigger string) (any, error) {
			gotTrigger = trigger
			return "done", nil
		},
	}))
	require.NoError(t, s.Register(Definition{
		ID:  "manual",
		Run: func(context.Context, string) (any, error) { return nil, nil },
	}))

	jobs, err := s.Jobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "digest", jobs[0].ID)
	require.True(t, jobs[0].Scheduled)
	require.Same(t, last, jobs[0].LastRun)
	require.False(t, jobs[1].Scheduled)
	require.Nil(t, jobs[1].LastRun)

	result, err := s.Trigger(context.Background(), "digest", "admin")
	require.NoError(t, err)
	require.Equal(t, "done", result)
	require.Equal(t, "admin", gotTrigger)

	_, err = s.Trigger(context.Background(), "missing", "admin")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestSchedulerRunOnceAggregatesErrors(t *testing.T) {
	s := NewScheduler()
	var ran []string
	for _, id := range []string{"a", "b", "c"} {
		id := id
		require.NoError(t, s.Register(Definition{
			ID: id,
			Run: func(context.Context, string) (any, error) {
				ran = append(ran, id)
				if id != "b" {
					return nil, errors.New(id + " broke")
				}
				return nil, nil
			},
		}))
	}

	err := s.RunOnce(context.Background(), "cli")
	require.ErrorContains(t, err, "a: a broke")
	require.ErrorContains(t, err, "c: c broke")
	require.Equal(t, []string{"a", "b", "c"}, ran)
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))), WithRunTimeout(time.Second))
	require.NoError(t, s.Register(Definition{
		ID:       "digest",
		Schedule: "@hourly",
		Run:      func(context.Context, string) (any, error) { return nil, nil },
	}))

	require.NoError(t, s.Start())
	require.Error(t, s.Register(Definition{ID: "late", Run: func(context.Context, string) (any, error) { return nil, nil }}))
	require.Len(t, s.cron.Entries(), 1)

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	<-s.Stop().Done()
}

func TestSchedulerDisabledDoesNotSchedule(t *testing.T) {
	s := NewScheduler(WithSchedulingDisabled())
	require.NoError(t, s.Register(Definition{
		ID:       "digest",
		Schedule: "@hourly",
		Run:      func(context.Context, string) (any, error) { return nil, nil },
	}))
	require.NoError(t, s.Start())
	require.Empty(t, s.cron.Entries())

	jobs, err := s.Jobs(context.Background())
	require.NoError(t, err)
	require.False(t, jobs[0].Scheduled)
}

func TestRunScheduledSwallowsConflicts(t *testing.T) {
	s := NewScheduler(WithRunTimeout(time.Second))
	calls := 0
	s.runScheduled(Definition{
		ID: "digest",
		Run: func(ctx context.Context, trigger string) (any, error) {
			calls++
			require.Equal(t, triggerSchedule, trigger)
			_, ok := ctx.Deadline()
			require.True(t, ok)
			return nil, apperrors.New("RUN_IN_PROGRESS", "busy", http.StatusConflict)
		},
	})
	require.Equal(t, 1, calls)
}
