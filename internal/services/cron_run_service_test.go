package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matchbook/notifier/internal/database/testutil"
	"github.com/matchbook/notifier/internal/models"
)

func TestCronRunServiceRecordAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCronRunService(db)
	require.NoError(t, err)

	ctx := context.Background()
	started := time.Now().UTC().Add(-time.Minute)

	run, err := svc.Record(ctx, CronRunRecord{
		Job:                  "unread-messages",
		Trigger:              "http",
		Status:               models.CronRunSuccess,
		StartedAt:            started,
		FinishedAt:           started.Add(1500 * time.Millisecond),
		ProcessedMessages:    4,
		CreatedNotifications: 2,
		Metadata:             map[string]any{"groups": 2},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1500), run.DurationMS)

	_, err = svc.Record(ctx, CronRunRecord{
		Job:       "unread-messages",
		Trigger:   "schedule",
		Status:    models.CronRunFailed,
		StartedAt: started.Add(30 * time.Second),
		Err:       errors.New("mark messages: disk full"),
	})
	require.NoError(t, err)

	runs, total, err := svc.List(ctx, CronRunListOptions{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, runs, 2)
	require.Equal(t, models.CronRunFailed, runs[0].Status, "newest first")
	require.Equal(t, "mark messages: disk full", runs[0].Error)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(runs[1].Metadata, &metadata))
	require.EqualValues(t, 2, metadata["groups"])

	failed, total, err := svc.List(ctx, CronRunListOptions{Filters: CronRunFilters{Status: models.CronRunFailed}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "schedule", failed[0].Trigger)

	byTrigger, _, err := svc.List(ctx, CronRunListOptions{Filters: CronRunFilters{Trigger: "http"}})
	require.NoError(t, err)
	require.Len(t, byTrigger, 1)

	since := started.Add(10 * time.Second)
	recent, _, err := svc.List(ctx, CronRunListOptions{Filters: CronRunFilters{Since: &since}})
	require.NoError(t, err)
	require.Len(t, recent, 1)

	latest, err := svc.Latest(ctx, "unread-messages")
	require.NoError(t, err)
	require.Equal(t, models.CronRunFailed, latest.Status)

	none, err := svc.Latest(ctx, "never-ran")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestCronRunServiceRecordValidates(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCronRunService(db)
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), CronRunRecord{Status: models.CronRunSuccess})
	require.Error(t, err)
	_, err = svc.Record(context.Background(), CronRunRecord{Job: "unread-messages"})
	require.Error(t, err)

	_, err = NewCronRunService(nil)
	require.Error(t, err)
}

func TestCronRunServiceCleanupOlderThan(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewCronRunService(db)
	require.NoError(t, err)

	ctx := context.Background()
	now := time.Now().UTC()
	_, err = svc.Record(ctx, CronRunRecord{Job: "j", Status: models.CronRunSuccess, StartedAt: now.Add(-40 * 24 * time.Hour)})
	require.NoError(t, err)
	_, err = svc.Record(ctx, CronRunRecord{Job: "j", Status: models.CronRunSuccess, StartedAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	removed, err := svc.CleanupOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	_, err = svc.CleanupOlderThan(ctx, 0)
	require.Error(t, err)
}
