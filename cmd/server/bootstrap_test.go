package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matchbook/notifier/internal/app"
	"github.com/matchbook/notifier/internal/app/maintenance"
	"github.com/matchbook/notifier/internal/digest"
	"github.com/matchbook/notifier/internal/models"
)

func TestConvertDatabaseConfig(t *testing.T) {
	cfg := &app.Config{}
	cfg.Database.Driver = " PostgreSQL "
	cfg.Database.LogLevel = "warn"
	cfg.Database.Postgres = app.DBAuthConfig{
		Host:         "db.internal",
		Port:         5432,
		Database:     "matchbook",
		Username:     "notifier",
		Password:     " secret ",
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	}

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.internal", dbCfg.Host)
	require.Equal(t, 5432, dbCfg.Port)
	require.Equal(t, "matchbook", dbCfg.Name)
	require.Equal(t, "secret", dbCfg.Password)
	require.Equal(t, 10, dbCfg.MaxOpenConns)
	require.Equal(t, "warn", dbCfg.LogLevel)

	cfg = &app.Config{}
	cfg.Database.Path = "./data/notifier.sqlite"
	dbCfg = convertDatabaseConfig(cfg)
	require.Equal(t, "sqlite", dbCfg.Driver)
	require.Empty(t, dbCfg.Host)

	cfg.Database.Driver = "oracle"
	require.Equal(t, "oracle", convertDatabaseConfig(cfg).Driver)
}

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg := &app.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "notifier.sqlite")
	cfg.Auth.JWT.Secret = "bootstrap-secret"
	cfg.Cron.Secret = "cron-secret"
	cfg.Cron.Staleness = 2 * time.Minute
	cfg.Cron.RunTimeout = time.Minute
	cfg.Cron.RunRetentionDays = 30
	cfg.Cron.Schedule.UnreadMessages = "*/5 * * * *"
	cfg.Cron.Schedule.Retention = "0 3 * * *"
	return cfg
}

func TestBootstrapRuntimeRunsDigestOnce(t *testing.T) {
	cfg := testConfig(t)
	log := zap.NewNop()

	stack, err := bootstrapRuntime(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(log) })

	db := stack.DB
	alice := models.User{Email: "alice@example.com", FirstName: "Alice"}
	bob := models.User{Email: "bob@example.com", FirstName: "Bob"}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)
	convo := models.Conversation{}
	require.NoError(t, db.Create(&convo).Error)
	for _, u := range []models.User{alice, bob} {
		require.NoError(t, db.Create(&models.ConversationParticipant{ConversationID: convo.ID, UserID: u.ID}).Error)
	}
	require.NoError(t, db.Create(&models.Message{
		BaseModel:      models.BaseModel{CreatedAt: time.Now().UTC().Add(-time.Hour)},
		ConversationID: convo.ID,
		SenderID:       alice.ID,
		Content:        "is the room still free?",
	}).Error)

	require.NoError(t, runOnce(context.Background(), stack, log))

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	require.Equal(t, bob.ID, notifications[0].UserID)
	require.Equal(t, models.ActionTypeNewConversation, notifications[0].ActionType)

	run, err := stack.CronRuns.Latest(context.Background(), digest.JobName)
	require.NoError(t, err)
	require.NotNil(t, run)
	require.Equal(t, digest.TriggerCLI, run.Trigger)

	jobs, err := stack.Scheduler.Jobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, digest.JobName, jobs[0].ID)
	require.Equal(t, maintenance.CleanupJobID, jobs[1].ID)
	require.False(t, jobs[0].Scheduled)
}

func TestBuildSchedulerRejectsInvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cron.Schedule.UnreadMessages = "every five minutes"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "invalid schedule")
}
