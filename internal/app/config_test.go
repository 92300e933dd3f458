package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matchbook/notifier/internal/auth"
)

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("CRON_SECRET", "")
	t.Setenv("NEXT_PUBLIC_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "json", cfg.Server.LogFormat)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)
	require.Equal(t, 20, cfg.Database.Postgres.MaxOpenConns)
	require.Equal(t, 500*time.Millisecond, cfg.Database.SlowThreshold)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 2*time.Second, cfg.Cache.Redis.Timeout)

	require.True(t, cfg.Queue.Enabled)
	require.Equal(t, "redis://redis.internal:6379/1", cfg.Queue.RedisURL)
	require.Equal(t, "email", cfg.Queue.Queue)
	require.Equal(t, 8, cfg.Queue.Concurrency)
	require.Equal(t, 3, cfg.Queue.MaxAttempts)

	require.Equal(t, "https://matchbookrentals.com/", cfg.Email.PublicURL)
	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	require.Equal(t, "file-secret", cfg.Cron.Secret)
	require.Equal(t, 90*time.Second, cfg.Cron.Staleness)
	require.Equal(t, 4, cfg.Cron.DispatchConcurrency)
	require.Equal(t, 5*time.Minute, cfg.Cron.RunTimeout)
	require.Equal(t, 3*time.Minute, cfg.Cron.LockTTL)
	require.True(t, cfg.Cron.Schedule.Enabled)
	require.Equal(t, "*/2 * * * *", cfg.Cron.Schedule.UnreadMessages)
	require.Equal(t, "0 3 * * *", cfg.Cron.Schedule.Retention)
	require.Equal(t, 14*24*time.Hour, cfg.Cron.RunRetention())

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CRON_SECRET", "")
	t.Setenv("NEXT_PUBLIC_URL", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 2*time.Minute, cfg.Cron.Staleness)
	require.Equal(t, 10*time.Minute, cfg.Cron.LockTTL)
	require.Empty(t, cfg.Cron.Secret)
	require.False(t, cfg.Queue.Enabled)
	require.False(t, cfg.Cron.Schedule.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("NOTIFIER_SERVER_PORT", "7070")
	t.Setenv("NOTIFIER_CRON_STALENESS", "5m")
	t.Setenv("NOTIFIER_CRON_SECRET", "")
	t.Setenv("CRON_SECRET", "legacy-secret")
	t.Setenv("NEXT_PUBLIC_URL", "https://example.test")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 5*time.Minute, cfg.Cron.Staleness)
	require.Equal(t, "legacy-secret", cfg.Cron.Secret)
	require.Equal(t, "https://example.test", cfg.Email.PublicURL)
}

func TestPrefixedCronSecretWinsOverLegacy(t *testing.T) {
	t.Setenv("NOTIFIER_CRON_SECRET", "prefixed")
	t.Setenv("CRON_SECRET", "legacy")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "prefixed", cfg.Cron.Secret)
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{JWT: JWTSettings{Secret: "secret", Issuer: "issuer", TTL: 30 * time.Minute}}

	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		AccessTokenTTL: 30 * time.Minute,
	}, cfg.JWTServiceConfig())

	var empty AuthConfig
	require.Equal(t, auth.DefaultAccessTokenTTL, empty.JWTServiceConfig().AccessTokenTTL)
}

func TestEmailConfigAdapters(t *testing.T) {
	cfg := EmailConfig{
		PublicURL:   " https://matchbookrentals.com/ ",
		CompanyName: "MatchBook",
		SMTP: SMTPConfig{
			Enabled:  true,
			Host:     "smtp.example.com",
			Port:     2525,
			Username: "user",
			Password: "pass",
			From:     "no-reply@example.com",
			UseTLS:   true,
			Timeout:  10 * time.Second,
		},
	}

	settings := cfg.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, 2525, settings.Port)
	require.Equal(t, "no-reply@example.com", settings.From)
	require.Equal(t, 10*time.Second, settings.Timeout)

	tmpl := cfg.TemplateSettings()
	require.Equal(t, "https://matchbookrentals.com", tmpl.BaseURL)
	require.Equal(t, "MatchBook", tmpl.CompanyName)
}

func TestQueueAndCronAdapters(t *testing.T) {
	q := QueueConfig{RedisURL: " redis://localhost:6379/0 ", Queue: "email", Concurrency: 2, MaxAttempts: 3}
	qc := q.EmailQueueConfig()
	require.Equal(t, "redis://localhost:6379/0", qc.RedisURL)
	require.Equal(t, 3, qc.MaxAttempts)

	c := CronConfig{Staleness: time.Minute, DispatchConcurrency: 3, LockTTL: time.Hour}
	dc := c.DigestConfig()
	require.Equal(t, time.Minute, dc.Staleness)
	require.Equal(t, 3, dc.DispatchConcurrency)
	require.Equal(t, time.Hour, dc.LockTTL)
	require.Zero(t, c.RunRetention())
}
