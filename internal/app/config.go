package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. NOTIFIER_SERVER_PORT.
const EnvPrefix = "NOTIFIER"

// Config represents the runtime configuration for the notifier service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Email      EmailConfig      `mapstructure:"email"`
	Cron       CronConfig       `mapstructure:"cron"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver        string        `mapstructure:"driver"`
	Path          string        `mapstructure:"path"`
	DSN           string        `mapstructure:"dsn"`
	LogLevel      string        `mapstructure:"log_level"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	Postgres      DBAuthConfig  `mapstructure:"postgres"`
	MySQL         DBAuthConfig  `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// QueueConfig controls background email delivery through asynq.
type QueueConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	RedisURL    string `mapstructure:"redis_url"`
	Queue       string `mapstructure:"queue"`
	Concurrency int    `mapstructure:"concurrency"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	PublicURL   string     `mapstructure:"public_url"`
	CompanyName string     `mapstructure:"company_name"`
	SMTP        SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CronConfig configures the scheduled jobs and the HTTP cron trigger.
type CronConfig struct {
	Secret              string         `mapstructure:"secret"`
	Staleness           time.Duration  `mapstructure:"staleness"`
	DispatchConcurrency int            `mapstructure:"dispatch_concurrency"`
	RunTimeout          time.Duration  `mapstructure:"run_timeout"`
	LockTTL             time.Duration  `mapstructure:"lock_ttl"`
	RunRetentionDays    int            `mapstructure:"run_retention_days"`
	Schedule            ScheduleConfig `mapstructure:"schedule"`
}

// ScheduleConfig holds cron expressions for the in-process scheduler.
type ScheduleConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	UnreadMessages string `mapstructure:"unread_messages"`
	Retention      string `mapstructure:"retention"`
}

// AuthConfig captures admin authentication settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures admin JWT validation.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health"`
}

// HealthConfig tunes the health probes.
type HealthConfig struct {
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// MaxRunAge degrades readiness when the newest digest run is older; zero disables it.
	MaxRunAge time.Duration `mapstructure:"max_run_age"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
// A .env file in the working directory is loaded first when present; variables already
// set in the environment win.
func LoadConfig(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	applyCompatEnv(&config)

	return &config, nil
}

// applyCompatEnv honours the unprefixed variables the web app deployment already sets.
func applyCompatEnv(cfg *Config) {
	if strings.TrimSpace(cfg.Cron.Secret) == "" {
		cfg.Cron.Secret = strings.TrimSpace(os.Getenv("CRON_SECRET"))
	}
	if strings.TrimSpace(cfg.Email.PublicURL) == "" {
		cfg.Email.PublicURL = strings.TrimSpace(os.Getenv("NEXT_PUBLIC_URL"))
	}
	if strings.TrimSpace(cfg.Queue.RedisURL) == "" {
		cfg.Queue.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/notifier.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_level", "silent")
	v.SetDefault("database.slow_threshold", "500ms")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.redis_url", "")
	v.SetDefault("queue.queue", "email")
	v.SetDefault("queue.concurrency", 5)
	v.SetDefault("queue.max_attempts", 3)

	v.SetDefault("email.public_url", "")
	v.SetDefault("email.company_name", "MatchBook")
	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.from", "")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("cron.secret", "")
	v.SetDefault("cron.staleness", "2m")
	v.SetDefault("cron.dispatch_concurrency", 0)
	v.SetDefault("cron.run_timeout", "5m")
	v.SetDefault("cron.lock_ttl", "10m")
	v.SetDefault("cron.run_retention_days", 30)
	v.SetDefault("cron.schedule.enabled", false)
	v.SetDefault("cron.schedule.unread_messages", "*/5 * * * *")
	v.SetDefault("cron.schedule.retention", "0 3 * * *")

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "matchbook")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health.probe_timeout", "2s")
	v.SetDefault("monitoring.health.max_run_age", "0s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
