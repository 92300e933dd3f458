package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/matchbook/notifier/internal/api"
	"github.com/matchbook/notifier/internal/app"
	"github.com/matchbook/notifier/internal/app/maintenance"
	iauth "github.com/matchbook/notifier/internal/auth"
	"github.com/matchbook/notifier/internal/cache"
	"github.com/matchbook/notifier/internal/database"
	"github.com/matchbook/notifier/internal/digest"
	"github.com/matchbook/notifier/internal/emailqueue"
	"github.com/matchbook/notifier/internal/monitoring"
	"github.com/matchbook/notifier/internal/monitoring/checks"
	"github.com/matchbook/notifier/internal/services"
	"github.com/matchbook/notifier/pkg/logger"
	"github.com/matchbook/notifier/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server and the -once run.
type runtimeStack struct {
	DB            *gorm.DB
	Redis         *cache.RedisStore
	Locks         cache.Store
	EmailQueue    *emailqueue.Client
	EmailWorker   *emailqueue.Worker
	Notifications *services.NotificationService
	CronRuns      *services.CronRunService
	Digest        *digest.Job
	Scheduler     *maintenance.Scheduler
	Router        *gin.Engine
}

// bootstrapRuntime initialises databases, caches, services, jobs, and the HTTP router.
func bootstrapRuntime(_ context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)
	stack.Locks = dbStore
	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed locks", zap.Error(err))
		} else {
			stack.Locks = stack.Redis
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	var sender services.EmailSender = services.NewMailerSender(mailer)
	if cfg.Queue.Enabled {
		queueCfg := cfg.Queue.EmailQueueConfig()
		if stack.EmailQueue, err = emailqueue.NewClient(queueCfg); err != nil {
			return nil, fmt.Errorf("initialise email queue: %w", err)
		}
		if stack.EmailWorker, err = emailqueue.NewWorker(queueCfg, mailer); err != nil {
			return nil, fmt.Errorf("initialise email worker: %w", err)
		}
		sender = stack.EmailQueue
	}

	stack.Notifications, err = services.NewNotificationService(stack.DB,
		services.WithEmailSender(sender),
		services.WithEmailRenderer(services.NewEmailRenderer(cfg.Email.TemplateSettings())),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	stack.CronRuns, err = services.NewCronRunService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise cron run service: %w", err)
	}

	store, err := digest.NewGormStore(stack.DB)
	if err != nil {
		return nil, err
	}
	stack.Digest, err = digest.NewJob(store, stack.Notifications, cfg.Cron.DigestConfig(),
		digest.WithLockStore(stack.Locks),
		digest.WithRunLedger(stack.CronRuns),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise digest job: %w", err)
	}

	cleaner := maintenance.NewCleaner(stack.CronRuns,
		maintenance.WithRunRetention(cfg.Cron.RunRetention()),
		maintenance.WithCachePurger(dbStore),
	)
	stack.Scheduler, err = buildScheduler(cfg, stack.Digest, cleaner, stack.CronRuns)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		DB:        stack.DB,
		Config:    cfg,
		JWT:       jwtSvc,
		Digest:    stack.Digest,
		Scheduler: stack.Scheduler,
		CronRuns:  stack.CronRuns,
		Health:    buildHealthManager(cfg, stack),

		Notifications: stack.Notifications,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// buildScheduler registers the digest and the retention cleanup with the job registry.
func buildScheduler(cfg *app.Config, job *digest.Job, cleaner *maintenance.Cleaner, runs *services.CronRunService) (*maintenance.Scheduler, error) {
	opts := []maintenance.Option{
		maintenance.WithRunTimeout(cfg.Cron.RunTimeout),
		maintenance.WithLatestRuns(runs),
	}
	if !cfg.Cron.Schedule.Enabled {
		opts = append(opts, maintenance.WithSchedulingDisabled())
	}
	scheduler := maintenance.NewScheduler(opts...)

	if err := scheduler.Register(maintenance.Definition{
		ID:          job.Name(),
		Name:        "Unread message digest",
		Description: "Sends one notification per conversation and recipient for stale unread messages",
		Schedule:    strings.TrimSpace(cfg.Cron.Schedule.UnreadMessages),
		Run: func(ctx context.Context, trigger string) (any, error) {
			return job.Run(ctx, trigger)
		},
	}); err != nil {
		return nil, err
	}

	if err := scheduler.Register(maintenance.Definition{
		ID:          maintenance.CleanupJobID,
		Name:        "Maintenance cleanup",
		Description: "Prunes old cron run records and expired cache entries",
		Schedule:    strings.TrimSpace(cfg.Cron.Schedule.Retention),
		Run: func(ctx context.Context, trigger string) (any, error) {
			return cleaner.Run(ctx, trigger)
		},
	}); err != nil {
		return nil, err
	}

	return scheduler, nil
}

// buildHealthManager registers readiness probes for the database, the redis lock store
// when configured, and the digest run ledger.
func buildHealthManager(cfg *app.Config, stack *runtimeStack) *monitoring.HealthManager {
	timeout := cfg.Monitoring.Health.ProbeTimeout
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(checks.Database(stack.DB, timeout))
	if cfg.Cache.Redis.Enabled {
		var pinger checks.RedisPinger
		if stack.Redis != nil {
			pinger = stack.Redis
		}
		manager.RegisterReadiness(checks.Redis(pinger, timeout))
	}
	manager.RegisterReadiness(checks.CronRun(stack.CronRuns, digest.JobName, cfg.Monitoring.Health.MaxRunAge))
	return manager
}

// Start launches background workers and the scheduler.
func (s *runtimeStack) Start() error {
	if s.EmailWorker != nil {
		if err := s.EmailWorker.Start(); err != nil {
			return fmt.Errorf("start email worker: %w", err)
		}
	}
	if s.Scheduler != nil {
		if err := s.Scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	}
	return nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		<-s.Scheduler.Stop().Done()
	}

	if s.EmailWorker != nil {
		s.EmailWorker.Shutdown()
	}

	if s.EmailQueue != nil {
		if err := s.EmailQueue.Close(); err != nil {
			log.Warn("email queue shutdown", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
		s.DB = nil
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver:        strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:          strings.TrimSpace(cfg.Database.Path),
		DSN:           strings.TrimSpace(cfg.Database.DSN),
		LogLevel:      strings.TrimSpace(cfg.Database.LogLevel),
		SlowThreshold: cfg.Database.SlowThreshold,
	}

	var auth app.DBAuthConfig
	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
		return dbCfg
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		auth = cfg.Database.Postgres
	case "mysql":
		auth = cfg.Database.MySQL
	default:
		// Leave driver as-is to surface unsupported driver error during open.
		return dbCfg
	}

	dbCfg.Host = strings.TrimSpace(auth.Host)
	dbCfg.Port = auth.Port
	dbCfg.Name = strings.TrimSpace(auth.Database)
	dbCfg.User = strings.TrimSpace(auth.Username)
	dbCfg.Password = strings.TrimSpace(auth.Password)
	dbCfg.MaxOpenConns = auth.MaxOpenConns
	dbCfg.MaxIdleConns = auth.MaxIdleConns
	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
