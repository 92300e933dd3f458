package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/matchbook/notifier/internal/app"
	"github.com/matchbook/notifier/internal/app/maintenance"
	iauth "github.com/matchbook/notifier/internal/auth"
	"github.com/matchbook/notifier/internal/handlers"
	"github.com/matchbook/notifier/internal/middleware"
	"github.com/matchbook/notifier/internal/monitoring"
	"github.com/matchbook/notifier/internal/monitoring/checks"
	"github.com/matchbook/notifier/internal/services"
)

// Dependencies bundles what the HTTP surface needs.
type Dependencies struct {
	DB        *gorm.DB
	Config    *app.Config
	JWT       *iauth.JWTService
	Digest    handlers.DigestRunner
	Scheduler *maintenance.Scheduler
	CronRuns  *services.CronRunService
	// Notifications enables the per-user notification listing of the admin API.
	Notifications *services.NotificationService
	// Health defaults to a manager probing DB only.
	Health *monitoring.HealthManager
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, errors.New("database handle must be provided")
	}
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.Digest == nil {
		return nil, errors.New("digest runner must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager()
		health.RegisterReadiness(checks.Database(deps.DB, 0))
	}
	registerHealthRoutes(r, health)

	if err := registerCronRoutes(r, deps); err != nil {
		return nil, err
	}
	if err := registerAdminRoutes(r, deps); err != nil {
		return nil, err
	}

	if prom := deps.Config.Monitoring.Prometheus; prom.Enabled {
		endpoint := prom.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
