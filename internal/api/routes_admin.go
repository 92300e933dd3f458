package api

import (
	"github.com/gin-gonic/gin"

	"github.com/matchbook/notifier/internal/handlers"
	"github.com/matchbook/notifier/internal/middleware"
	"github.com/matchbook/notifier/pkg/logger"
)

// registerAdminRoutes mounts the operator API. It is skipped when no JWT service is
// configured.
func registerAdminRoutes(r *gin.Engine, deps Dependencies) error {
	if deps.JWT == nil || deps.Scheduler == nil || deps.CronRuns == nil {
		logger.WithModule("api").Info("admin routes disabled")
		return nil
	}

	jobs, err := handlers.NewCronJobsHandler(deps.Scheduler)
	if err != nil {
		return err
	}
	runs, err := handlers.NewCronRunsHandler(deps.CronRuns)
	if err != nil {
		return err
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.AdminAuth(deps.JWT))
	{
		admin.GET("/cron-jobs", jobs.List)
		admin.POST("/cron-jobs/:id/run", jobs.Run)
		admin.GET("/cron-runs", runs.List)
	}

	if deps.Notifications != nil {
		notifications, err := handlers.NewNotificationsHandler(deps.Notifications)
		if err != nil {
			return err
		}
		admin.GET("/users/:id/notifications", notifications.ListForUser)
	}
	return nil
}
