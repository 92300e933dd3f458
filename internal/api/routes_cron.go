package api

import (
	"github.com/gin-gonic/gin"

	"github.com/matchbook/notifier/internal/handlers"
	"github.com/matchbook/notifier/internal/middleware"
)

func registerCronRoutes(r *gin.Engine, deps Dependencies) error {
	handler, err := handlers.NewCronHandler(deps.Digest, deps.Config.Cron.RunTimeout)
	if err != nil {
		return err
	}

	cron := r.Group("/api/cron")
	cron.Use(middleware.CronSecret(deps.Config.Cron.Secret))
	cron.GET("/unread-messages", handler.UnreadMessages)
	return nil
}
