package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/matchbook/notifier/internal/app/maintenance"
	"github.com/matchbook/notifier/internal/digest"
	appErrors "github.com/matchbook/notifier/pkg/errors"
	"github.com/matchbook/notifier/pkg/response"
)

// JobRegistry lists and triggers registered cron jobs.
type JobRegistry interface {
	Jobs(ctx context.Context) ([]maintenance.JobInfo, error)
	Trigger(ctx context.Context, id, trigger string) (any, error)
}

// CronJobsHandler exposes the admin cron job manager.
type CronJobsHandler struct {
	registry JobRegistry
}

// NewCronJobsHandler constructs a CronJobsHandler.
func NewCronJobsHandler(registry JobRegistry) (*CronJobsHandler, error) {
	if registry == nil {
		return nil, errors.New("cron jobs handler: registry is required")
	}
	return &CronJobsHandler{registry: registry}, nil
}

// GET /api/admin/cron-jobs
func (h *CronJobsHandler) List(c *gin.Context) {
	jobs, err := h.registry.Jobs(requestContext(c))
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, jobs)
}

// POST /api/admin/cron-jobs/:id/run
func (h *CronJobsHandler) Run(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, appErrors.NewBadRequest("job id is required"))
		return
	}

	result, err := h.registry.Trigger(context.WithoutCancel(requestContext(c)), id, digest.TriggerAdmin)
	if errors.Is(err, maintenance.ErrJobNotFound) {
		response.Error(c, err)
		return
	}

	if run, ok := result.(*digest.RunResult); ok || err != nil {
		writeRunResult(c, run, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
