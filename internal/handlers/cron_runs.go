package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matchbook/notifier/internal/services"
	appErrors "github.com/matchbook/notifier/pkg/errors"
	"github.com/matchbook/notifier/pkg/response"
)

const (
	defaultRunsPerPage = 50
	maxRunsPerPage     = 200
)

// CronRunsHandler serves the run ledger.
type CronRunsHandler struct {
	svc *services.CronRunService
}

// NewCronRunsHandler constructs a CronRunsHandler.
func NewCronRunsHandler(svc *services.CronRunService) (*CronRunsHandler, error) {
	if svc == nil {
		return nil, errors.New("cron runs handler: service is required")
	}
	return &CronRunsHandler{svc: svc}, nil
}

// GET /api/admin/cron-runs
func (h *CronRunsHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	if page <= 0 {
		page = 1
	}
	per := parseIntQuery(c, "per_page", defaultRunsPerPage)
	if per <= 0 || per > maxRunsPerPage {
		per = defaultRunsPerPage
	}

	var filters services.CronRunFilters
	if !bindQueryAndValidate(c, &filters) {
		return
	}
	if filters.Since != nil && filters.Until != nil && filters.Until.Before(*filters.Since) {
		response.Error(c, appErrors.NewBadRequest("until must not be before since"))
		return
	}

	runs, total, err := h.svc.List(requestContext(c), services.CronRunListOptions{
		Page:     page,
		PageSize: per,
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, runs, response.NewMeta(page, per, total))
}
