package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/matchbook/notifier/internal/app"
	"github.com/matchbook/notifier/internal/app/maintenance"
	iauth "github.com/matchbook/notifier/internal/auth"
	testutil "github.com/matchbook/notifier/internal/database/testutil"
	"github.com/matchbook/notifier/internal/digest"
	"github.com/matchbook/notifier/internal/services"
)

type countingRunner struct {
	calls int
}

func (r *countingRunner) Run(context.Context, string) (*digest.RunResult, error) {
	r.calls++
	return &digest.RunResult{ProcessedMessages: 1, CreatedNotifications: 1}, nil
}

type routerEnv struct {
	router *gin.Engine
	runner *countingRunner
	jwt    *iauth.JWTService
}

func newRouterEnv(t *testing.T) routerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cfg := &app.Config{}
	cfg.Cron.Secret = "cron-secret"
	cfg.Cron.RunTimeout = time.Minute
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "test"})
	require.NoError(t, err)

	runs, err := services.NewCronRunService(db)
	require.NoError(t, err)

	notifications, err := services.NewNotificationService(db)
	require.NoError(t, err)

	runner := &countingRunner{}
	scheduler := maintenance.NewScheduler(maintenance.WithSchedulingDisabled(), maintenance.WithLatestRuns(runs))
	require.NoError(t, scheduler.Register(maintenance.Definition{
		ID: digest.JobName,
		Run: func(ctx context.Context, trigger string) (any, error) {
			return runner.Run(ctx, trigger)
		},
	}))

	router, err := NewRouter(Dependencies{
		DB:        db,
		Config:    cfg,
		JWT:       jwtSvc,
		Digest:    runner,
		Scheduler: scheduler,
		CronRuns:  runs,

		Notifications: notifications,
	})
	require.NoError(t, err)

	return routerEnv{router: router, runner: runner, jwt: jwtSvc}
}

func (e routerEnv) do(method, path, bearer string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	e.router.ServeHTTP(w, req)
	return w
}

func TestRouterCronRoute(t *testing.T) {
	env := newRouterEnv(t)

	w := env.do(http.MethodGet, "/api/cron/unread-messages", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Zero(t, env.runner.calls)

	w = env.do(http.MethodGet, "/api/cron/unread-messages", "wrong")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Zero(t, env.runner.calls)

	w = env.do(http.MethodGet, "/api/cron/unread-messages", "cron-secret")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"success":true,"processedMessages":1,"createdNotifications":1,"notificationErrors":0}`, w.Body.String())
	require.Equal(t, 1, env.runner.calls)
}

func TestRouterAdminRoutesRequireAdminToken(t *testing.T) {
	env := newRouterEnv(t)

	require.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/admin/cron-jobs", "").Code)
	require.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/admin/cron-jobs", "cron-secret").Code)

	userToken, err := env.jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: "user-1"})
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/admin/cron-jobs", userToken).Code)

	adminToken, err := env.jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: "operator-1", Role: iauth.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/cron-jobs", adminToken).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/cron-runs", adminToken).Code)

	require.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/admin/users/user-1/notifications", userToken).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/users/user-1/notifications", adminToken).Code)

	w := env.do(http.MethodPost, "/api/admin/cron-jobs/"+digest.JobName+"/run", adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, env.runner.calls)
}

func TestRouterHealthMetricsAndNotFound(t *testing.T) {
	env := newRouterEnv(t)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", "").Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/health", "").Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health/live", "").Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/health/ready", "").Code)

	metrics := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, metrics.Code)
	require.Contains(t, metrics.Body.String(), "notifier_api_latency_seconds")

	require.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/nope", "").Code)
}

func TestNewRouterValidatesDependencies(t *testing.T) {
	_, err := NewRouter(Dependencies{})
	require.Error(t, err)
}
