package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	testutil "github.com/matchbook/notifier/internal/database/testutil"
	"github.com/matchbook/notifier/internal/monitoring"
	"github.com/matchbook/notifier/internal/monitoring/checks"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t)

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(checks.Database(db, 0))
	handler := NewHealthHandler(manager)

	r := gin.New()
	r.GET("/health", handler.Summary)
	r.GET("/health/live", handler.Live)
	r.GET("/health/ready", handler.Ready)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	require.Equal(t, true, summary["success"])
	require.Equal(t, "up", summary["status"])
	require.NotContains(t, summary, "checks")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, w.Code)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var ready struct {
		Success bool                     `json:"success"`
		Checks  []monitoring.ProbeResult `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	require.False(t, ready.Success)
	require.Len(t, ready.Checks, 1)
	require.Equal(t, "database", ready.Checks[0].Component)
	require.Equal(t, monitoring.StatusDown, ready.Checks[0].Status)
}
