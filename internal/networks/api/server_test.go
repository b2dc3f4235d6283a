package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bikeshare-dashboard/internal/common/logger"
	"github.com/bikeshare-dashboard/internal/networks/analytics"
	"github.com/bikeshare-dashboard/internal/networks/enricher"
	"github.com/bikeshare-dashboard/internal/networks/pipeline"
	"github.com/bikeshare-dashboard/pkg/networks/models"
)

type fakeSource struct {
	current *pipeline.Dashboard
	loads   int
}

func (f *fakeSource) Current() *pipeline.Dashboard { return f.current }

func (f *fakeSource) Load(context.Context) *pipeline.Dashboard {
	f.loads++
	if f.current == nil {
		f.current = sampleDashboard()
	}
	return f.current
}

func sampleDashboard() *pipeline.Dashboard {
	us, fr := "US", "FR"
	rows := []models.EnrichedNetworkRow{
		{NetworkDescriptor: models.NetworkDescriptor{ID: "a", Name: "Alpha", Country: &us}, StationCount: 2, FreeBikes: 3, EmptySlots: 7},
		{NetworkDescriptor: models.NetworkDescriptor{ID: "b", Name: "Beta", Country: &fr}, StationCount: 9, FreeBikes: 1, EmptySlots: 0},
		{NetworkDescriptor: models.NetworkDescriptor{ID: "c", Name: "Gamma", Country: &us}, StationCount: 4, FreeBikes: 8, EmptySlots: 1},
	}
	return pipeline.NewDashboard(enricher.Result{RunID: "run-1", Rows: rows}, time.Now())
}

func do(t *testing.T, s *Server, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestNotLoadedYet(t *testing.T) {
	s := New(":0", &fakeSource{}, logger.Nop())

	rec, body := do(t, s, http.MethodGet, "/api/v1/networks")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, body["error"], "not loaded")

	rec, _ = do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNetworksPaginated(t *testing.T) {
	s := New(":0", &fakeSource{current: sampleDashboard()}, logger.Nop())

	rec, _ := do(t, s, http.MethodGet, "/api/v1/networks?page=2&page_size=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var page analytics.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c", page.Items[0].ID)
	assert.Equal(t, 8, page.Items[0].FreeBikes)
}

func TestTopNetworks(t *testing.T) {
	s := New(":0", &fakeSource{current: sampleDashboard()}, logger.Nop())

	rec, body := do(t, s, http.MethodGet, "/api/v1/networks/top?metric=free_bikes&n=2")
	require.Equal(t, http.StatusOK, rec.Code)

	networks := body["networks"].([]interface{})
	require.Len(t, networks, 2)
	assert.Equal(t, "c", networks[0].(map[string]interface{})["id"])
	assert.Equal(t, "a", networks[1].(map[string]interface{})["id"])

	rec, _ = do(t, s, http.MethodGet, "/api/v1/networks/top?metric=speed")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/networks/top?n=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCountries(t *testing.T) {
	s := New(":0", &fakeSource{current: sampleDashboard()}, logger.Nop())

	rec, body := do(t, s, http.MethodGet, "/api/v1/countries")
	require.Equal(t, http.StatusOK, rec.Code)
	countries := body["countries"].([]interface{})
	require.Len(t, countries, 2)
	us := countries[0].(map[string]interface{})
	assert.Equal(t, "US", us["country"])
	assert.Equal(t, float64(6), us["station_count"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/countries/top?n=1")
	require.Equal(t, http.StatusOK, rec.Code)
	top := body["countries"].([]interface{})
	require.Len(t, top, 1)
	assert.Equal(t, "FR", top[0].(map[string]interface{})["country"])
}

func TestDashboardAndRefresh(t *testing.T) {
	source := &fakeSource{}
	s := New(":0", source, logger.Nop())

	rec, body := do(t, s, http.MethodPost, "/api/v1/refresh")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, source.loads)
	assert.Equal(t, float64(3), body["networks"])

	rec, body = do(t, s, http.MethodGet, "/api/v1/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	dashboard := body["dashboard"].(map[string]interface{})
	assert.Equal(t, "Beta (9 stations)", dashboard["top_network"])
	assert.Equal(t, "run-1", dashboard["run_id"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(":0", &fakeSource{}, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

type fakeRuns struct {
	run *models.RunRecord
	err error
}

func (f fakeRuns) LatestRun(context.Context) (*models.RunRecord, error) { return f.run, f.err }

type fakeCleanup struct{}

func (fakeCleanup) GetStatus() map[string]interface{} {
	return map[string]interface{}{"is_running": true, "run_retention": "720h0m0s"}
}

func TestStatusBeforeLoad(t *testing.T) {
	s := New(":0", &fakeSource{}, logger.Nop())

	rec, body := do(t, s, http.MethodGet, "/api/v1/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["loaded"])
	assert.NotContains(t, body, "latest_run")
	assert.NotContains(t, body, "cleanup")
}

func TestStatusWithHistoryAndCleanup(t *testing.T) {
	run := &models.RunRecord{RunID: "run-0", Networks: 3, FromSnapshot: true, Warning: "structural failure"}
	s := New(":0", &fakeSource{current: sampleDashboard()}, logger.Nop()).
		WithRunHistory(fakeRuns{run: run}).
		WithCleanupStatus(fakeCleanup{})

	rec, body := do(t, s, http.MethodGet, "/api/v1/status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["loaded"])
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, float64(3), body["networks"])

	latest, ok := body["latest_run"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "run-0", latest["run_id"])
	assert.Equal(t, true, latest["from_snapshot"])

	cleanup, ok := body["cleanup"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, cleanup["is_running"])
}

func TestStatusRunHistoryUnavailable(t *testing.T) {
	s := New(":0", &fakeSource{current: sampleDashboard()}, logger.Nop()).
		WithRunHistory(fakeRuns{err: errors.New("connection refused")})

	rec, body := do(t, s, http.MethodGet, "/api/v1/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run history unavailable", body["latest_run_error"])
	assert.NotContains(t, body, "latest_run")
}
