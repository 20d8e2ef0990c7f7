package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgemedia/mediajobs/internal/admission"
	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/sampler"
	"github.com/forgemedia/mediajobs/internal/task"
	"github.com/forgemedia/mediajobs/internal/workers"
)

func newTestHandler(t *testing.T, limits sampler.Limits) (*Handler, *task.Registry) {
	t.Helper()
	log := logging.New(logging.DefaultConfig())
	registry := task.New(log, time.Minute)
	mitigator := sampler.NewDefaultMitigator(nil, log)
	s := sampler.New(sampler.Config{Limits: limits, Volume: "/"}, registry, mitigator, log)

	h := &Handler{
		Registry:  registry,
		Admission: admission.New(s),
		Sampler:   s,
		Pool:      workers.New(workers.Config{}),
		Errors:    classify.NewRing(100),
		Log:       log,
		StartedAt: time.Now(),
	}
	return h, registry
}

func permissiveLimits() sampler.Limits {
	return sampler.Limits{
		MaxConcurrentTasks: 100,
		MaxCPUPercent:      99,
		MaxMemPercent:      99,
		MaxDiskPercent:     99,
	}
}

func TestHealthEndpointReportsOK(t *testing.T) {
	h, _ := newTestHandler(t, permissiveLimits())
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCreateDownloadRejectsMissingVideoURL(t *testing.T) {
	h, _ := newTestHandler(t, permissiveLimits())
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/download_video", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, classify.InputValidation.String(), body["kind"])
}

func TestCreateDownloadRejectsWhenAdmissionRefuses(t *testing.T) {
	h, _ := newTestHandler(t, sampler.Limits{MaxConcurrentTasks: 0, MaxCPUPercent: 99, MaxMemPercent: 99, MaxDiskPercent: 99})
	router := NewRouter(h)

	body := strings.NewReader(`{"video_url": "https://example.com/v.mp4"}`)
	req := httptest.NewRequest(http.MethodPost, "/download_video", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusEndpointReturnsExistingTask(t *testing.T) {
	h, registry := newTestHandler(t, permissiveLimits())
	router := NewRouter(h)
	id := registry.Create(task.FamilyDownload, nil)

	req := httptest.NewRequest(http.MethodGet, "/download_status/"+string(id), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var snap task.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, task.FamilyDownload, snap.Family)
}

func TestStatusEndpointReturns404ForUnknownTask(t *testing.T) {
	h, _ := newTestHandler(t, permissiveLimits())
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/download_status/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflightShortCircuitsWithNoContent(t *testing.T) {
	h, _ := newTestHandler(t, permissiveLimits())
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	h, _ := newTestHandler(t, permissiveLimits())
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mediajobs_active_tasks")
}
