// Package httpapi implements spec.md §6's HTTP surface: four task-creating
// endpoints, per-task polling endpoints, and the system-control surface
// (health, resources, tasks, errors, cleanup, performance), all dispatching
// into the collaborators built elsewhere in this module.
//
// Grounded on the teacher's use of gorilla/mux for routing (the teacher's
// go.mod already carries it) and its handler-returns-JSON convention.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forgemedia/mediajobs/internal/admission"
	"github.com/forgemedia/mediajobs/internal/cache"
	"github.com/forgemedia/mediajobs/internal/classify"
	"github.com/forgemedia/mediajobs/internal/executor"
	"github.com/forgemedia/mediajobs/internal/hardware"
	"github.com/forgemedia/mediajobs/internal/janitor"
	"github.com/forgemedia/mediajobs/internal/logging"
	"github.com/forgemedia/mediajobs/internal/metrics"
	"github.com/forgemedia/mediajobs/internal/sampler"
	"github.com/forgemedia/mediajobs/internal/task"
	"github.com/forgemedia/mediajobs/internal/workers"
)

// Handler bundles every collaborator the HTTP surface dispatches into.
type Handler struct {
	Registry  *task.Registry
	Admission *admission.Controller
	Sampler   *sampler.Sampler
	Cache     *cache.Cache
	Hardware  *hardware.Prober
	Janitor   *janitor.Janitor
	Pool      *workers.Pool
	Exec      executor.Deps
	Errors    *classify.Ring
	Log       *logging.Logger
	StartedAt time.Time
}

// NewRouter builds the full route table over h, with CORS allow-all applied
// to every route (spec.md §6: "CORS: allow all origins/methods/headers").
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/generate_text_from_video", h.createTranscription).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/download_video", h.createDownload).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/extract_keyframes", h.createKeyframes).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/compose_video", h.createComposition).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/transcription_status/{id}", h.status(task.FamilyTranscription)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/download_status/{id}", h.status(task.FamilyDownload)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/keyframe_status/{id}", h.status(task.FamilyKeyframe)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/composition_status/{id}", h.status(task.FamilyComposition)).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/transcription_result/{id}", h.result).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/download_result/{id}", h.result).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/keyframe_result/{id}", h.result).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/composition_result/{id}", h.result).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/keyframe_image/{id}/{index}", h.keyframeImage).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/keyframe_thumbnail/{id}", h.keyframeThumbnail).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/composition_file/{id}", h.compositionFile).Methods(http.MethodGet, http.MethodOptions)

	reg := prometheus.NewRegistry()
	reg.MustRegister(&metrics.Collector{
		Registry: h.Registry,
		Sampler:  h.Sampler,
		Cache:    h.Cache,
		Pool:     h.Pool,
		Errors:   h.Errors,
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/resources", h.systemResources).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/resources/history", h.systemResourcesHistory).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/resources/cleanup", h.systemResourcesCleanup).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/system/resources/limits", h.systemResourcesLimits).Methods(http.MethodPut, http.MethodOptions)
	r.HandleFunc("/system/tasks", h.systemTasks).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/tasks/{id}/cancel", h.systemTaskCancel).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/system/tasks/{id}/force-cleanup", h.systemTaskForceCleanup).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/system/errors/stats", h.systemErrorsStats).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/errors/recent", h.systemErrorsRecent).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/cleanup/stats", h.systemCleanupStats).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/cleanup/force", h.systemCleanupForce).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/system/performance/stats", h.systemPerformanceStats).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/performance/cache/stats", h.systemCacheStats).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/performance/cache/clear", h.systemCacheClear).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/system/performance/hardware", h.systemHardware).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/performance/memory", h.systemMemory).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/system/performance/memory/cleanup", h.systemMemoryCleanup).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/system/performance/optimize", h.systemOptimize).Methods(http.MethodPost, http.MethodOptions)

	return corsAllowAll(r)
}

// corsAllowAll applies spec.md §6's "allow all origins/methods/headers"
// policy to every response, short-circuiting preflight OPTIONS requests.
func corsAllowAll(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
