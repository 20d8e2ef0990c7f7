package httpapi

import (
	"net/http"
	"runtime"
	"runtime/debug"
)

// systemPerformanceStats serves GET /system/performance/stats (spec.md §6):
// a combined view of worker-pool throughput and the latest resource sample.
func (h *Handler) systemPerformanceStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pool":      h.Pool.Stats(),
		"resources": h.Sampler.Stats(),
	})
}

// systemCacheStats serves GET /system/performance/cache/stats (spec.md §6).
func (h *Handler) systemCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "cache disabled"})
		return
	}
	writeJSON(w, http.StatusOK, h.Cache.Stats())
}

// systemCacheClear serves POST /system/performance/cache/clear (spec.md §6).
func (h *Handler) systemCacheClear(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "cache disabled"})
		return
	}
	if err := h.Cache.Clear(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// systemHardware serves GET /system/performance/hardware (spec.md §6 /
// §4.9): the probed accelerated-encoder capability.
func (h *Handler) systemHardware(w http.ResponseWriter, r *http.Request) {
	if h.Hardware == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"preferred": "", "available": []string{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"preferred": h.Hardware.Preferred(),
		"available": h.Hardware.Available(),
	})
}

// systemMemory serves GET /system/performance/memory (spec.md §6): Go
// runtime heap statistics, standing in for process memory diagnostics.
func (h *Handler) systemMemory(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"heap_alloc_bytes": m.HeapAlloc,
		"heap_sys_bytes":   m.HeapSys,
		"heap_idle_bytes":  m.HeapIdle,
		"num_gc":           m.NumGC,
		"goroutines":       runtime.NumGoroutine(),
	})
}

// systemMemoryCleanup serves POST /system/performance/memory/cleanup
// (spec.md §6): forces the same heap-reclamation hook the sampler's memory
// mitigation uses, without the accompanying scratch sweep.
func (h *Handler) systemMemoryCleanup(w http.ResponseWriter, r *http.Request) {
	debug.FreeOSMemory()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reclaimed"})
}

// systemOptimize serves POST /system/performance/optimize (spec.md §6): runs
// every available tuning action — cache sweep, memory reclamation, and a
// janitor pass — in one call.
func (h *Handler) systemOptimize(w http.ResponseWriter, r *http.Request) {
	cacheSwept := 0
	if h.Cache != nil {
		cacheSwept = h.Cache.SweepExpired()
	}
	debug.FreeOSMemory()
	h.Janitor.Sweep()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cache_evicted": cacheSwept,
		"status":        "optimized",
	})
}
