package httpapi

import "net/http"

// systemCleanupStats serves GET /system/cleanup/stats (spec.md §6): a
// snapshot of registry/cache bookkeeping the janitor would act on next.
func (h *Handler) systemCleanupStats(w http.ResponseWriter, r *http.Request) {
	var cacheStats interface{}
	if h.Cache != nil {
		cacheStats = h.Cache.Stats()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_families": h.Registry.List(),
		"active_tasks":  h.Registry.ActiveCount(),
		"cache":         cacheStats,
	})
}

// systemCleanupForce serves POST /system/cleanup/force (spec.md §6): runs
// one full janitor sweep pass immediately instead of waiting for the next
// tick.
func (h *Handler) systemCleanupForce(w http.ResponseWriter, r *http.Request) {
	h.Janitor.Sweep()
	writeJSON(w, http.StatusOK, map[string]string{"status": "swept"})
}
