package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// health serves GET /health (spec.md §6): a liveness probe independent of
// resource pressure.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime_s": time.Since(h.StartedAt).Seconds(),
	})
}

// systemResources serves GET /system/resources (spec.md §6): the latest
// resource sample.
func (h *Handler) systemResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Sampler.Stats())
}

// systemResourcesHistory serves GET /system/resources/history?minutes=N
// (spec.md §6), defaulting to 10 minutes.
func (h *Handler) systemResourcesHistory(w http.ResponseWriter, r *http.Request) {
	minutes := 10
	if v := r.URL.Query().Get("minutes"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			minutes = n
		}
	}
	writeJSON(w, http.StatusOK, h.Sampler.History(time.Duration(minutes)*time.Minute))
}

// systemResourcesCleanup serves POST /system/resources/cleanup (spec.md §6):
// runs the sampler's mitigations unconditionally.
func (h *Handler) systemResourcesCleanup(w http.ResponseWriter, r *http.Request) {
	reclaimed, removed, err := h.Sampler.ForceCleanup()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reclaimed_memory": reclaimed,
		"scratch_removed":  removed,
	})
}

// systemResourcesLimits serves PUT /system/resources/limits (spec.md §6): a
// partial patch of ResourceLimits fields, range-validated by the sampler.
func (h *Handler) systemResourcesLimits(w http.ResponseWriter, r *http.Request) {
	var patch map[string]float64
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeValidationError(w, "malformed JSON body: "+err.Error())
		return
	}
	if err := h.Sampler.UpdateLimits(patch); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Sampler.Limits())
}
