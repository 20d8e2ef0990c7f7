package httpapi

import (
	"net/http"
	"strconv"
)

// systemErrorsStats serves GET /system/errors/stats (spec.md §6): per-kind
// counters accumulated by the error classifier's ring.
func (h *Handler) systemErrorsStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Errors.Stats())
}

// systemErrorsRecent serves GET /system/errors/recent?limit=N (spec.md §6),
// clamped to the ring's [1,100] range.
func (h *Handler) systemErrorsRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	writeJSON(w, http.StatusOK, h.Errors.Recent(limit))
}
