package httpapi

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/forgemedia/mediajobs/internal/task"
)

// systemTasks serves GET /system/tasks (spec.md §6): per-family counts.
func (h *Handler) systemTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.List())
}

// systemTaskCancel serves POST /system/tasks/{id}/cancel (spec.md §6 /
// §4.1 cancel): 404 for an unknown id, otherwise whether cancellation took
// effect (a no-op on an already-terminal or already-locked task still
// reports 200 with cancelled=false, matching spec.md §4.1's edge case).
func (h *Handler) systemTaskCancel(w http.ResponseWriter, r *http.Request) {
	id := task.ID(mux.Vars(r)["id"])
	if !h.Registry.Exists(id) {
		writeNotFound(w, "task not found")
		return
	}
	cancelled := h.Registry.Cancel(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":   string(id),
		"cancelled": cancelled,
	})
}

// systemTaskForceCleanup serves POST /system/tasks/{id}/force-cleanup
// (spec.md §6): "same as cancel + file sweep" — cancels the task if it's
// still running, removes its scratch paths immediately rather than waiting
// for the janitor, then purges the record.
func (h *Handler) systemTaskForceCleanup(w http.ResponseWriter, r *http.Request) {
	id := task.ID(mux.Vars(r)["id"])
	if !h.Registry.Exists(id) {
		writeNotFound(w, "task not found")
		return
	}

	paths := h.Registry.TempPaths(id)
	cancelled := h.Registry.Cancel(id)
	for _, p := range paths {
		_ = os.RemoveAll(p)
	}
	purged := h.Registry.Purge(id)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":        string(id),
		"cancelled":      cancelled,
		"paths_removed":  len(paths),
		"purged":         purged,
	})
}
