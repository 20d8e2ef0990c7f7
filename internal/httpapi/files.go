package httpapi

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/forgemedia/mediajobs/internal/executor"
	"github.com/forgemedia/mediajobs/internal/task"
)

// keyframeImage serves GET /keyframe_image/{id}/{index} (spec.md §6): one
// extracted still from a completed keyframe task.
func (h *Handler) keyframeImage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := task.ID(vars["id"])
	idx, err := strconv.Atoi(vars["index"])
	if err != nil || idx < 0 {
		writeValidationError(w, "index must be a non-negative integer")
		return
	}

	result, ok := h.keyframeResult(w, id)
	if !ok {
		return
	}
	if idx >= len(result.Frames) {
		writeNotFound(w, "frame index out of range")
		return
	}
	dir := filepath.Join(h.Exec.Config.Server.ScratchRoot, "keyframes", string(id))
	http.ServeFile(w, r, filepath.Join(dir, result.Frames[idx].Filename))
}

// keyframeThumbnail serves GET /keyframe_thumbnail/{id} (spec.md §6): the
// contact-sheet grid image composited across all extracted frames.
func (h *Handler) keyframeThumbnail(w http.ResponseWriter, r *http.Request) {
	id := task.ID(mux.Vars(r)["id"])
	if _, ok := h.keyframeResult(w, id); !ok {
		return
	}
	dir := filepath.Join(h.Exec.Config.Server.ScratchRoot, "keyframes", string(id))
	http.ServeFile(w, r, filepath.Join(dir, "contact_sheet.jpg"))
}

func (h *Handler) keyframeResult(w http.ResponseWriter, id task.ID) (executor.KeyframeResult, bool) {
	snap, ok := h.Registry.Get(id)
	if !ok || snap.Family != task.FamilyKeyframe {
		writeNotFound(w, "task not found")
		return executor.KeyframeResult{}, false
	}
	if !snap.Status.IsTerminal() || snap.Status != task.StatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task has not completed yet", "status": string(snap.Status)})
		return executor.KeyframeResult{}, false
	}
	result, ok := snap.Result.(executor.KeyframeResult)
	if !ok {
		writeNotFound(w, "result unavailable")
		return executor.KeyframeResult{}, false
	}
	return result, true
}

// compositionFile serves GET /composition_file/{id} (spec.md §6): the final
// rendered output of a completed composition task.
func (h *Handler) compositionFile(w http.ResponseWriter, r *http.Request) {
	id := task.ID(mux.Vars(r)["id"])
	snap, ok := h.Registry.Get(id)
	if !ok || snap.Family != task.FamilyComposition {
		writeNotFound(w, "task not found")
		return
	}
	if !snap.Status.IsTerminal() || snap.Status != task.StatusCompleted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task has not completed yet", "status": string(snap.Status)})
		return
	}
	result, ok := snap.Result.(executor.CompositionResult)
	if !ok {
		writeNotFound(w, "result unavailable")
		return
	}
	http.ServeFile(w, r, result.OutputFile)
}
