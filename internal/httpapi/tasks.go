package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/forgemedia/mediajobs/internal/executor"
	"github.com/forgemedia/mediajobs/internal/task"
)

// createResponse is every task-creating endpoint's 200 body (spec.md §6:
// "the task id, accepted immediately").
type createResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// admit runs the admission check and, on rejection, writes a 503 with the
// breached limit's message (spec.md §7: ResourceLimit -> 503). Returns false
// if the request was rejected and already responded to.
func (h *Handler) admit(w http.ResponseWriter) bool {
	if te := h.Admission.Admit(); te != nil {
		writeError(w, http.StatusServiceUnavailable, te)
		return false
	}
	return true
}

func (h *Handler) createTranscription(w http.ResponseWriter, r *http.Request) {
	var params executor.TranscriptionParams
	if !decodeBody(w, r, &params) {
		return
	}
	if params.VideoURL == "" {
		writeValidationError(w, "video_url is required")
		return
	}
	if !h.admit(w) {
		return
	}
	id := h.Registry.Create(task.FamilyTranscription, params)
	h.submit(id, func(ctx context.Context) { h.Exec.Transcribe(ctx, id, params) })
	writeJSON(w, http.StatusOK, createResponse{TaskID: string(id), Status: "accepted"})
}

func (h *Handler) createDownload(w http.ResponseWriter, r *http.Request) {
	var params executor.DownloadParams
	if !decodeBody(w, r, &params) {
		return
	}
	if params.VideoURL == "" {
		writeValidationError(w, "video_url is required")
		return
	}
	if !h.admit(w) {
		return
	}
	id := h.Registry.Create(task.FamilyDownload, params)
	h.submit(id, func(ctx context.Context) { h.Exec.Download(ctx, id, params) })
	writeJSON(w, http.StatusOK, createResponse{TaskID: string(id), Status: "accepted"})
}

func (h *Handler) createKeyframes(w http.ResponseWriter, r *http.Request) {
	var params executor.KeyframeParams
	if !decodeBody(w, r, &params) {
		return
	}
	if params.VideoURL == "" {
		writeValidationError(w, "video_url is required")
		return
	}
	if !h.admit(w) {
		return
	}
	id := h.Registry.Create(task.FamilyKeyframe, params)
	h.submit(id, func(ctx context.Context) { h.Exec.ExtractKeyframes(ctx, id, params) })
	writeJSON(w, http.StatusOK, createResponse{TaskID: string(id), Status: "accepted"})
}

func (h *Handler) createComposition(w http.ResponseWriter, r *http.Request) {
	var params executor.CompositionParams
	if !decodeBody(w, r, &params) {
		return
	}
	if params.CompositionType == "" {
		writeValidationError(w, "composition_type is required")
		return
	}
	if !h.admit(w) {
		return
	}
	id := h.Registry.Create(task.FamilyComposition, params)
	h.submit(id, func(ctx context.Context) { h.Exec.Compose(ctx, id, params) })
	writeJSON(w, http.StatusOK, createResponse{TaskID: string(id), Status: "accepted"})
}

// submit runs fn on the worker pool under a context independent of the
// originating HTTP request's lifetime (spec.md §5: a task outlives the
// request that created it; only /system/tasks/{id}/cancel ends it early).
func (h *Handler) submit(id task.ID, fn func(ctx context.Context)) {
	_ = h.Pool.Submit(context.Background(), workerTask{id: id, fn: fn})
}

type workerTask struct {
	id task.ID
	fn func(ctx context.Context)
}

func (t workerTask) Execute(ctx context.Context) error {
	t.fn(ctx)
	return nil
}

func (t workerTask) ID() string { return string(t.id) }

// status returns a handler for GET /<family>_status/{id} (spec.md §6): 404
// for an unknown id, otherwise the task's current snapshot minus its result
// payload.
func (h *Handler) status(fam task.Family) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := task.ID(mux.Vars(r)["id"])
		snap, ok := h.Registry.Get(id)
		if !ok || snap.Family != fam {
			writeNotFound(w, "task not found")
			return
		}
		snap.Result = nil
		writeJSON(w, http.StatusOK, snap)
	}
}

// result returns a handler for GET /<family>_result/{id} (spec.md §6): 404
// for an unknown id, 409 if the task hasn't reached a terminal state yet,
// otherwise the full snapshot including its result or error.
func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	id := task.ID(mux.Vars(r)["id"])
	snap, ok := h.Registry.Get(id)
	if !ok {
		writeNotFound(w, "task not found")
		return
	}
	if !snap.Status.IsTerminal() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "task has not finished yet",
			"status": string(snap.Status),
		})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		writeValidationError(w, "malformed JSON body: "+err.Error())
		return false
	}
	return true
}
