package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/forgemedia/mediajobs/internal/classify"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes te as a JSON error body with the HTTP status the caller
// passes; the status is not derived from te.Kind.
func writeError(w http.ResponseWriter, status int, te *classify.TaskError) {
	writeJSON(w, status, map[string]string{
		"error": te.Message,
		"kind":  te.Kind.String(),
	})
}

func writeValidationError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": message,
		"kind":  classify.InputValidation.String(),
	})
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": message})
}
