package api

import (
	"encoding/json"
	"net/http"

	"github.com/skywavefm/onair/internal/onairerr"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": msg})
}

// writeErr maps the core error taxonomy to an HTTP status; the core state
// is never mutated on a 4xx per the propagation policy.
func writeErr(w http.ResponseWriter, err error) {
	switch err.(type) {
	case *onairerr.QueueMiss:
		writeJSONError(w, http.StatusNotFound, err.Error())
	case *onairerr.CatalogInvalid:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
