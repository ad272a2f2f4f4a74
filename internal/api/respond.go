package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps an error returned by the services to its HTTP status
// by kind. Errors without a kind are logged and reported as 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch apperr.Kind(err) {
	case apperr.ErrValidation:
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case apperr.ErrNotFound:
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case apperr.ErrForbidden:
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case apperr.ErrConflict:
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case apperr.ErrIllegalTransition:
		writeError(w, http.StatusConflict, "illegal_transition", err.Error())
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
