package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/vigil/internal/apperr"
)

type errResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResponse{Error: msg})
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged with op and attrs and reported without detail.
func writeError(w http.ResponseWriter, op string, err error, attrs ...any) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrStoreMissing):
		writeMessage(w, http.StatusServiceUnavailable, "master store unavailable")
	default:
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
