package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fa-sharp/rschat-relay/internal/catalog"
	"github.com/fa-sharp/rschat-relay/internal/relayerr"
	"github.com/fa-sharp/rschat-relay/internal/session"
)

// writeJSON marshals v and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps a domain error to an HTTP status code, following the
// relayerr taxonomy plus the store-layer sentinels.
func writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrMessageNotFound),
		errors.Is(err, catalog.ErrProviderNotFound),
		errors.Is(err, catalog.ErrToolNotFound),
		errors.Is(err, relayerr.ToolNotFound),
		errors.Is(err, relayerr.ToolCallNotFound):
		return http.StatusNotFound
	case errors.Is(err, relayerr.InvalidParameters):
		return http.StatusUnprocessableEntity
	case errors.Is(err, relayerr.AlreadyStreaming):
		return http.StatusConflict
	case errors.Is(err, relayerr.Cancelled):
		return http.StatusRequestTimeout
	case errors.Is(err, relayerr.StreamTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
