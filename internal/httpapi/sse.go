package httpapi

import (
	"fmt"
	"net/http"
)

// writeSSEHeader sets the headers required for an SSE response and flushes
// them immediately so the client's EventSource sees the connection open.
func writeSSEHeader(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

// writeSSEFrame writes one id:/event:/data: frame and flushes it.
func writeSSEFrame(w http.ResponseWriter, flusher http.Flusher, id, event, data string) {
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
