package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fa-sharp/rschat-relay/internal/catalog"
	"github.com/fa-sharp/rschat-relay/internal/toolexec"
)

// handleExecuteTool runs a pending tool call referenced on an assistant
// message and streams its incremental output as SSE, persisting the
// resulting tool-role message when it completes.
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	sessionID := chi.URLParam(r, "sessionID")
	messageID := chi.URLParam(r, "messageID")
	callID := chi.URLParam(r, "callID")

	if _, err := s.Sessions.GetSession(ctx, userID, sessionID); err != nil {
		writeError(w, err)
		return
	}
	msg, err := s.Sessions.GetMessage(ctx, sessionID, messageID)
	if err != nil {
		writeError(w, err)
		return
	}
	callRef, err := toolexec.ResolvePendingCall(msg, callID)
	if err != nil {
		writeError(w, err)
		return
	}
	configs, err := s.Catalog.ListTools(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	cfg, found := findToolConfig(configs, callRef.ToolID)
	if !found {
		writeError(w, catalog.ErrToolNotFound)
		return
	}
	tool, err := s.ToolCatalog.Build(cfg)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := writeSSEHeader(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	out := toolexec.BoundedChannel()
	closed := make(chan struct{})
	runCtx := context.WithoutCancel(ctx)

	done := make(chan struct{})
	var execErr error
	go func() {
		defer close(done)
		result, err := s.Executor.ExecuteAndPersist(runCtx, sessionID, callRef, tool, out, closed)
		execErr = err
		if err == nil {
			writeSSEFrame(w, flusher, result.ID, "tool_result", result.Content)
		}
	}()

drain:
	for {
		select {
		case ev, ok := <-out:
			if !ok {
				break drain
			}
			data, _ := json.Marshal(ev)
			writeSSEFrame(w, flusher, "", string(ev.Kind), string(data))
		case <-done:
			break drain
		case <-ctx.Done():
			close(closed)
			break drain
		}
	}
	<-done
	if execErr != nil {
		s.Logger.Error(ctx, "tool execution failed", "message_id", messageID, "call_id", callID, "error", execErr.Error())
	}
}

func findToolConfig(configs []catalog.ToolConfig, toolID string) (catalog.ToolConfig, bool) {
	for _, c := range configs {
		if c.ID == toolID {
			return c, true
		}
	}
	return catalog.ToolConfig{}, false
}

// handleListToolConfigs returns the caller's configured tools.
func (s *Server) handleListToolConfigs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	tools, err := s.Catalog.ListTools(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tools)
}

type createToolConfigRequest struct {
	Name     string          `json:"name"`
	ToolType string          `json:"tool_type"`
	Config   json.RawMessage `json:"config"`
}

// handleCreateToolConfig persists a new tool configuration for the caller,
// first validating it by attempting to build the runtime Tool it describes.
func (s *Server) handleCreateToolConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)

	var req createToolConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	cfg := catalog.ToolConfig{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     req.Name,
		ToolType: req.ToolType,
		Config:   req.Config,
	}
	if _, err := s.ToolCatalog.Build(cfg); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	created, err := s.Catalog.CreateTool(ctx, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleDeleteToolConfig removes a tool configuration owned by the caller.
func (s *Server) handleDeleteToolConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	toolID := chi.URLParam(r, "toolID")
	if err := s.Catalog.DeleteTool(ctx, userID, toolID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
