package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fa-sharp/rschat-relay/internal/chatmodel"
	"github.com/fa-sharp/rschat-relay/internal/consumer"
	"github.com/fa-sharp/rschat-relay/internal/eventlog"
	"github.com/fa-sharp/rschat-relay/internal/producer"
	"github.com/fa-sharp/rschat-relay/internal/session"
	"github.com/fa-sharp/rschat-relay/internal/tools/codeexec"
	"github.com/fa-sharp/rschat-relay/internal/tools/httprequest"
	"github.com/fa-sharp/rschat-relay/internal/tools/websearch"
)

// startStreamRequest is the body of POST /chat/{sessionID}.
type startStreamRequest struct {
	ProviderID  string   `json:"provider_id"`
	Model       string   `json:"model"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// handleStartStream starts a new assistant response for a session: it
// loads history, builds the upstream request, acquires the producer's
// exclusive log key, and runs the produce loop to completion in the
// background while this request returns immediately with 202. Clients
// attach to /chat/{sessionID}/stream to observe it.
func (s *Server) handleStartStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	sessionID := chi.URLParam(r, "sessionID")

	var req startStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	sess, err := s.Sessions.GetSession(ctx, userID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	provider, err := s.Catalog.GetProvider(ctx, userID, req.ProviderID)
	if err != nil {
		writeError(w, err)
		return
	}
	adapter, err := s.Adapters.Build(provider, req.Model)
	if err != nil {
		writeError(w, err)
		return
	}

	messages, err := s.Sessions.ListMessages(ctx, sess.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	tools, err := s.toolDefinitions(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	key := eventlog.ChatStreamKey(userID, sessionID)
	p := producer.New(s.Log, key, s.Logger, s.Metrics)
	if err := p.Start(ctx); err != nil {
		writeError(w, err)
		return
	}

	opts := chatmodel.Options{Model: req.Model, MaxTokens: req.MaxTokens, Temperature: req.Temperature}
	stream, err := adapter.ChatStream(ctx, encodeHistory(messages), tools, opts)
	if err != nil {
		_ = p.End(ctx)
		writeError(w, err)
		return
	}

	go s.runProducer(context.WithoutCancel(ctx), p, stream, sess.ID, provider.ID, req.Model)

	w.WriteHeader(http.StatusAccepted)
}

// runProducer drives the produce loop to completion and persists the
// resulting assistant message, detached from the originating request's
// context so a client disconnect does not cut the response short.
func (s *Server) runProducer(ctx context.Context, p *producer.Producer, stream chatmodel.Stream, sessionID, providerID, model string) {
	result := p.Run(ctx, stream)
	if err := p.End(ctx); err != nil {
		s.Logger.Error(ctx, "failed to end stream", "session_id", sessionID, "error", err.Error())
	}
	msg := producer.BuildAssistantMessage(result, sessionID, providerID, model)
	if _, err := s.Sessions.AppendMessage(ctx, msg); err != nil {
		s.Logger.Error(ctx, "failed to persist assistant message", "session_id", sessionID, "error", err.Error())
	}
}

// handleAttachStream replays a session's stream history then tails new
// entries as SSE, honoring a client-supplied Last-Event-ID for resumption.
func (s *Server) handleAttachStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	sessionID := chi.URLParam(r, "sessionID")
	key := eventlog.ChatStreamKey(userID, sessionID)

	flusher, ok := writeSSEHeader(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := consumer.New(s.Log)
	lastEventID := r.Header.Get("Last-Event-ID")

	var cursor string
	if lastEventID == "" {
		frames, last, isEnd, err := c.ReadRange(ctx, key)
		if err != nil {
			writeSSEFrame(w, flusher, "", "error", err.Error())
			return
		}
		for _, f := range frames {
			writeSSEFrame(w, flusher, f.ID, f.Event, f.Data)
		}
		if isEnd {
			return
		}
		cursor = last
	} else {
		cursor = lastEventID
	}

	out := make(chan consumer.Frame, 16)
	errc := make(chan error, 1)
	go func() { errc <- c.Stream(ctx, key, cursor, out) }()

	for {
		select {
		case f, ok := <-out:
			if !ok {
				return
			}
			writeSSEFrame(w, flusher, f.ID, f.Event, f.Data)
			if f.Event == string(eventlog.TypeEnd) {
				return
			}
		case err := <-errc:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.Logger.Error(ctx, "stream consumer error", "session_id", sessionID, "error", err.Error())
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleCancelStream cancels an in-flight response, causing the producer's
// Run loop to unwind on its next log append.
func (s *Server) handleCancelStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	sessionID := chi.URLParam(r, "sessionID")
	key := eventlog.ChatStreamKey(userID, sessionID)

	if err := producer.Cancel(ctx, s.Log, key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleListStreams reports which of the caller's sessions currently have
// an active stream.
func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	prefix := eventlog.ChatStreamPrefix(userID)
	ids, err := producer.ListActiveSessionIDs(ctx, s.Log, prefix, 100)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"streams": ids})
}

func encodeHistory(messages []session.Message) []chatmodel.Message {
	out := make([]chatmodel.Message, 0, len(messages))
	for _, m := range messages {
		cm := chatmodel.Message{Role: chatmodel.Role(m.Role)}
		switch m.Role {
		case session.RoleTool:
			isError := m.Meta.ExecutedCall != nil && m.Meta.ExecutedCall.IsError
			callID := ""
			if m.Meta.ExecutedCall != nil {
				callID = m.Meta.ExecutedCall.CallID
			}
			cm.Parts = []chatmodel.Part{chatmodel.ToolResultPart{CallID: callID, Content: m.Content, IsError: isError}}
		case session.RoleAssistant:
			if m.Content != "" {
				cm.Parts = append(cm.Parts, chatmodel.TextPart{Text: m.Content})
			}
			for _, tc := range m.Meta.ToolCalls {
				cm.Parts = append(cm.Parts, chatmodel.ToolUsePart{CallID: tc.CallID, ToolName: tc.ToolName, Parameters: tc.Parameters})
			}
		default:
			cm.Parts = []chatmodel.Part{chatmodel.TextPart{Text: m.Content}}
		}
		if !cm.IsEmpty() {
			out = append(out, cm)
		}
	}
	return out
}

func (s *Server) toolDefinitions(ctx context.Context, userID string) ([]chatmodel.ToolDefinition, error) {
	configs, err := s.Catalog.ListTools(ctx, userID)
	if err != nil {
		return nil, err
	}
	defs := make([]chatmodel.ToolDefinition, 0, len(configs))
	for _, c := range configs {
		defs = append(defs, chatmodel.ToolDefinition{
			ToolID:      c.ID,
			Name:        c.Name,
			Description: c.ToolType,
			InputSchema: toolSchemaFor(c.ToolType),
		})
	}
	return defs, nil
}

// toolSchemaFor returns the static input schema for the given tool type.
// custom_api and system_info have no static schema: custom_api's parameters
// are defined per-instance by its stored Definition, and system_info takes
// none.
func toolSchemaFor(toolType string) json.RawMessage {
	switch toolType {
	case "http_request":
		return json.RawMessage(httprequest.ParamSchema)
	case "web_search":
		return json.RawMessage(websearch.ParamSchema)
	case "code_exec":
		return json.RawMessage(codeexec.ParamSchema)
	default:
		return json.RawMessage(`{"type":"object"}`)
	}
}
