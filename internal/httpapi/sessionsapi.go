package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fa-sharp/rschat-relay/internal/catalog"
	"github.com/fa-sharp/rschat-relay/internal/session"
)

// handleListSessions returns every session owned by the caller.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	sessions, err := s.Sessions.ListSessions(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

type createSessionRequest struct {
	Title string         `json:"title"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// handleCreateSession creates a new chat session for the caller.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	now := time.Now().UTC()
	sess := session.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     req.Title,
		Meta:      req.Meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.Sessions.CreateSession(ctx, sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleGetSession fetches a single session owned by the caller.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := s.Sessions.GetSession(ctx, userID, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type updateSessionTitleRequest struct {
	Title string `json:"title"`
}

// handleUpdateSessionTitle renames a session owned by the caller.
func (s *Server) handleUpdateSessionTitle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	sessionID := chi.URLParam(r, "sessionID")

	var req updateSessionTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if err := s.Sessions.UpdateSessionTitle(ctx, userID, sessionID, req.Title); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeleteSession removes the caller's session record. It does not touch
// the session's stream key: a running producer keeps writing to its log
// until it ends, is cancelled, or the log's TTL expires.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.Sessions.DeleteSession(ctx, userID, sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListMessages returns every message in a session owned by the
// caller, in creation order.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := s.Sessions.GetSession(ctx, userID, sessionID); err != nil {
		writeError(w, err)
		return
	}
	messages, err := s.Sessions.ListMessages(ctx, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// handleListProviders returns every upstream provider credential the caller
// has configured, with the encrypted API key omitted.
func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	providers, err := s.Catalog.ListProviders(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redactProviders(providers))
}

type createProviderRequest struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
}

// handleCreateProvider encrypts and persists a new provider credential.
func (s *Server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)

	var req createProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	encrypted, err := s.Secrets.EncryptString(req.APIKey)
	if err != nil {
		writeError(w, err)
		return
	}
	provider := catalog.Provider{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            req.Name,
		Kind:            req.Kind,
		EncryptedAPIKey: encrypted,
		BaseURL:         req.BaseURL,
		CreatedAt:       time.Now().UTC(),
	}
	created, err := s.Catalog.CreateProvider(ctx, provider)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, redactProvider(created))
}

// handleDeleteProvider removes a provider credential owned by the caller.
func (s *Server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	providerID := chi.URLParam(r, "providerID")
	if err := s.Catalog.DeleteProvider(ctx, userID, providerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// providerView is what a provider looks like over the wire: everything but
// its encrypted key, which must never leave the server once stored.
type providerView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	BaseURL   string    `json:"base_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func redactProvider(p catalog.Provider) providerView {
	return providerView{ID: p.ID, Name: p.Name, Kind: p.Kind, BaseURL: p.BaseURL, CreatedAt: p.CreatedAt}
}

func redactProviders(providers []catalog.Provider) []providerView {
	out := make([]providerView, len(providers))
	for i, p := range providers {
		out[i] = redactProvider(p)
	}
	return out
}
