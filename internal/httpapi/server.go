// Package httpapi implements the HTTP transport exposing §6's endpoints
// plus the session/provider/tool CRUD surface, grounded on the teacher's
// example/cmd/assistant/http.go wiring style (mux, mount, graceful
// shutdown) but routed with github.com/go-chi/chi/v5 rather than
// Goa-generated handlers, since this module does not carry forward the
// DSL/codegen toolchain that produces the teacher's own router.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fa-sharp/rschat-relay/internal/catalog"
	"github.com/fa-sharp/rschat-relay/internal/crypto"
	"github.com/fa-sharp/rschat-relay/internal/eventlog"
	"github.com/fa-sharp/rschat-relay/internal/session"
	"github.com/fa-sharp/rschat-relay/internal/telemetry"
	"github.com/fa-sharp/rschat-relay/internal/toolexec"
)

// Server holds every dependency the HTTP handlers need.
type Server struct {
	Log         eventlog.Log
	Sessions    session.Store
	Catalog     catalog.Store
	Secrets     *crypto.SecretBox
	Logger      telemetry.Logger
	Metrics     telemetry.Metrics
	Executor    *toolexec.Executor
	Adapters    *AdapterRegistry
	ToolCatalog *ToolRegistry
	AuthSecret  []byte
}

// NewRouter builds the chi router for every endpoint this server exposes.
func (s *Server) NewRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.authenticate)

	r.Route("/chat", func(r chi.Router) {
		r.Get("/streams", s.handleListStreams)
		r.Post("/{sessionID}", s.handleStartStream)
		r.Get("/{sessionID}/stream", s.handleAttachStream)
		r.Post("/{sessionID}/cancel", s.handleCancelStream)
	})
	r.Route("/tools", func(r chi.Router) {
		r.Get("/", s.handleListToolConfigs)
		r.Post("/", s.handleCreateToolConfig)
		r.Delete("/{toolID}", s.handleDeleteToolConfig)
	})
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleCreateSession)
		r.Get("/{sessionID}", s.handleGetSession)
		r.Patch("/{sessionID}", s.handleUpdateSessionTitle)
		r.Delete("/{sessionID}", s.handleDeleteSession)
		r.Get("/{sessionID}/messages", s.handleListMessages)
		r.Post("/{sessionID}/messages/{messageID}/tool-calls/{callID}", s.handleExecuteTool)
	})
	r.Route("/providers", func(r chi.Router) {
		r.Get("/", s.handleListProviders)
		r.Post("/", s.handleCreateProvider)
		r.Delete("/{providerID}", s.handleDeleteProvider)
	})
	return r
}

// Run starts an HTTP server on addr and blocks until ctx is cancelled,
// then shuts it down gracefully, mirroring the teacher's handleHTTPServer
// goroutine-plus-context-cancellation pattern.
func Run(ctx context.Context, addr string, handler http.Handler, logger telemetry.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 60 * time.Second}

	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	logger.Info(ctx, "shutting down http server", "addr", addr)
	return srv.Shutdown(shutdownCtx)
}
