// Package server exposes the preference store and the reading view over a
// JSON HTTP API and as MCP tools.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/swissutil/engine"
	"github.com/hazyhaar/swissutil/kit"
	"github.com/hazyhaar/swissutil/prefs"
)

// MaxBodyBytes caps request bodies; custom scripts are the largest payload.
const MaxBodyBytes = 1 << 20

// Server serves one engine and its store.
type Server struct {
	eng   *engine.Engine
	store prefs.Store
	log   *slog.Logger
}

// New creates a Server.
func New(eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{eng: eng, store: eng.Store(), log: logger}
}

func (s *Server) endpoint(name string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.log, name))(e)
}

// Router returns the HTTP API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(traceID)
	r.Use(securityHeaders)
	r.Use(maxBody(MaxBodyBytes))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/prefs", kit.HTTPHandler(s.endpoint("prefs", s.showPrefs), noRequest))
		r.Put("/defaults", kit.HTTPHandler(s.endpoint("defaults", s.setDefaults), decodeBody[defaultsRequest]))
		r.Put("/reader", kit.HTTPHandler(s.endpoint("reader", s.setReader), decodeReader))
		r.Post("/reset", kit.HTTPHandler(s.endpoint("reset", s.reset), noRequest))

		r.Route("/sites/{host}", func(r chi.Router) {
			r.Get("/", kit.HTTPHandler(s.endpoint("site", s.siteSettings), decodeSite))
			r.Put("/custom", kit.HTTPHandler(s.endpoint("set_custom", s.setCustom), decodeCustom))
			r.Delete("/custom", kit.HTTPHandler(s.endpoint("clear_custom", s.clearCustom), decodeSite))
			r.Put("/{utility}", kit.HTTPHandler(s.endpoint("set_site", s.setSite), decodeSetSite))
			r.Delete("/{utility}", kit.HTTPHandler(s.endpoint("clear_site", s.setSite), decodeClearSite))
		})
	})

	r.Get("/read", s.handleRead)
	return r
}

// NewMCPServer returns an MCP server carrying the swissutil tools.
func (s *Server) NewMCPServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "swissutil", Version: version}, nil)
	s.RegisterMCP(srv)
	return srv
}

// ListenAndServe serves the API on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- hs.ListenAndServe() }()
	s.log.Info("server: listening", "addr", addr)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("server: shutting down")
		return hs.Shutdown(shutdownCtx)
	}
}
