// Package routes mounts the MCP streamable HTTP handler on a chi router
// together with the index, health and readiness endpoints.
package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	appmw "github.com/briangreenhill/ramcp/internal/http/middleware"
)

const MCPPath = "/mcp"

type Server struct {
	Router  *chi.Mux
	MCP     http.Handler
	Modules []string
	Version string
	logger  zerolog.Logger
}

type ServerOptions struct {
	MCP       http.Handler
	Modules   []string
	Version   string
	AuthToken string
	Logger    zerolog.Logger
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", size).
			Dur("duration", duration).
			Msg("http request")
	}))
	r.Use(chimw.Recoverer)

	s := &Server{Router: r, MCP: opts.MCP, Modules: opts.Modules, Version: opts.Version, logger: opts.Logger}

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Group(func(pr chi.Router) {
		pr.Use(appmw.RequireBearer(opts.AuthToken))
		pr.Handle(MCPPath, s.MCP)
		pr.Handle(MCPPath+"/*", s.MCP)
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Riksarkivet MCP Server %s\n\n", s.Version)
	fmt.Fprintf(w, "MCP endpoint: %s (streamable HTTP)\n", MCPPath)
	fmt.Fprintf(w, "Modules: %s\n", strings.Join(s.Modules, ", "))
	fmt.Fprint(w, "Health: /health\nReadiness: /ready\n")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if len(s.Modules) == 0 {
		s.writeJSON(w, r, http.StatusServiceUnavailable, map[string]any{"status": "not ready", "modules": []string{}})
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"status": "ready", "modules": s.Modules})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("write response")
	}
}
