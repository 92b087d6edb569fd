// Package server composes the enabled modules into one MCP server and runs
// it over stdio or streamable HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	mcpsrv "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/internal/http/routes"
	"github.com/briangreenhill/ramcp/internal/prompt"
	"github.com/briangreenhill/ramcp/plugins"
)

const (
	Name = "riksarkivet-mcp"

	shutdownTimeout = 10 * time.Second
)

// Version is set at build time.
var Version = "dev"

// Server wraps the composed MCP server.
type Server struct {
	mcp     *mcpsrv.MCPServer
	modules []plugins.Plugin
	token   string
	logger  zerolog.Logger
}

type Options struct {
	// Modules lists module names; empty selects the defaults.
	Modules []string
	// InstructionsPath replaces the default instructions body.
	InstructionsPath string
	// AuthToken guards the HTTP transport when set.
	AuthToken string
	Logger    zerolog.Logger
}

// New registers the selected modules of registry. Unknown module names are
// logged and skipped.
func New(registry *plugins.Registry, opts Options) *Server {
	logger := opts.Logger
	selected, unknown := registry.Select(opts.Modules)
	for _, name := range unknown {
		logger.Warn().Str("module", name).Msg("unknown module, skipping")
	}

	descs := make([]prompt.Module, 0, len(selected))
	for _, p := range selected {
		descs = append(descs, prompt.Module{Name: p.Name(), Description: p.Description()})
	}
	instructions := prompt.NewGenerator(opts.InstructionsPath, logger).GenerateWithFallback(descs)

	m := mcpsrv.NewMCPServer(Name, Version,
		mcpsrv.WithInstructions(instructions),
		mcpsrv.WithToolCapabilities(false),
		mcpsrv.WithResourceCapabilities(false, false),
		mcpsrv.WithRecovery(),
	)
	for _, p := range selected {
		p.Register(m)
		logger.Info().Str("module", p.Name()).Msg("registered module")
	}
	if len(selected) == 0 {
		logger.Warn().Msg("no modules were registered")
	}

	return &Server{mcp: m, modules: selected, token: opts.AuthToken, logger: logger}
}

// MCP exposes the underlying server, for tests and embedding.
func (s *Server) MCP() *mcpsrv.MCPServer { return s.mcp }

// Modules returns the names of the registered modules.
func (s *Server) Modules() []string {
	names := make([]string, 0, len(s.modules))
	for _, p := range s.modules {
		names = append(names, p.Name())
	}
	return names
}

// ServeStdio runs the MCP server over stdin/stdout until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.serveStdio(ctx, os.Stdin, os.Stdout)
}

func (s *Server) serveStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	srv := mcpsrv.NewStdioServer(s.mcp)
	s.logger.Info().Strs("modules", s.Modules()).Msg("mcp server listening on stdio")
	if err := srv.Listen(ctx, in, out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("mcp stdio server error: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler with /mcp, /, /health and /ready.
func (s *Server) Handler() http.Handler {
	stream := mcpsrv.NewStreamableHTTPServer(s.mcp, mcpsrv.WithEndpointPath(routes.MCPPath))
	return routes.New(routes.ServerOptions{
		MCP:       stream,
		Modules:   s.Modules(),
		Version:   Version,
		AuthToken: s.token,
		Logger:    s.logger,
	})
}

// ServeHTTP serves Handler on addr until ctx is cancelled.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Strs("modules", s.Modules()).Bool("auth", s.token != "").Msg("mcp server listening on http")

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("mcp http server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("mcp server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mcp http server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
