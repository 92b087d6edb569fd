// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/briangreenhill/ramcp/internal/config"
	"github.com/briangreenhill/ramcp/internal/logging"
	"github.com/briangreenhill/ramcp/internal/server"
	"github.com/briangreenhill/ramcp/internal/tracer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Logger
	logger, closeLog, err := logging.New(cfg.Logging(), nil)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer closeLog() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer())
	if err != nil {
		logger.Fatal().Err(err).Msg("tracer setup")
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	rt, err := server.NewRuntime(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("runtime setup")
	}

	srv := server.New(rt.Registry(), server.Options{
		Modules:          cfg.Modules,
		InstructionsPath: cfg.InstructionsPath,
		AuthToken:        cfg.AuthToken,
		Logger:           logger,
	})

	logger.Info().Str("addr", cfg.Addr()).Msg("starting ra-mcp api")
	if err := srv.ServeHTTP(ctx, cfg.Addr()); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
