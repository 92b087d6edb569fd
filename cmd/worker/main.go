package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/cache"
	"github.com/briangreenhill/ramcp/internal/config"
	"github.com/briangreenhill/ramcp/internal/logging"
)

// pruner is the part of the file cache the janitor needs.
type pruner interface {
	Prune() (int, error)
	Stats() cache.Stats
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("unable to load config:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config:", err)
	}
	logger, closeLog, err := logging.New(cfg.Logging(), nil)
	if err != nil {
		log.Fatal("unable to set up logging:", err)
	}
	defer closeLog() //nolint:errcheck

	if cfg.CacheDisabled {
		logger.Warn().Msg("caching is disabled, nothing to prune")
		return
	}
	fc, err := cache.New(cfg.CacheDir, cache.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to open cache")
	}

	c, err := newScheduler(cfg.JanitorSchedule, fc, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.JanitorSchedule).Msg("invalid janitor schedule")
	}

	// prune once at startup, then on schedule
	prune(fc, logger)
	c.Start()
	logger.Info().Str("dir", fc.Dir()).Str("schedule", cfg.JanitorSchedule).Msg("cache janitor running")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("cache janitor stopping")
	<-c.Stop().Done()
}

func newScheduler(spec string, p pruner, logger zerolog.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { prune(p, logger) }); err != nil {
		return nil, err
	}
	return c, nil
}

// prune removes expired and corrupt entries and logs what is left.
func prune(p pruner, logger zerolog.Logger) {
	start := time.Now()
	removed, err := p.Prune()
	duration := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", duration).Msg("cache prune failed")
		return
	}
	st := p.Stats()
	logger.Info().
		Int("removed", removed).
		Int("remaining", st.Total).
		Int64("bytes", st.Bytes).
		Dur("duration", duration).
		Msg("cache pruned")
}
