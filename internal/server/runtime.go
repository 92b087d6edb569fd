package server

import (
	"github.com/rs/zerolog"

	"github.com/briangreenhill/ramcp/browse"
	"github.com/briangreenhill/ramcp/cache"
	"github.com/briangreenhill/ramcp/guide"
	"github.com/briangreenhill/ramcp/htr"
	"github.com/briangreenhill/ramcp/internal/config"
	"github.com/briangreenhill/ramcp/internal/network"
	"github.com/briangreenhill/ramcp/internal/session"
	"github.com/briangreenhill/ramcp/plugins"
	"github.com/briangreenhill/ramcp/search"
)

// Runtime holds the process-wide components shared by every module.
type Runtime struct {
	Config *config.Config
	Logger zerolog.Logger

	// Files is nil when caching is disabled; Cache is then a no-op store.
	Files   *cache.FileCache
	Cache   cache.Store
	HTTP    *network.Client
	Tracker *session.Tracker

	Search *search.Client
	Browse *browse.Operations
	Guide  *guide.Library
	HTR    *htr.Client
}

// NewRuntime builds the shared components from cfg.
func NewRuntime(cfg *config.Config, logger zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Cache:   cache.Nop{},
		Tracker: session.NewTracker(),
	}

	if !cfg.CacheDisabled {
		fc, err := cache.New(cfg.CacheDir, cache.WithLogger(logger.With().Str("component", "cache").Logger()))
		if err != nil {
			return nil, err
		}
		rt.Files = fc
		rt.Cache = fc
	}

	rt.HTTP = network.New(
		network.WithTimeout(cfg.HTTPTimeout()),
		network.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		network.WithMaxAttempts(cfg.MaxRetries),
		network.WithBreaker(cfg.BreakerFailures, cfg.BreakerTimeout),
		network.WithLogger(logger.With().Str("component", "network").Logger()),
	)

	rt.Search = search.New(rt.HTTP,
		search.WithBaseURL(cfg.SearchAPIURL),
		search.WithCache(rt.Cache),
		search.WithLogger(logger.With().Str("module", "search").Logger()),
	)
	rt.Browse = browse.NewOperations(rt.HTTP,
		browse.WithURLs(browse.URLs{
			OAI:         cfg.OAIURL,
			IIIF:        cfg.IIIFURL,
			Collection:  cfg.IIIFCollectionURL,
			ALTO:        cfg.ALTOURL,
			Bildvisning: cfg.BildvisningURL,
		}),
		browse.WithCache(rt.Cache),
		browse.WithLogger(logger.With().Str("module", "browse").Logger()),
	)
	rt.Guide = guide.NewLibrary(logger, guide.SearchPath(cfg.GuideDir)...)
	rt.HTR = htr.NewClient(rt.HTTP, cfg.HTRSpaceURL, logger.With().Str("module", "htr").Logger())
	return rt, nil
}

// Registry returns every module in display order. All modules share one
// dedup tracker, so stubs are consistent across tools.
func (rt *Runtime) Registry() *plugins.Registry {
	r := plugins.NewRegistry()
	r.Register(search.NewPlugin(rt.Search, rt.Tracker, rt.Logger.With().Str("module", "search").Logger()))
	r.Register(browse.NewPlugin(rt.Browse, rt.Tracker, rt.Logger.With().Str("module", "browse").Logger()))
	r.Register(guide.NewPlugin(rt.Guide, rt.Logger.With().Str("module", "guide").Logger()))
	r.Register(htr.NewPlugin(rt.HTR, rt.Logger.With().Str("module", "htr").Logger()))
	return r
}
