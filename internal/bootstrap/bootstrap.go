// Package bootstrap wires configuration into ready services for the API and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	badgerad "freshlistings/internal/adapters/badger"
	"freshlistings/internal/adapters/geocode"
	"freshlistings/internal/adapters/llm"
	"freshlistings/internal/adapters/memcache"
	opensearchad "freshlistings/internal/adapters/opensearch"
	redisad "freshlistings/internal/adapters/redis"
	"freshlistings/internal/app"
	"freshlistings/internal/domain"
	"freshlistings/internal/shared"
	mysqlrepo "freshlistings/internal/storage/mysql"
)

type App struct {
	Config  shared.Config
	Cache   domain.Cache
	Models  *llm.Registry
	Index   *opensearchad.Index
	Geocode *app.GeocodeResolver
	Search  *app.SearchService
	Tiles   *app.TileService
	Logs    *mysqlrepo.Repo // nil when SEARCH_LOG_DSN is empty or unreachable

	closers []func() error
}

// Build constructs every service. Only configuration mistakes fail; an unreachable
// optional backend is logged and left out.
func Build(ctx context.Context, cfg shared.Config) (*App, error) {
	a := &App{Config: cfg}

	cache, closeCache, err := NewCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Cache = cache
	a.closers = append(a.closers, closeCache)

	a.Models, err = llm.NewRegistry(ctx, llm.DefaultBindings(), llm.Credentials{
		GoogleAPIKey:  cfg.GoogleAPIKey,
		OllamaURL:     cfg.OllamaURL,
		OpenAIKey:     cfg.OpenAIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}, domain.ModelID(cfg.DefaultModel))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Index, err = opensearchad.New(opensearchad.Config{
		Addresses:      cfg.OpenSearchURLs,
		Username:       cfg.OpenSearchUser,
		Password:       cfg.OpenSearchPass,
		ModelID:        cfg.OpenSearchModelID,
		ListingsIndex:  cfg.ListingsIndex,
		AggregateIndex: cfg.AggregateIndex,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("opensearch client: %w", err)
	}

	var geo domain.Geocoder
	if cfg.GeocodeKey != "" {
		gc, err := geocode.New(cfg.GeocodeBase, cfg.GeocodeKey, cfg.GeocodeRPS, geocode.WithRegion(cfg.GeocodeRegion))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		geo = gc
	}
	a.Geocode = app.NewGeocodeResolver(geo, cache, cfg.GeocodeEmptyTTL)

	var logs domain.SearchLogRepository
	if cfg.SearchLogDSN != "" {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		repo, err := mysqlrepo.Open(pctx, cfg.SearchLogDSN)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("search log disabled")
		} else {
			a.Logs = repo
			logs = repo
			a.closers = append(a.closers, repo.Close)
		}
	}

	decomposers := app.NewDecomposers(llm.NewClient(a.Models, cache))
	a.Search = app.NewSearchService(decomposers, a.Geocode, a.Index, logs, cfg.PipelineTimeout)
	a.Tiles = app.NewTileService(a.Index)

	log.Info().
		Str("cache", cfg.CacheBackend).
		Str("default_model", string(a.Models.Default())).
		Int("models", len(a.Models.IDs())).
		Bool("geocoder", geo != nil).
		Bool("search_log", logs != nil).
		Msg("services ready")
	return a, nil
}

// NewCache opens the configured backend. Redis is pinged but an unreachable server is
// only logged, since cache errors degrade to misses.
func NewCache(ctx context.Context, cfg shared.Config) (domain.Cache, func() error, error) {
	switch cfg.CacheBackend {
	case "", "redis":
		c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := c.Ping(pctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; running uncached until it returns")
		}
		return c, c.Close, nil
	case "badger":
		c, err := badgerad.Open(cfg.CacheDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger cache: %w", err)
		}
		return c, c.Close, nil
	case "memory":
		c, err := memcache.New(cfg.CacheSize)
		if err != nil {
			return nil, nil, err
		}
		return c, func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown CACHE_BACKEND %q (want redis, badger or memory)", cfg.CacheBackend)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
