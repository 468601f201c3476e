// Package app assembles the engine's collaborators from configuration. The
// API server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/localrecos/recos-engine/internal/cache"
	"github.com/localrecos/recos-engine/internal/config"
	"github.com/localrecos/recos-engine/internal/domain"
	"github.com/localrecos/recos-engine/internal/enrichment"
	"github.com/localrecos/recos-engine/internal/llm"
	"github.com/localrecos/recos-engine/internal/matching"
	"github.com/localrecos/recos-engine/internal/nlp"
	"github.com/localrecos/recos-engine/internal/observability"
	"github.com/localrecos/recos-engine/internal/places"
	"github.com/localrecos/recos-engine/internal/search"
	"github.com/localrecos/recos-engine/internal/storage"
	"github.com/localrecos/recos-engine/internal/synthesis"
)

// App holds the wired service and the resources that must be closed.
type App struct {
	Config    *config.Config
	Logger    *observability.Logger
	Repo      storage.Repository
	Cache     cache.Client
	Completer llm.Completer
	Generator *synthesis.Generator
	Service   *search.Service
}

// Overrides replace collaborators built from configuration. Tests use them.
type Overrides struct {
	Repo      storage.Repository
	Cache     cache.Client
	Completer llm.Completer
	Finder    places.Finder
}

// New builds every collaborator named by cfg.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, ov Overrides) (*App, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	a := &App{Config: cfg, Logger: logger}

	repo := ov.Repo
	if repo == nil {
		var err error
		repo, err = OpenRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	a.Repo = repo

	if cfg.Search.SeedSampleData {
		n, err := storage.SeedSampleData(ctx, repo, time.Now())
		if err != nil {
			a.Close()
			return nil, domain.StorageError("seed sample data", err)
		}
		if n > 0 {
			logger.Info().Int("restaurants", n).Msg("Seeded sample data")
		}
	}

	cacheClient := ov.Cache
	if cacheClient == nil && cfg.Cache.Enabled {
		var err error
		cacheClient, err = OpenCache(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Cache = cacheClient

	completer := ov.Completer
	if completer == nil && cfg.LLMEnabled() {
		var err error
		completer, err = llm.New(ctx, cfg.LLM, logger)
		if err != nil && !errors.Is(err, llm.ErrDisabled) {
			a.Close()
			return nil, domain.ConfigError("llm client", err)
		}
	}
	if completer == nil {
		logger.Warn().Msg("No LLM provider configured; natural language search falls back to raw input")
	}
	a.Completer = completer

	var enrichOpts []enrichment.Option
	finder := ov.Finder
	if finder == nil && cfg.Places.Enabled {
		f, err := places.NewHTTPFinder(places.Config{
			APIKey:  cfg.Places.APIKey,
			BaseURL: cfg.Places.BaseURL,
			Timeout: cfg.Places.Timeout,
		})
		if err != nil {
			a.Close()
			return nil, domain.ConfigError("places client", err)
		}
		finder = f
	}
	if finder != nil {
		enrichOpts = append(enrichOpts, enrichment.WithPlaces(finder))
	}

	genOpts := []synthesis.Option{}
	if cfg.Synthesis.Seed != 0 {
		genOpts = append(genOpts, synthesis.WithSeed(cfg.Synthesis.Seed))
	}
	a.Generator = synthesis.NewGenerator(genOpts...)

	engine := matching.NewEngine(logger, repo, nil, a.Generator, matching.Config{
		SynthesisEnabled: cfg.Synthesis.Enabled,
	})

	opts := []search.Option{
		search.WithExtractor(nlp.NewExtractor(completer, logger)),
		search.WithAnalyzer(nlp.NewAnalyzer(completer, logger)),
		search.WithHistoryLimit(cfg.Search.HistoryLimit),
	}
	if cacheClient != nil {
		cacheCfg := search.DefaultResultCacheConfig()
		cacheCfg.TTL = cfg.Cache.TTL
		cacheCfg.Enabled = cfg.Cache.Enabled
		opts = append(opts, search.WithCache(search.NewResultCache(cacheClient, logger, cacheCfg)))
	}

	a.Service = search.NewService(logger, repo, engine, enrichment.NewEnricher(repo, logger, enrichOpts...), opts...)
	return a, nil
}

// OpenRepository opens the configured storage backend.
func OpenRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.Storage.Driver {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "sqlite":
		store, err := storage.OpenSQLStore(ctx, storage.DialectSQLite, cfg.StorageDSN(), storage.SQLOptions{
			MaxOpenConns: cfg.Storage.SQLite.MaxOpenConns,
		})
		if err != nil {
			return nil, domain.StorageError("open sqlite store", err)
		}
		return store, nil
	case "postgres":
		store, err := storage.OpenSQLStore(ctx, storage.DialectPostgres, cfg.StorageDSN(), storage.SQLOptions{
			MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, domain.StorageError("open postgres store", err)
		}
		return store, nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown storage driver %q", cfg.Storage.Driver), nil)
	}
}

// OpenCache opens the configured cache backend.
func OpenCache(ctx context.Context, cfg *config.Config) (cache.Client, error) {
	switch cfg.Cache.Driver {
	case "memory":
		return cache.NewMemoryClient(cfg.Cache.MaxEntries), nil
	case "redis":
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			return nil, domain.ConfigError("connect to redis", err)
		}
		return client, nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown cache driver %q", cfg.Cache.Driver), nil)
	}
}

// Close releases the repository and cache.
func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Repo != nil {
		errs = append(errs, a.Repo.Close())
	}
	return errors.Join(errs...)
}
