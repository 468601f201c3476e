// Package main provides the Local Recos API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/localrecos/recos-engine/internal/app"
	"github.com/localrecos/recos-engine/internal/config"
	"github.com/localrecos/recos-engine/internal/observability"
	"github.com/localrecos/recos-engine/internal/search"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("cache", cfg.Cache.Driver).
		Str("llm", cfg.LLM.Provider).
		Bool("places", cfg.Places.Enabled).
		Msg("Starting Local Recos API")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, logger, app.Overrides{})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to release resources")
		}
	}()

	if cfg.Cache.Enabled && cfg.Cache.PurgeInterval > 0 {
		go purgeLoop(ctx, application.Service, cfg.Cache.PurgeInterval, logger)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewRouter(logger, application.Service, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}

// purgeLoop drops expired cache entries until ctx is cancelled.
func purgeLoop(ctx context.Context, service *search.Service, interval time.Duration, logger *observability.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := service.PurgeExpired(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("Cache purge failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int("purged", n).Msg("Purged expired cache entries")
			}
		}
	}
}
