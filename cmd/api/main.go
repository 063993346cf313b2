// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/leaksmap/breach"
	"github.com/briangreenhill/leaksmap/cache"
	"github.com/briangreenhill/leaksmap/internal/aggregator"
	"github.com/briangreenhill/leaksmap/internal/config"
	appmw "github.com/briangreenhill/leaksmap/internal/http/middleware"
	"github.com/briangreenhill/leaksmap/internal/http/routes"
	"github.com/briangreenhill/leaksmap/internal/logging"
	"github.com/briangreenhill/leaksmap/internal/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("load config")
	}

	// Logger
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := aggregator.NewMetrics(reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache
	store := cache.NewMemory[[]breach.Record](cache.WithDefaultTTL(cfg.CacheTTL))
	go store.RunJanitor(ctx, cfg.CachePurgeInterval, func(removed int) {
		metrics.CachePurged(removed)
		if removed > 0 {
			logger.Debug().Int("removed", removed).Msg("purged expired cache entries")
		}
	})

	// Providers
	registry, err := providers.Setup(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("provider setup")
	}

	agg := aggregator.New(store, registry.All(),
		aggregator.WithCacheTTL(cfg.CacheTTL),
		aggregator.WithLookupTimeout(cfg.LookupTimeout),
		aggregator.WithLogger(logger),
		aggregator.WithMetrics(metrics),
	)

	// Router / server
	s := routes.New(routes.ServerOptions{
		Lookup:   agg,
		Log:      logger,
		Gatherer: reg,
		Metrics:  appmw.NewHTTPMetrics(reg),
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
		// lookups may take up to LookupTimeout
		WriteTimeout: cfg.LookupTimeout + 5*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	logger.Info().Int("port", cfg.Port).Strs("providers", agg.Providers()).Msg("starting api")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}
