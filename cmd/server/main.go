package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/web3-frozen/defi-overview/internal/cache"
	"github.com/web3-frozen/defi-overview/internal/config"
	"github.com/web3-frozen/defi-overview/internal/handler"
	"github.com/web3-frozen/defi-overview/internal/llama"
	"github.com/web3-frozen/defi-overview/internal/metadata"
	"github.com/web3-frozen/defi-overview/internal/middleware"
	"github.com/web3-frozen/defi-overview/internal/overview"
	"github.com/web3-frozen/defi-overview/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metadata: fetched over HTTP, mirrored into Postgres when configured
	var loader metadata.Loader = metadata.NewHTTPLoader(cfg.MetadataProtocolsURL, cfg.MetadataChainsURL, cfg.HTTPTimeout)
	var dbPinger handler.Pinger
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected and migrated")
		loader = metadata.NewMirrorLoader(loader, db, logger)
		dbPinger = db
	}

	holder := metadata.NewHolder(loader, logger)
	if err := holder.Refresh(ctx); err != nil {
		// Readiness stays false until a later refresh succeeds.
		logger.Error("initial metadata load failed", "error", err)
	}
	go holder.Run(ctx, cfg.MetadataRefresh)

	// Redis response cache (retry up to 30s for ExternalSecret to sync)
	var upstreamCache llama.Cache
	if cfg.RedisURL != "" {
		var (
			rc  *cache.Redis
			err error
		)
		for i := 0; i < 6; i++ {
			rc, err = cache.New(cfg.RedisURL, cfg.RedisPassword, cfg.CacheTTL)
			if err == nil {
				break
			}
			logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
			time.Sleep(5 * time.Second)
		}
		if err != nil {
			logger.Warn("redis unavailable, serving without response cache", "error", err)
		} else {
			defer rc.Close()
			upstreamCache = rc
			logger.Info("redis connected for upstream cache", "ttl", cfg.CacheTTL.String())
		}
	}

	client := llama.NewClient(cfg.Endpoints, cfg.HTTPTimeout, upstreamCache)
	agg := overview.NewAggregator(client, logger, cfg.GovernanceProposals)

	// HTTP routes
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin, cfg.PreviewOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(holder, dbPinger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/protocol/{slug}", handler.Protocol(agg, holder, logger))
		r.Get("/chain/{chain}", handler.Chain(agg))
		r.Get("/dimensions/{adapterType}/chains", handler.DimensionsChains(agg, holder))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      cfg.HTTPTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
