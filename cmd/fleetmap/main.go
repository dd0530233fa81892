package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/fleet-map/internal/adapter/feed"
	httpadapter "github.com/couchcryptid/fleet-map/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/fleet-map/internal/adapter/kafka"
	"github.com/couchcryptid/fleet-map/internal/adapter/mapbox"
	"github.com/couchcryptid/fleet-map/internal/config"
	"github.com/couchcryptid/fleet-map/internal/mapview"
	"github.com/couchcryptid/fleet-map/internal/observability"
	"github.com/couchcryptid/fleet-map/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		loader   feed.Loader
		feedFile string
	)
	if cfg.FeedURL != "" {
		loader = feed.NewHTTPSource(cfg.FeedURL, cfg.FeedTimeout, logger)
		logger.Info("feed source", "url", cfg.FeedURL, "timeout", cfg.FeedTimeout)
	} else {
		loader = feed.NewFileSource(cfg.FeedPath)
		feedFile = cfg.FeedPath
		logger.Info("feed source", "path", cfg.FeedPath)
	}

	layer := mapview.NewLayer()
	opts := []pipeline.Option{pipeline.WithFilters(cfg.Map.InitialFilters())}

	// Address enrichment (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		opts = append(opts, pipeline.WithAddressResolver(mapbox.NewCachedResolver(client, cfg.MapboxCacheSize, metrics)))
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox address lookup enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox address lookup disabled")
	}

	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("snapshot publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSnapshotTopic)
	}

	refresher := pipeline.New(loader, layer, logger, metrics, cfg.RefreshInterval, opts...)

	if cfg.FeedWatch && feedFile != "" {
		if err := feed.NewWatcher(feedFile, refresher.Trigger, logger).Start(ctx); err != nil {
			logger.Warn("feed watcher unavailable, relying on refresh interval", "error", err)
		}
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, refresher, layer, cfg.Map, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh cycle.
	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error("refresher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
