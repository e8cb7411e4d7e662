package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/disaster-match-service/internal/adapter/eonet"
	httpadapter "github.com/couchcryptid/disaster-match-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/disaster-match-service/internal/adapter/kafka"
	"github.com/couchcryptid/disaster-match-service/internal/adapter/mapbox"
	redisadapter "github.com/couchcryptid/disaster-match-service/internal/adapter/redis"
	"github.com/couchcryptid/disaster-match-service/internal/collector"
	"github.com/couchcryptid/disaster-match-service/internal/config"
	"github.com/couchcryptid/disaster-match-service/internal/domain"
	"github.com/couchcryptid/disaster-match-service/internal/observability"
	"github.com/couchcryptid/disaster-match-service/internal/pipeline"
	"github.com/couchcryptid/disaster-match-service/internal/relay"
)

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisadapter.Connect(ctx, cfg.RedisURL, cfg.RedisTimeout)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	disasters := redisadapter.NewDisasterStore(rdb, logger)
	windows := redisadapter.NewWindowCache(rdb, logger)
	events := redisadapter.NewEventStore(rdb, logger)

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.MapboxRPS, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout, "rps", cfg.MapboxRPS)
	} else {
		logger.Info("mapbox geocoding disabled, free-text locations will not match")
	}
	resolver := domain.NewResolver(geocoder, cfg.MapboxTimeout, logger)

	publisher := kafkaadapter.NewPublisher(cfg, metrics, logger)
	feed := eonet.NewClient(cfg.EONETURL, cfg.EONETTimeout, metrics, logger)
	coll := collector.New(feed, disasters, windows, publisher, collector.Config{
		Interval:  cfg.CollectorInterval,
		TTL:       cfg.DisastersTTL,
		WindowTTL: cfg.WindowCacheTTL,
		Announce:  cfg.CollectorAnnounce,
	}, nil, logger, metrics)

	coord := pipeline.NewCoordinator(pipeline.CoordinatorDeps{
		Resolver:  resolver,
		Matcher:   pipeline.NewMatcher(resolver, cfg.MatchThresholdKm, cfg.EarthRadiusKm, logger),
		Fetcher:   coll,
		Live:      disasters,
		Matches:   events,
		Raw:       events,
		Publisher: publisher,
	}, pipeline.CoordinatorConfig{
		WindowPad:          cfg.WindowPad,
		ResolveConcurrency: cfg.ResolveConcurrency,
	}, logger, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	consumer := pipeline.NewConsumer(reader, coord, logger, metrics)

	checks := readiness{redisadapter.NewReadiness(rdb)}
	if cfg.CollectorEnabled {
		checks = append(checks, coll)
	}

	deps := httpadapter.Deps{
		Matcher:    coord,
		Disasters:  disasters,
		Matches:    events,
		Ready:      checks,
		HotspotMin: cfg.HotspotMinOccurrences,
	}

	var updates *kafkaadapter.UpdatesReader
	var broadcaster *relay.Broadcaster
	if cfg.RelayEnabled {
		updates = kafkaadapter.NewUpdatesReader(cfg, logger)
		broadcaster = relay.NewBroadcaster(metrics)
		deps.Stream = broadcaster
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, deps, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// A runner that fails stops the whole process so the broker redelivers
	// whatever it left uncommitted.
	var wg sync.WaitGroup
	var failed atomic.Bool
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logger.Error(name+" error", "error", err)
				failed.Store(true)
				stop()
			}
		}()
	}

	if cfg.CollectorEnabled {
		run("collector", coll.Run)
	} else {
		logger.Info("collector disabled, live snapshot will not refresh")
	}
	run("consumer", consumer.Run)
	if cfg.RelayEnabled {
		run("relay", func(ctx context.Context) error {
			return relay.Run(ctx, updates, broadcaster, logger)
		})
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	wg.Wait()

	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if updates != nil {
		if err := updates.Close(); err != nil {
			logger.Error("kafka updates reader close error", "error", err)
		}
	}
	if err := publisher.Close(); err != nil {
		logger.Error("kafka publisher close error", "error", err)
	}
	if err := rdb.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	logger.Info("shutdown complete")
	if failed.Load() {
		os.Exit(1)
	}
}

type readinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// readiness is ready when every check passes.
type readiness []readinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
