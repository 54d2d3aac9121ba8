package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/shelter-status-service/internal/adapter/geoip"
	httpadapter "github.com/couchcryptid/shelter-status-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/shelter-status-service/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/shelter-status-service/internal/adapter/redis"
	"github.com/couchcryptid/shelter-status-service/internal/adapter/sosrs"
	"github.com/couchcryptid/shelter-status-service/internal/config"
	"github.com/couchcryptid/shelter-status-service/internal/dataset"
	"github.com/couchcryptid/shelter-status-service/internal/domain"
	"github.com/couchcryptid/shelter-status-service/internal/observability"
	"github.com/couchcryptid/shelter-status-service/internal/query"
	"github.com/couchcryptid/shelter-status-service/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	store, err := redisadapter.NewStore(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to create redis store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cache := dataset.NewCache()

	// Redis is an accelerator, not a dependency: a failed ping degrades to a
	// cold start and stateless sessions.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, starting cold", "error", err)
	} else if snap, err := store.LoadSnapshot(pingCtx); err != nil {
		logger.Warn("warm start load failed", "error", err)
	} else if snap != nil {
		cache.Publish(snap)
		logger.Info("warm start from store", "shelters", len(snap.Shelters), "refreshed_at", snap.RefreshedAt)
	}
	pingCancel()

	geoClient := geoip.NewClient(cfg.GeoLookupURL, cfg.GeoTimeout)
	resolver := geoip.NewResolver(store, geoClient, cfg.GeoCacheTTL,
		cfg.HomeCountry, domain.ParseLanguage(cfg.HomeLanguage),
		geoip.Defaults{
			Language:  domain.ParseLanguage(cfg.DefaultLanguage),
			Latitude:  cfg.DefaultLatitude,
			Longitude: cfg.DefaultLongitude,
			City:      cfg.DefaultCity,
			Timezone:  cfg.DefaultTimezone,
		}, logger, metrics)

	sessions := session.NewManager(store, resolver, cfg.SessionTTL, logger)

	fetcher := sosrs.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamPerPage,
		cfg.UpstreamMaxPages, cfg.UpstreamTimeout, logger)

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED.
	var publisher dataset.SnapshotPublisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		publisher = kafkaWriter
		logger.Info("kafka snapshot publishing enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka snapshot publishing disabled")
	}

	refresher := dataset.NewRefresher(fetcher, cache, store, publisher,
		cfg.RefreshInterval, clock, logger, metrics)

	engine := query.NewEngine(clock, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, cache, refresher, sessions, engine, refresher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

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
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
