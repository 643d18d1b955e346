// Command history-proxy serves the driver order-history API: cached,
// lazily loaded history pages backed by Postgres, with an optional Redis
// cache tier and an optional Kafka invalidation consumer.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/courierops/orderhistory/internal/events"
	"github.com/courierops/orderhistory/pkg/advisor"
	"github.com/courierops/orderhistory/pkg/cache"
	"github.com/courierops/orderhistory/pkg/config"
	"github.com/courierops/orderhistory/pkg/loader"
	"github.com/courierops/orderhistory/pkg/logging"
	"github.com/courierops/orderhistory/pkg/orders"
	"github.com/courierops/orderhistory/pkg/perf"
	"github.com/courierops/orderhistory/pkg/warmer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Setup(logging.DefaultConfig())
		fallback.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := orders.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer pool.Close()
	source := orders.NewPostgresSource(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// Degraded but serviceable: the memory tier still works.
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, continuing memory-only")
		}
	}

	store, err := cache.NewTiered(cache.Config{
		MemorySize: cfg.CacheMemorySize,
		Redis:      redisClient,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache")
	}

	recorder := perf.NewRecorder(cfg.PerfMaxRecords)
	svc := loader.NewService(loader.Config{
		Source:   source,
		Cache:    store,
		Recorder: recorder,
		TTL:      cfg.CacheTTL,
	}, advisor.New(recorder))
	wrm := warmer.New(svc, warmer.DefaultConfig())

	if len(cfg.KafkaBrokers) > 0 {
		reader := events.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		defer reader.Close()
		consumer := events.NewConsumer(reader, store, &logger)
		go consumer.Run(ctx)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).
			Msg("Status-update invalidation consumer enabled")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(svc, wrm, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Starting history proxy")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Shutdown incomplete")
	}
}
