package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tkani-store/notifier/internal/cache"
	"github.com/tkani-store/notifier/internal/config"
	"github.com/tkani-store/notifier/internal/httpapi"
	"github.com/tkani-store/notifier/internal/ingest"
	"github.com/tkani-store/notifier/internal/observability"
	"github.com/tkani-store/notifier/internal/orderapi"
	"github.com/tkani-store/notifier/internal/pkg/breaker"
	"github.com/tkani-store/notifier/internal/seen"
	"github.com/tkani-store/notifier/internal/tracker"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewInmem(256)

	store, cleanup, err := buildSeenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("seen-set store init failed", zap.Error(err))
	}
	defer cleanup()

	summaries, err := cache.New(cfg.CacheCap)
	if err != nil {
		logger.Fatal("summary cache init failed", zap.Error(err))
	}

	client := orderapi.New(cfg.OrderAPI.BaseURL, cfg.OrderAPI.Token, cfg.OrderAPI.Timeout)

	tr := tracker.New(client, store, logger, metrics,
		tracker.WithInterval(cfg.OrderAPI.PollInterval),
		tracker.WithPageLimit(cfg.OrderAPI.PageLimit),
		tracker.WithCache(summaries),
	)
	go tr.Start(ctx)

	if cfg.IngestEnabled() {
		if err := ingest.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, 1, 1, logger); err != nil {
			logger.Warn("topic check failed, consuming anyway", zap.Error(err))
		}
		reader := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.Group,
			Topic:   cfg.Kafka.Topic,
		})
		defer reader.Close()

		handler := ingest.NewHandler(tr, breaker.New(cfg.Breaker), cfg.Retry, logger, metrics)
		consumer := ingest.NewConsumer(handler, reader, cfg.Kafka.Workers, logger)
		go consumer.Start(ctx)
	} else {
		logger.Info("kafka side channel not configured, polling only")
	}

	server := httpapi.New(tr, summaries, logger, metrics)
	if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func buildSeenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (seen.Store, func(), error) {
	switch cfg.Seen.Backend {
	case config.SeenBackendPostgres:
		pool, err := seen.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		store := seen.NewPostgresStore(pool, cfg.Seen.Key, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	default:
		return seen.NewFileStore(cfg.Seen.Dir, cfg.Seen.Key, logger), func() {}, nil
	}
}
