package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adilzhm/order-service/internal/application/handler"
	"github.com/adilzhm/order-service/internal/application/service"
	"github.com/adilzhm/order-service/internal/config"
	"github.com/adilzhm/order-service/internal/httpapi"
	"github.com/adilzhm/order-service/internal/infrastructure/cache"
	postgres "github.com/adilzhm/order-service/internal/infrastructure/database"
	"github.com/adilzhm/order-service/internal/infrastructure/rabbit"
	"github.com/adilzhm/order-service/internal/infrastructure/ratelimit"
	"github.com/adilzhm/order-service/internal/observability"
	"github.com/adilzhm/order-service/internal/pkg/breaker"
	"github.com/adilzhm/order-service/internal/pricing"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	pool, err := postgres.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Fatal("postgres connect failed", zap.Error(err))
	}
	defer pool.Close()

	repo := postgres.NewOrderRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema bootstrap failed", zap.Error(err))
	}

	// Cache and rate limiter share one Redis client.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// Cache and limiter are fail-open accelerators; a dead Redis must
		// not keep the service from starting.
		logger.Warn("redis unreachable at startup", zap.Error(err))
	}

	snapshots := cache.NewSnapshot(rdb, cfg.CacheTTL, logger)
	limiter := ratelimit.NewFixedWindow(rdb, logger)

	// Broker
	publisher := rabbit.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.OrdersExchange, logger)
	defer publisher.Close()

	metrics := observability.NewInmem(256)

	svc := service.NewService(snapshots, repo, publisher, pricing.DefaultStatic(), logger, metrics)

	// Payment-outcome consumer runs for the whole process lifetime,
	// independent of request traffic.
	paymentHandler := handler.NewHandler(repo, breaker.New(cfg.Breaker), cfg.Retry, logger, metrics)
	consumer := rabbit.NewConsumer(cfg.Rabbit, paymentHandler.Handle, logger)

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	server := httpapi.New(svc, limiter, cfg.RateLimit, logger, metrics)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	// Let the consumer finish its in-flight message before connections close.
	select {
	case <-consumerDone:
	case <-time.After(10 * time.Second):
		logger.Warn("consumer did not drain in time")
	}
	logger.Info("stopped")
}
