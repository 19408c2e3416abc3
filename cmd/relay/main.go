package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/kursadbilgin/reminder-engine/internal/app"
	"github.com/kursadbilgin/reminder-engine/internal/config"
	"github.com/kursadbilgin/reminder-engine/internal/handler"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/kursadbilgin/reminder-engine/internal/queue"
	"github.com/kursadbilgin/reminder-engine/internal/repository"
	"github.com/kursadbilgin/reminder-engine/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required for the relay")
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("reminder relay exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// The relay writes the notification history, so it opens the same store
	// as the api.
	res, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}
	defer res.Close()

	limiter, err := app.NewLimiter(cfg, res.Redis)
	if err != nil {
		return err
	}

	p, err := app.NewProvider(cfg.RelayDeliveryDriver, cfg, nil, logger)
	if err != nil {
		return err
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.RelayConcurrency, logger)
	defer consumer.Close()

	relay, err := service.NewRelayService(
		consumer,
		p,
		limiter,
		res.Attempts,
		repository.NewKVHistoryRepo(res.Store),
		service.RelayOptions{
			Concurrency: cfg.RelayConcurrency,
			MaxHistory:  cfg.HistoryMaxRecords,
		},
		logger,
	)
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	relay.SetMetrics(metrics)

	// Health and metrics endpoints only; the relay exposes no API.
	server := fiber.New(fiber.Config{DisableStartupMessage: true})
	server.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(server, res.Checks()...)

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("reminder relay started",
			zap.String("provider", p.Name()),
			zap.Int("concurrency", cfg.RelayConcurrency),
			zap.Int("rateLimit", cfg.RelayRateLimit),
			zap.Int("rateWindowMs", cfg.RelayRateWindowMs),
		)
		return relay.Start(groupCtx)
	})
	g.Go(func() error {
		if err := server.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = g.Wait()
	logger.Info("reminder relay stopped")
	return err
}
