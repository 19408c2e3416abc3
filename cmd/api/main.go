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
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/reminder-engine/internal/app"
	"github.com/kursadbilgin/reminder-engine/internal/config"
	"github.com/kursadbilgin/reminder-engine/internal/handler"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/kursadbilgin/reminder-engine/internal/queue"
	"github.com/kursadbilgin/reminder-engine/internal/service"
	"github.com/kursadbilgin/reminder-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("reminder-engine api exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	res, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open backends: %w", err)
	}
	defer res.Close()

	var publisher queue.Publisher
	if cfg.DeliveryDriver == config.DeliveryRabbitMQ {
		client, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		rabbitPublisher := queue.NewRabbitMQPublisher(client)
		defer rabbitPublisher.Close()
		publisher = rabbitPublisher
	}

	p, err := app.NewProvider(cfg.DeliveryDriver, cfg, publisher, logger)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	svc, err := app.NewReminderService(cfg, res, p, metrics, logger)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	scheduler, err := service.NewScheduler(svc, cfg.ReminderSchedule, cfg.StartupDelay(), loc, logger)
	if err != nil {
		return err
	}

	server := fiber.New(fiber.Config{
		AppName:               "reminder-engine",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	server.Use(requestid.New())
	server.Use(recover.New())
	server.Use(metrics.HTTPMiddleware())
	server.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(server, res.Checks()...)
	if err := handler.RegisterReminderRoutes(server, svc); err != nil {
		return err
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Start(groupCtx)
	})
	g.Go(func() error {
		logger.Info("reminder-engine api started",
			zap.Int("port", cfg.APIPort),
			zap.String("store", cfg.StoreDriver),
			zap.String("delivery", cfg.DeliveryDriver),
		)
		if err := server.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("reminder-engine api stopped")
	return err
}
