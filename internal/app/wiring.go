// Package app assembles stores, providers and services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/reminder-engine/internal/config"
	"github.com/kursadbilgin/reminder-engine/internal/content"
	"github.com/kursadbilgin/reminder-engine/internal/handler"
	"github.com/kursadbilgin/reminder-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/reminder-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/reminder-engine/internal/infra/redis"
	"github.com/kursadbilgin/reminder-engine/internal/infra/sqlite"
	"github.com/kursadbilgin/reminder-engine/internal/kv"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/kursadbilgin/reminder-engine/internal/provider"
	"github.com/kursadbilgin/reminder-engine/internal/queue"
	"github.com/kursadbilgin/reminder-engine/internal/ratelimit"
	"github.com/kursadbilgin/reminder-engine/internal/repository"
	"github.com/kursadbilgin/reminder-engine/internal/service"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resources holds the opened backends. Close releases them in reverse order.
type Resources struct {
	Store    kv.Store
	DB       *gorm.DB
	Redis    *goredis.Client
	Attempts repository.AttemptRepository

	checks  []handler.Check
	closers []func() error
}

// Open connects the KV store selected by STORE_DRIVER plus the optional
// postgres audit database and redis client.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Resources, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	res := &Resources{}
	if err := res.open(ctx, cfg, logger); err != nil {
		_ = res.Close()
		return nil, err
	}

	logger.Info("store opened", zap.String("driver", cfg.StoreDriver))
	return res, nil
}

func (r *Resources) open(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.DatabaseDSN != "" {
		db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		r.DB = db
		r.addCloser(func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})

		if err := migrations.Migrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("postgres migrations completed")

		r.Attempts = repository.NewGormAttemptRepo(db)
		r.addCheck("postgres", func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}

	if cfg.RedisURL != "" {
		client, err := infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		r.Redis = client
		r.addCloser(client.Close)
		r.addCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		r.Store = kv.NewMemoryStore()
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		r.Store = store
		r.addCloser(store.Close)
	case config.StoreRedis:
		store, err := infraredis.NewKVStore(r.Redis)
		if err != nil {
			return err
		}
		r.Store = store
	case config.StorePostgres:
		store, err := postgresql.NewKVStore(r.DB)
		if err != nil {
			return err
		}
		r.Store = store
	default:
		return fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
	r.addCheck("store", r.Store.Ping)
	return nil
}

// Checks returns the readiness checks for the opened backends.
func (r *Resources) Checks() []handler.Check {
	return r.checks
}

func (r *Resources) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Resources) addCloser(fn func() error) {
	r.closers = append(r.closers, fn)
}

func (r *Resources) addCheck(name string, ping func(ctx context.Context) error) {
	r.checks = append(r.checks, handler.Check{Name: name, Ping: ping})
}

// NewProvider builds the provider for a delivery driver. publisher is only
// used by the rabbitmq driver.
func NewProvider(driver string, cfg *config.Config, publisher queue.Publisher, logger *zap.Logger) (provider.Provider, error) {
	switch driver {
	case config.DeliveryLog:
		return provider.NewLogProvider(logger), nil
	case config.DeliveryWebhook:
		return provider.NewWebhookProvider(cfg.WebhookURL)
	case config.DeliveryTelegram:
		return provider.NewTelegramProvider(cfg.TelegramToken, cfg.TelegramChatID, cfg.TelegramAPIURL)
	case config.DeliveryRabbitMQ:
		return provider.NewQueueProvider(publisher)
	default:
		return nil, fmt.Errorf("unsupported delivery driver %q", driver)
	}
}

// NewLimiter shares the relay budget through redis when available.
func NewLimiter(cfg *config.Config, client *goredis.Client) (ratelimit.RateLimiter, error) {
	if client != nil {
		return infraredis.NewRedisRateLimiter(client, cfg.RelayBudget())
	}
	return ratelimit.NewLocalRateLimiter(cfg.RelayBudget()), nil
}

func NewReminderService(
	cfg *config.Config,
	res *Resources,
	p provider.Provider,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*service.ReminderService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	svc, err := service.NewReminderService(
		repository.NewKVSettingsRepo(res.Store, cfg.DefaultSettings(), logger),
		repository.NewKVHistoryRepo(res.Store),
		res.Attempts,
		p,
		content.NewComposer(cfg.ReminderTitle, cfg.ReminderBody),
		service.ReminderOptions{
			DedupeKey:  cfg.ReminderDedupeKey,
			DedupeTTL:  cfg.DedupeTTL(),
			MaxHistory: cfg.HistoryMaxRecords,
			Location:   loc,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}
	svc.SetMetrics(metrics)
	return svc, nil
}
