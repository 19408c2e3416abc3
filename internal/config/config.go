package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/ratelimit"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"

	DeliveryLog      = "log"
	DeliveryWebhook  = "webhook"
	DeliveryTelegram = "telegram"
	DeliveryRabbitMQ = "rabbitmq"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=info"`
	APIPort  int    `env:"API_PORT,default=8080" validate:"min=1,max=65535"`

	StoreDriver string `env:"STORE_DRIVER,default=sqlite" validate:"oneof=memory sqlite redis postgres"`
	SQLitePath  string `env:"SQLITE_PATH,default=reminder.db" validate:"required_if=StoreDriver sqlite"`
	RedisURL    string `env:"REDIS_URL" validate:"required_if=StoreDriver redis"`
	DatabaseDSN string `env:"DATABASE_DSN" validate:"required_if=StoreDriver postgres"`

	DeliveryDriver string `env:"DELIVERY_DRIVER,default=log" validate:"oneof=log webhook telegram rabbitmq"`
	WebhookURL     string `env:"WEBHOOK_URL" validate:"required_if=DeliveryDriver webhook"`
	TelegramToken  string `env:"TELEGRAM_TOKEN" validate:"required_if=DeliveryDriver telegram"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID" validate:"required_if=DeliveryDriver telegram"`
	TelegramAPIURL string `env:"TELEGRAM_API_URL"`
	RabbitMQURL    string `env:"RABBITMQ_URL" validate:"required_if=DeliveryDriver rabbitmq"`

	ReminderSchedule    string `env:"REMINDER_SCHEDULE,default=@every 15m" validate:"required"`
	StartupDelaySeconds int    `env:"STARTUP_DELAY_SECONDS,default=5" validate:"min=0"`
	Timezone            string `env:"TIMEZONE,default=Local"`

	DefaultQuietFrom  string `env:"DEFAULT_QUIET_FROM,default=22:00" validate:"datetime=15:04"`
	DefaultQuietTo    string `env:"DEFAULT_QUIET_TO,default=08:00" validate:"datetime=15:04"`
	DefaultMaxPer2h   int    `env:"DEFAULT_MAX_PER_2H,default=3" validate:"min=0"`
	DedupeTTLMinutes  int    `env:"DEDUPE_TTL_MINUTES,default=30" validate:"min=0"`
	HistoryMaxRecords int    `env:"HISTORY_MAX_RECORDS,default=100" validate:"min=1"`

	ReminderDedupeKey string `env:"REMINDER_DEDUPE_KEY,default=break-reminder"`
	ReminderTitle     string `env:"REMINDER_TITLE,default=Reminder"`
	ReminderBody      string `env:"REMINDER_BODY,default=Time to take a short break."`

	RelayDeliveryDriver  string `env:"RELAY_DELIVERY_DRIVER,default=log" validate:"oneof=log webhook telegram"`
	RelayRateLimit       int    `env:"RELAY_RATE_LIMIT,default=5" validate:"min=1"`
	RelayRateWindowMs    int    `env:"RELAY_RATE_WINDOW_MS,default=1000" validate:"min=1"`
	RelayConcurrency     int    `env:"RELAY_CONCURRENCY,default=1" validate:"min=1"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.validateRelay(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.DefaultSettings().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// validateRelay covers the relay's own provider, which the struct tags
// cannot express alongside DELIVERY_DRIVER.
func (c *Config) validateRelay() error {
	// Queued reminders are recorded by the relay process, which cannot see an
	// in-memory store.
	if c.DeliveryDriver == DeliveryRabbitMQ && c.StoreDriver == StoreMemory {
		return fmt.Errorf("delivery driver %q needs a shared store, not %q", DeliveryRabbitMQ, StoreMemory)
	}

	switch c.RelayDeliveryDriver {
	case DeliveryWebhook:
		if strings.TrimSpace(c.WebhookURL) == "" {
			return fmt.Errorf("WEBHOOK_URL is required for relay delivery driver %q", c.RelayDeliveryDriver)
		}
	case DeliveryTelegram:
		if strings.TrimSpace(c.TelegramToken) == "" || c.TelegramChatID == 0 {
			return fmt.Errorf("TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required for relay delivery driver %q", c.RelayDeliveryDriver)
		}
	}
	return nil
}

// Location resolves TIMEZONE; empty and "Local" mean the process zone.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

func (c *Config) DefaultSettings() domain.Settings {
	return domain.Settings{
		QuietFrom: c.DefaultQuietFrom,
		QuietTo:   c.DefaultQuietTo,
		MaxPer2h:  c.DefaultMaxPer2h,
	}
}

func (c *Config) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLMinutes) * time.Minute
}

// RelayBudget is the number of deliveries the relay may make per window.
func (c *Config) RelayBudget() ratelimit.Budget {
	return ratelimit.Budget{
		Limit:  c.RelayRateLimit,
		Window: time.Duration(c.RelayRateWindowMs) * time.Millisecond,
	}.Normalize()
}

func (c *Config) StartupDelay() time.Duration {
	return time.Duration(c.StartupDelaySeconds) * time.Second
}
