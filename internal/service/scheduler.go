package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const defaultReminderSchedule = "@every 15m"

// Ticker runs one gate evaluation.
type Ticker interface {
	Tick(ctx context.Context) (domain.Decision, error)
}

// Scheduler triggers ticks on a cron schedule plus one run shortly after start.
type Scheduler struct {
	ticker       Ticker
	spec         string
	startupDelay time.Duration
	location     *time.Location
	logger       *zap.Logger
}

func NewScheduler(
	ticker Ticker,
	spec string,
	startupDelay time.Duration,
	location *time.Location,
	logger *zap.Logger,
) (*Scheduler, error) {
	if ticker == nil {
		return nil, fmt.Errorf("ticker is required")
	}

	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = defaultReminderSchedule
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	if startupDelay < 0 {
		startupDelay = 0
	}
	if location == nil {
		location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		ticker:       ticker,
		spec:         spec,
		startupDelay: startupDelay,
		location:     location,
		logger:       logger,
	}, nil
}

// Start blocks until ctx is canceled, then waits for a running tick to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cronLogger := observability.CronLogger(s.logger)
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if _, err := c.AddFunc(s.spec, func() { s.runTick(ctx, "schedule") }); err != nil {
		return fmt.Errorf("failed to register reminder schedule: %w", err)
	}

	c.Start()
	s.logger.Info("scheduler started",
		zap.String("schedule", s.spec),
		zap.Duration("startupDelay", s.startupDelay),
		zap.String("location", s.location.String()),
	)

	startup := time.AfterFunc(s.startupDelay, func() { s.runTick(ctx, "startup") })

	<-ctx.Done()
	startup.Stop()
	<-c.Stop().Done()

	s.logger.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runTick(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}

	decision, err := s.ticker.Tick(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("reminder tick failed",
			zap.String("trigger", trigger),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("reminder tick completed",
		zap.String("trigger", trigger),
		zap.Bool("allowed", decision.Allowed),
		zap.String("reason", decision.Reason.String()),
	)
}
