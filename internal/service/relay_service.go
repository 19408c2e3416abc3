package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/gate"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/kursadbilgin/reminder-engine/internal/provider"
	"github.com/kursadbilgin/reminder-engine/internal/queue"
	"github.com/kursadbilgin/reminder-engine/internal/ratelimit"
	"github.com/kursadbilgin/reminder-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minRelayConcurrency  = 1
	maxRelayAttempts     = 5
	maxRetryDelay        = 60 * time.Second
	baseRetryDelay       = time.Second
	maxRetryJitterMillis = 250
)

type RelayOptions struct {
	Concurrency int
	MaxHistory  int
}

// RelayService moves queued reminders to a concrete delivery provider and
// records them in the notification history once they are sent.
type RelayService struct {
	consumer    queue.Consumer
	delivery    *deliverer
	rateLimiter ratelimit.RateLimiter
	history     repository.HistoryRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	maxHistory  int
	now         func() time.Time
	randIntn    func(n int) int
	backoff     func(ctx context.Context, d time.Duration)

	mu       sync.Mutex
	attempts map[string]int

	// historyMu serializes load-record-save across workers.
	historyMu sync.Mutex
}

func NewRelayService(
	consumer queue.Consumer,
	p provider.Provider,
	rateLimiter ratelimit.RateLimiter,
	attempts repository.AttemptRepository,
	history repository.HistoryRepository,
	opts RelayOptions,
	logger *zap.Logger,
) (*RelayService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if p.Name() == provider.QueueProviderName {
		return nil, fmt.Errorf("relay cannot deliver through the %s provider", provider.QueueProviderName)
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if history == nil {
		return nil, fmt.Errorf("history repository is required")
	}
	if opts.Concurrency < minRelayConcurrency {
		opts.Concurrency = minRelayConcurrency
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = defaultMaxHistory
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RelayService{
		consumer:    consumer,
		delivery:    newDeliverer(p, attempts, logger),
		rateLimiter: rateLimiter,
		history:     history,
		logger:      logger,
		concurrency: opts.Concurrency,
		maxHistory:  opts.MaxHistory,
		now:         time.Now,
		randIntn:    rand.Intn,
		backoff:     sleepContext,
		attempts:    make(map[string]int),
	}, nil
}

func (s *RelayService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
	s.delivery.metrics = metrics
}

// Start consumes the reminder queue with the configured number of workers
// until context cancellation.
func (s *RelayService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("relay worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.ReminderQueueName),
			)

			err := s.consumer.Consume(groupCtx, queue.ReminderQueueName, s.processMessage)
			if err != nil {
				s.logger.Error("relay worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("relay worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *RelayService) processMessage(ctx context.Context, msg queue.ReminderMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}

	reminder := domain.Reminder{
		ID:        msg.ReminderID,
		DedupeKey: msg.DedupeKey,
		Title:     msg.Title,
		Body:      msg.Body,
	}

	providerName := s.delivery.provider.Name()
	s.metrics.IncRelayInFlight(providerName)
	defer s.metrics.DecRelayInFlight(providerName)

	if err := s.rateLimiter.Wait(ctx, providerName); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	_, sendErr := s.delivery.send(ctx, reminder)
	if sendErr == nil {
		s.forget(reminder.ID)
		s.recordDelivered(ctx, reminder)
		return nil
	}

	if !provider.IsTransient(sendErr) {
		s.forget(reminder.ID)
		return fmt.Errorf("%w: %w", queue.ErrReject, sendErr)
	}

	attempt := s.nextAttempt(reminder.ID)
	if attempt >= maxRelayAttempts {
		s.forget(reminder.ID)
		s.metrics.IncDeliveryFailed(providerName, "retry_exhausted")
		return fmt.Errorf("%w: retries exhausted after %d attempts: %w", queue.ErrReject, attempt, sendErr)
	}

	// Back off before handing the message back to the broker.
	s.backoff(ctx, s.computeRetryDelay(attempt))

	return fmt.Errorf("transient delivery failure (attempt %d): %w", attempt, sendErr)
}

// recordDelivered appends the sent reminder to the history. A failed save is
// logged only: the message is already delivered and must not be requeued.
func (s *RelayService) recordDelivered(ctx context.Context, reminder domain.Reminder) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	log := observability.WithContextLogger(s.logger, ctx).With(zap.String("reminderId", reminder.ID))

	history, err := s.history.Load(ctx)
	if err != nil {
		log.Error("failed to load history after delivery", zap.Error(err))
		return
	}

	updated := gate.RecordNotification(history, reminder.ID, reminder.DedupeKey, s.now().UnixMilli(), s.maxHistory)
	if err := s.history.Save(ctx, updated); err != nil {
		log.Error("failed to save history after delivery", zap.Error(err))
		return
	}
	s.metrics.SetHistorySize(len(updated))
}

func (s *RelayService) nextAttempt(reminderID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[reminderID]++
	return s.attempts[reminderID]
}

func (s *RelayService) forget(reminderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, reminderID)
}

func (s *RelayService) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	jitterMillis := 0
	if s.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = s.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
