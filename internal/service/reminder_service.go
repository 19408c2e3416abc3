package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/content"
	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/gate"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/kursadbilgin/reminder-engine/internal/provider"
	"github.com/kursadbilgin/reminder-engine/internal/repository"
	"go.uber.org/zap"
)

const defaultMaxHistory = 100

type ReminderOptions struct {
	DedupeKey  string
	DedupeTTL  time.Duration
	MaxHistory int
	Location   *time.Location
}

// Delivery is the result of a manual send.
type Delivery struct {
	Reminder  domain.Reminder
	MessageID string
}

// ReminderService runs the gate against persisted settings and history and
// delivers allowed reminders.
type ReminderService struct {
	settings repository.SettingsRepository
	history  repository.HistoryRepository
	composer *content.Composer
	delivery *deliverer
	logger   *zap.Logger
	metrics  *observability.Metrics

	dedupeKey  string
	dedupeTTL  time.Duration
	maxHistory int
	location   *time.Location

	// mu serializes read-evaluate-deliver-save so history is never lost.
	mu  sync.Mutex
	now func() time.Time
}

func NewReminderService(
	settings repository.SettingsRepository,
	history repository.HistoryRepository,
	attempts repository.AttemptRepository,
	p provider.Provider,
	composer *content.Composer,
	opts ReminderOptions,
	logger *zap.Logger,
) (*ReminderService, error) {
	if settings == nil || history == nil {
		return nil, fmt.Errorf("settings and history repositories are required")
	}
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if composer == nil {
		composer = content.NewComposer("", "")
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = defaultMaxHistory
	}
	if opts.DedupeTTL < 0 {
		opts.DedupeTTL = 0
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReminderService{
		settings:   settings,
		history:    history,
		composer:   composer,
		delivery:   newDeliverer(p, attempts, logger),
		logger:     logger,
		dedupeKey:  opts.DedupeKey,
		dedupeTTL:  opts.DedupeTTL,
		maxHistory: opts.MaxHistory,
		location:   opts.Location,
		now:        time.Now,
	}, nil
}

func (s *ReminderService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
	s.delivery.metrics = metrics
}

// Tick evaluates the gate once and delivers the periodic reminder when it is
// allowed. History is only written after a successful delivery; when the
// provider hands off to the relay, the relay writes it instead.
func (s *ReminderService) Tick(ctx context.Context) (domain.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("failed to read settings: %w", err)
	}
	history, err := s.history.Load(ctx)
	if err != nil {
		return domain.Decision{}, err
	}

	now := s.now().In(s.location)
	policy := gate.PolicyFromSettings(settings, s.dedupeTTL)
	decision := gate.Evaluate(now, policy, history, func() domain.Reminder {
		msg := s.composer.Compose("")
		return domain.Reminder{
			ID:        s.delivery.newID(),
			DedupeKey: s.dedupeKey,
			Title:     msg.Title,
			Body:      msg.Body,
		}
	})
	s.metrics.ObserveDecision(decision.Allowed, decision.Reason.String())

	log := observability.WithContextLogger(s.logger, ctx)
	if !decision.Allowed {
		log.Info("reminder suppressed",
			zap.String("reason", decision.Reason.String()),
			zap.Int("historySize", len(history)),
		)
		return decision, nil
	}

	reminder := *decision.Reminder
	if _, err := s.delivery.send(ctx, reminder); err != nil {
		return decision, fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}
	if provider.HandsOff(s.delivery.provider) {
		log.Info("reminder queued for relay", zap.String("reminderId", reminder.ID))
		return decision, nil
	}

	updated := gate.RecordNotification(history, reminder.ID, reminder.DedupeKey, now.UnixMilli(), s.maxHistory)
	if err := s.history.Save(ctx, updated); err != nil {
		return decision, err
	}
	s.metrics.SetHistorySize(len(updated))

	return decision, nil
}

// RunOnce composes a reminder from input and delivers it without gating or
// touching history.
func (s *ReminderService) RunOnce(ctx context.Context, input string) (*Delivery, error) {
	msg := s.composer.Compose(input)
	return s.sendManual(ctx, msg)
}

// SendNow delivers a caller-supplied toast without gating or touching history.
func (s *ReminderService) SendNow(ctx context.Context, title, body string) (*Delivery, error) {
	msg := s.composer.Toast(title, body)
	return s.sendManual(ctx, msg)
}

func (s *ReminderService) sendManual(ctx context.Context, msg content.Message) (*Delivery, error) {
	reminder := domain.Reminder{
		ID:    s.delivery.newID(),
		Title: msg.Title,
		Body:  msg.Body,
	}

	resp, err := s.delivery.send(ctx, reminder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}

	delivery := &Delivery{Reminder: reminder}
	if resp != nil {
		delivery.MessageID = resp.MessageID
	}
	return delivery, nil
}

func (s *ReminderService) Settings(ctx context.Context) (domain.Settings, error) {
	return s.settings.Get(ctx)
}

func (s *ReminderService) UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.settings.Update(ctx, settings); err != nil {
		return domain.Settings{}, err
	}

	observability.WithContextLogger(s.logger, ctx).Info("settings updated",
		zap.String("quietFrom", settings.QuietFrom),
		zap.String("quietTo", settings.QuietTo),
		zap.Int("maxPer2h", settings.MaxPer2h),
	)
	return settings, nil
}

func (s *ReminderService) History(ctx context.Context) ([]domain.NotificationRecord, error) {
	return s.history.Load(ctx)
}

// Attempts lists the audited delivery attempts of one reminder, oldest first.
func (s *ReminderService) Attempts(ctx context.Context, reminderID string) ([]domain.DeliveryAttempt, error) {
	reminderID = strings.TrimSpace(reminderID)
	if reminderID == "" {
		return nil, fmt.Errorf("%w: reminder id is required", domain.ErrValidation)
	}
	if s.delivery.attempts == nil {
		return nil, fmt.Errorf("%w: delivery audit is not enabled", domain.ErrNotFound)
	}

	attempts, err := s.delivery.attempts.ListByReminderID(ctx, reminderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery attempts: %w", err)
	}
	if attempts == nil {
		attempts = []domain.DeliveryAttempt{}
	}
	return attempts, nil
}

func (s *ReminderService) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.history.Save(ctx, []domain.NotificationRecord{}); err != nil {
		return err
	}
	s.metrics.SetHistorySize(0)
	return nil
}
