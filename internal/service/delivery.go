package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/kursadbilgin/reminder-engine/internal/provider"
	"github.com/kursadbilgin/reminder-engine/internal/repository"
	"go.uber.org/zap"
)

// deliverer sends one reminder through a provider and records metrics and
// the optional audit row.
type deliverer struct {
	provider provider.Provider
	attempts repository.AttemptRepository
	metrics  *observability.Metrics
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

func newDeliverer(p provider.Provider, attempts repository.AttemptRepository, logger *zap.Logger) *deliverer {
	return &deliverer{
		provider: p,
		attempts: attempts,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (d *deliverer) send(ctx context.Context, reminder domain.Reminder) (*provider.ProviderResponse, error) {
	name := d.provider.Name()

	start := d.now()
	resp, err := d.provider.Send(ctx, reminder)
	d.metrics.ObserveDeliveryDuration(name, d.now().Sub(start))

	d.recordAttempt(ctx, name, reminder, resp, err)

	log := observability.WithContextLogger(d.logger, ctx)
	if err != nil {
		reason := failureReason(err)
		d.metrics.IncDeliveryFailed(name, reason)
		log.Warn("reminder delivery failed",
			zap.String("reminderId", reminder.ID),
			zap.String("provider", name),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return nil, err
	}

	d.metrics.IncDelivered(name)
	log.Info("reminder delivered",
		zap.String("reminderId", reminder.ID),
		zap.String("provider", name),
	)
	return resp, nil
}

// recordAttempt writes the audit row. Audit failures are logged and never
// fail the delivery.
func (d *deliverer) recordAttempt(
	ctx context.Context,
	providerName string,
	reminder domain.Reminder,
	resp *provider.ProviderResponse,
	sendErr error,
) {
	if d.attempts == nil {
		return
	}

	attempt := &domain.DeliveryAttempt{
		ID:         d.newID(),
		ReminderID: reminder.ID,
		DedupeKey:  reminder.DedupeKey,
		Provider:   providerName,
		Success:    sendErr == nil,
		CreatedAt:  d.now().UTC(),
	}

	if resp != nil {
		if resp.StatusCode > 0 {
			value := resp.StatusCode
			attempt.StatusCode = &value
		}
		if id := strings.TrimSpace(resp.MessageID); id != "" {
			attempt.MessageID = &id
		}
	}

	if sendErr != nil {
		value := sendErr.Error()
		attempt.Error = &value

		var providerErr *provider.ProviderError
		if errors.As(sendErr, &providerErr) && providerErr.StatusCode > 0 && attempt.StatusCode == nil {
			value := providerErr.StatusCode
			attempt.StatusCode = &value
		}
	}

	if err := d.attempts.Create(ctx, attempt); err != nil {
		d.logger.Error("failed to record delivery attempt",
			zap.String("reminderId", reminder.ID),
			zap.Error(err),
		)
	}
}

func failureReason(err error) string {
	if provider.IsTransient(err) {
		return "transient_error"
	}
	return "permanent_error"
}
