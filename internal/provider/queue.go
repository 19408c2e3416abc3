package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/kursadbilgin/reminder-engine/internal/queue"
)

const QueueProviderName = "rabbitmq"

// QueueProvider hands reminders to the relay through RabbitMQ. A successful
// publish only means the reminder is queued; see HandsOff.
type QueueProvider struct {
	publisher queue.Publisher
	queueName string
	now       func() time.Time
}

func NewQueueProvider(publisher queue.Publisher) (*QueueProvider, error) {
	if publisher == nil {
		return nil, fmt.Errorf("queue publisher is required")
	}
	return &QueueProvider{
		publisher: publisher,
		queueName: queue.ReminderQueueName,
		now:       time.Now,
	}, nil
}

func (p *QueueProvider) Name() string { return QueueProviderName }

func (p *QueueProvider) Send(ctx context.Context, reminder domain.Reminder) (*ProviderResponse, error) {
	if err := reminder.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reminder: %w", err)
	}

	msg := queue.ReminderMessage{
		ReminderID:  reminder.ID,
		DedupeKey:   reminder.DedupeKey,
		Title:       reminder.Title,
		Body:        reminder.Body,
		CreatedAtMs: p.now().UnixMilli(),
	}
	if correlationID, ok := observability.CorrelationIDFromContext(ctx); ok {
		msg.CorrelationID = correlationID
	}

	if err := p.publisher.Publish(ctx, p.queueName, msg); err != nil {
		return nil, &ProviderError{
			Provider:  QueueProviderName,
			Message:   "failed to enqueue reminder",
			Transient: true,
			Cause:     err,
		}
	}

	return &ProviderResponse{MessageID: reminder.ID}, nil
}
