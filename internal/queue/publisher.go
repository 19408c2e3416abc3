package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQPublisher struct {
	client *RabbitMQ
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg ReminderMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid reminder message: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder message: %w", err)
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := ch.PublishWithContext(ctx, "", queue, false, false, newPublishing(msg, payload, time.Now())); err != nil {
		return fmt.Errorf("failed to publish message to queue %q: %w", queue, err)
	}

	return nil
}

// newPublishing carries the dedupe key and correlation id as headers too, so
// the dead-letter queue can be inspected without decoding bodies.
func newPublishing(msg ReminderMessage, payload []byte, now time.Time) amqp.Publishing {
	headers := amqp.Table{
		HeaderCreatedAtMs: msg.CreatedAtMs,
	}
	if msg.DedupeKey != "" {
		headers[HeaderDedupeKey] = msg.DedupeKey
	}
	if msg.CorrelationID != "" {
		headers[HeaderCorrelationID] = msg.CorrelationID
	}

	return amqp.Publishing{
		Headers:       headers,
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     now.UTC(),
		Type:          reminderMessageType,
		AppId:         publisherAppID,
		MessageId:     msg.ReminderID,
		CorrelationId: msg.CorrelationID,
		Body:          payload,
	}
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
