package queue

import (
	"context"
	"errors"
)

// Publisher publishes reminder messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg ReminderMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message. Returning an error that
// wraps ErrReject dead-letters the message; any other error requeues it.
type MessageHandler func(ctx context.Context, msg ReminderMessage) error

// Consumer consumes reminder messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// ErrReject marks a handler failure that must not be retried.
var ErrReject = errors.New("reject message")

// Headers set on every published reminder.
const (
	HeaderDedupeKey     = "x-dedupe-key"
	HeaderCorrelationID = "x-correlation-id"
	HeaderCreatedAtMs   = "x-created-at-ms"

	reminderMessageType = "reminder"
	publisherAppID      = "reminder-engine"
)

const (
	ReminderQueueName = "reminders"
	ReminderDLQName   = "dlq.reminders"
	reminderRouting   = "reminders"
)

type ackAction int

const (
	actionAck ackAction = iota
	actionRequeue
	actionReject
)

func actionFor(err error) ackAction {
	switch {
	case err == nil:
		return actionAck
	case errors.Is(err, ErrReject):
		return actionReject
	default:
		return actionRequeue
	}
}
