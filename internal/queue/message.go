package queue

import (
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ReminderMessage is the broker payload handed from the gate to the relay.
type ReminderMessage struct {
	ReminderID    string `json:"reminderId"`
	DedupeKey     string `json:"dedupeKey,omitempty"`
	Title         string `json:"title,omitempty"`
	Body          string `json:"body,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	CreatedAtMs   int64  `json:"createdAtMs"`
}

func (m ReminderMessage) Validate() error {
	if strings.TrimSpace(m.ReminderID) == "" {
		return fmt.Errorf("reminderId is required")
	}
	if strings.TrimSpace(m.Title) == "" && strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("title or body is required")
	}
	return nil
}

// withHeaders fills routing fields the body left empty from the delivery
// headers. Body values always win.
func (m ReminderMessage) withHeaders(headers amqp.Table, correlationID string) ReminderMessage {
	if m.DedupeKey == "" {
		if v, ok := headers[HeaderDedupeKey].(string); ok {
			m.DedupeKey = v
		}
	}
	if m.CorrelationID == "" {
		if v, ok := headers[HeaderCorrelationID].(string); ok {
			m.CorrelationID = v
		} else {
			m.CorrelationID = correlationID
		}
	}
	return m
}
