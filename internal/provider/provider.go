package provider

import (
	"context"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
)

// Provider is the outbound reminder delivery port. A nil error means the
// reminder was delivered.
type Provider interface {
	Name() string
	Send(ctx context.Context, reminder domain.Reminder) (*ProviderResponse, error)
}

// ProviderResponse stores provider call metadata for audit.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}

// HandsOff reports whether p only enqueues reminders. The relay performs the
// final delivery and records the history entry.
func HandsOff(p Provider) bool {
	_, ok := p.(*QueueProvider)
	return ok
}
