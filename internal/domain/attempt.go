package domain

import "time"

// DeliveryAttempt records a single provider call for audit.
type DeliveryAttempt struct {
	ID         string    `json:"id"`
	ReminderID string    `json:"reminderId"`
	DedupeKey  string    `json:"dedupeKey,omitempty"`
	Provider   string    `json:"provider"`
	Success    bool      `json:"success"`
	StatusCode *int      `json:"statusCode,omitempty"`
	MessageID  *string   `json:"messageId,omitempty"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
