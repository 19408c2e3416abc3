package domain

import (
	"fmt"
	"strings"
)

// NotificationRecord is one entry of the delivered-notification history.
type NotificationRecord struct {
	ID        string `json:"id"`
	DedupeKey string `json:"dedupeKey,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Reminder is a candidate notification built for a single evaluation.
type Reminder struct {
	ID        string
	DedupeKey string
	Title     string
	Body      string
}

func (r Reminder) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: reminder id is required", ErrValidation)
	}
	if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("%w: reminder title or body is required", ErrValidation)
	}
	return nil
}

// DenyReason names the rule that suppressed a reminder.
type DenyReason string

const (
	ReasonNone        DenyReason = ""
	ReasonQuietHours  DenyReason = "quiet_hours"
	ReasonRateLimited DenyReason = "rate_limited"
	ReasonDeduped     DenyReason = "deduped"
)

func (r DenyReason) String() string { return string(r) }

// Decision is the outcome of one gate evaluation. Reminder is set once the
// candidate has been built, i.e. on allow and on a dedup deny.
type Decision struct {
	Allowed  bool
	Reason   DenyReason
	Reminder *Reminder
}

func Allow(reminder Reminder) Decision {
	return Decision{Allowed: true, Reminder: &reminder}
}

func Deny(reason DenyReason, reminder *Reminder) Decision {
	return Decision{Reason: reason, Reminder: reminder}
}
