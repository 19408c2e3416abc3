package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestQueueNames(t *testing.T) {
	if ReminderQueueName != "reminders" {
		t.Fatalf("ReminderQueueName = %s, want reminders", ReminderQueueName)
	}
	if ReminderDLQName != "dlq.reminders" {
		t.Fatalf("ReminderDLQName = %s, want dlq.reminders", ReminderDLQName)
	}
	if dlxExchangeName != "reminder.dlx" {
		t.Fatalf("dlxExchangeName = %s, want reminder.dlx", dlxExchangeName)
	}
}

func TestActionFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ackAction
	}{
		{name: "success", err: nil, want: actionAck},
		{name: "transient", err: errors.New("timeout"), want: actionRequeue},
		{name: "reject", err: ErrReject, want: actionReject},
		{name: "wrapped reject", err: fmt.Errorf("permanent: %w", ErrReject), want: actionReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := actionFor(tt.err); got != tt.want {
				t.Fatalf("actionFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestReminderMessageValidate(t *testing.T) {
	msg := ReminderMessage{
		ReminderID: "r1",
		Title:      "Reminder",
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	msg.ReminderID = " "
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty reminder id")
	}

	msg.ReminderID = "r1"
	msg.Title = ""
	if err := msg.Validate(); err == nil {
		t.Fatal("expected error for empty title and body")
	}

	msg.Body = "Time to take a short break."
	if err := msg.Validate(); err != nil {
		t.Fatalf("Validate() with body only unexpected error: %v", err)
	}
}

func TestNewPublishingHeaders(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("TRT", 3*60*60))
	msg := ReminderMessage{
		ReminderID:    "r1",
		DedupeKey:     "break-reminder",
		Title:         "Reminder",
		CorrelationID: "req-42",
		CreatedAtMs:   1_772_346_600_000,
	}

	got := newPublishing(msg, []byte(`{}`), now)

	if got.Headers[HeaderDedupeKey] != "break-reminder" {
		t.Fatalf("header %s = %v, want break-reminder", HeaderDedupeKey, got.Headers[HeaderDedupeKey])
	}
	if got.Headers[HeaderCorrelationID] != "req-42" {
		t.Fatalf("header %s = %v, want req-42", HeaderCorrelationID, got.Headers[HeaderCorrelationID])
	}
	if got.Headers[HeaderCreatedAtMs] != int64(1_772_346_600_000) {
		t.Fatalf("header %s = %v, want 1772346600000", HeaderCreatedAtMs, got.Headers[HeaderCreatedAtMs])
	}
	if err := got.Headers.Validate(); err != nil {
		t.Fatalf("Headers.Validate() error = %v", err)
	}
	if got.MessageId != "r1" || got.CorrelationId != "req-42" {
		t.Fatalf("ids = %q/%q, want r1/req-42", got.MessageId, got.CorrelationId)
	}
	if got.Type != reminderMessageType || got.AppId != publisherAppID {
		t.Fatalf("type/app = %q/%q", got.Type, got.AppId)
	}
	if got.DeliveryMode != amqp.Persistent {
		t.Fatalf("DeliveryMode = %d, want persistent", got.DeliveryMode)
	}
	if !got.Timestamp.Equal(now) || got.Timestamp.Location() != time.UTC {
		t.Fatalf("Timestamp = %v, want %v in UTC", got.Timestamp, now)
	}
}

func TestNewPublishingOmitsEmptyHeaders(t *testing.T) {
	got := newPublishing(ReminderMessage{ReminderID: "r1", Body: "b"}, nil, time.Now())

	if _, ok := got.Headers[HeaderDedupeKey]; ok {
		t.Fatalf("unexpected %s header", HeaderDedupeKey)
	}
	if _, ok := got.Headers[HeaderCorrelationID]; ok {
		t.Fatalf("unexpected %s header", HeaderCorrelationID)
	}
}

func TestReminderMessageWithHeaders(t *testing.T) {
	headers := amqp.Table{
		HeaderDedupeKey:     "from-header",
		HeaderCorrelationID: "corr-header",
	}

	tests := []struct {
		name          string
		msg           ReminderMessage
		headers       amqp.Table
		correlationID string
		wantDedupe    string
		wantCorr      string
	}{
		{name: "body wins", msg: ReminderMessage{DedupeKey: "body", CorrelationID: "corr-body"}, headers: headers, wantDedupe: "body", wantCorr: "corr-body"},
		{name: "filled from headers", headers: headers, correlationID: "prop", wantDedupe: "from-header", wantCorr: "corr-header"},
		{name: "correlation property fallback", headers: amqp.Table{}, correlationID: "prop", wantCorr: "prop"},
		{name: "non string header ignored", headers: amqp.Table{HeaderDedupeKey: int32(7)}, wantDedupe: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.msg.withHeaders(tt.headers, tt.correlationID)
			if got.DedupeKey != tt.wantDedupe {
				t.Fatalf("DedupeKey = %q, want %q", got.DedupeKey, tt.wantDedupe)
			}
			if got.CorrelationID != tt.wantCorr {
				t.Fatalf("CorrelationID = %q, want %q", got.CorrelationID, tt.wantCorr)
			}
		})
	}
}
