package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/kursadbilgin/reminder-engine/internal/queue"
)

type publisherFake struct {
	publishFn func(ctx context.Context, queueName string, msg queue.ReminderMessage) error
}

func (f *publisherFake) Publish(ctx context.Context, queueName string, msg queue.ReminderMessage) error {
	return f.publishFn(ctx, queueName, msg)
}

func (f *publisherFake) Close() error { return nil }

func TestQueueProviderSend(t *testing.T) {
	t.Parallel()

	var gotQueue string
	var gotMsg queue.ReminderMessage
	publisher := &publisherFake{publishFn: func(_ context.Context, queueName string, msg queue.ReminderMessage) error {
		gotQueue = queueName
		gotMsg = msg
		return nil
	}}

	p, err := NewQueueProvider(publisher)
	if err != nil {
		t.Fatalf("NewQueueProvider() error = %v", err)
	}
	p.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	reminder := testReminder()
	ctx := observability.WithCorrelationID(context.Background(), "cid-9")
	resp, err := p.Send(ctx, reminder)
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	if resp.MessageID != reminder.ID {
		t.Fatalf("MessageID = %q, want %q", resp.MessageID, reminder.ID)
	}
	if gotQueue != queue.ReminderQueueName {
		t.Fatalf("queue = %q, want %q", gotQueue, queue.ReminderQueueName)
	}
	if gotMsg.ReminderID != reminder.ID || gotMsg.DedupeKey != reminder.DedupeKey || gotMsg.Body != reminder.Body {
		t.Fatalf("message = %+v, want fields from %+v", gotMsg, reminder)
	}
	if gotMsg.CorrelationID != "cid-9" {
		t.Fatalf("CorrelationID = %q, want cid-9", gotMsg.CorrelationID)
	}
	if gotMsg.CreatedAtMs != 1_700_000_000_000 {
		t.Fatalf("CreatedAtMs = %d, want 1700000000000", gotMsg.CreatedAtMs)
	}
}

func TestQueueProviderPublishFailureIsTransient(t *testing.T) {
	t.Parallel()

	publisher := &publisherFake{publishFn: func(context.Context, string, queue.ReminderMessage) error {
		return errors.New("connection closed")
	}}

	p, err := NewQueueProvider(publisher)
	if err != nil {
		t.Fatalf("NewQueueProvider() error = %v", err)
	}

	_, err = p.Send(context.Background(), testReminder())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsTransient(err) {
		t.Fatalf("IsTransient() = false, want true (err=%v)", err)
	}
}

func TestNewQueueProviderRequiresPublisher(t *testing.T) {
	t.Parallel()

	if _, err := NewQueueProvider(nil); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}
