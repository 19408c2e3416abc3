package provider

import (
	"context"
	"testing"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogProviderSend(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	p := NewLogProvider(zap.New(core))

	ctx := observability.WithCorrelationID(context.Background(), "cid-1")
	resp, err := p.Send(ctx, testReminder())
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}
	if resp.MessageID != "rem-1" {
		t.Fatalf("MessageID = %q, want rem-1", resp.MessageID)
	}

	entries := logs.FilterMessage("reminder toast").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["title"] != "Reminder" {
		t.Fatalf("title field = %v, want Reminder", fields["title"])
	}
	if fields["correlationId"] != "cid-1" {
		t.Fatalf("correlationId field = %v, want cid-1", fields["correlationId"])
	}
}

func TestLogProviderRejectsEmptyReminder(t *testing.T) {
	t.Parallel()

	p := NewLogProvider(nil)
	if _, err := p.Send(context.Background(), domain.Reminder{ID: "rem-1"}); err == nil {
		t.Fatal("expected error for reminder without content")
	}
}
