package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/provider"
	"github.com/kursadbilgin/reminder-engine/internal/queue"
	"go.uber.org/zap"
)

func testRelayMessage() queue.ReminderMessage {
	return queue.ReminderMessage{
		ReminderID:    "r1",
		DedupeKey:     "break-reminder",
		Title:         "Reminder",
		Body:          "Time to take a short break.",
		CorrelationID: "cid-1",
	}
}

func newTestRelay(t *testing.T, p provider.Provider, limiter *fakeRateLimiter) *RelayService {
	t.Helper()
	return newTestRelayWithHistory(t, p, limiter, &fakeHistoryRepo{})
}

func newTestRelayWithHistory(t *testing.T, p provider.Provider, limiter *fakeRateLimiter, history *fakeHistoryRepo) *RelayService {
	t.Helper()

	relay, err := NewRelayService(&fakeConsumer{}, p, limiter, nil, history, RelayOptions{Concurrency: 2, MaxHistory: 3}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRelayService() error = %v", err)
	}
	relay.randIntn = func(n int) int { return 0 }
	relay.backoff = func(ctx context.Context, d time.Duration) {}
	relay.now = func() time.Time { return testNow }
	return relay
}

func TestRelayServiceProcessMessageSuccess(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{name: "webhook"}
	limiter := &fakeRateLimiter{waitFn: func(ctx context.Context, scope string) error {
		if scope != "webhook" {
			t.Errorf("scope = %q, want webhook", scope)
		}
		return nil
	}}
	history := &fakeHistoryRepo{}
	relay := newTestRelayWithHistory(t, p, limiter, history)

	if err := relay.processMessage(context.Background(), testRelayMessage()); err != nil {
		t.Fatalf("processMessage() error = %v", err)
	}
	if len(p.sent) != 1 {
		t.Fatalf("provider sends = %d, want 1", len(p.sent))
	}
	want := domain.Reminder{ID: "r1", DedupeKey: "break-reminder", Title: "Reminder", Body: "Time to take a short break."}
	if p.sent[0] != want {
		t.Fatalf("sent = %+v, want %+v", p.sent[0], want)
	}

	wantHistory := []domain.NotificationRecord{{ID: "r1", DedupeKey: "break-reminder", Timestamp: testNow.UnixMilli()}}
	if len(history.history) != 1 || history.history[0] != wantHistory[0] {
		t.Fatalf("history = %+v, want %+v", history.history, wantHistory)
	}
}

func TestRelayServiceRecordsHistoryWithCap(t *testing.T) {
	t.Parallel()

	history := &fakeHistoryRepo{history: []domain.NotificationRecord{
		{ID: "a", Timestamp: 1},
		{ID: "b", Timestamp: 2},
		{ID: "c", Timestamp: 3},
	}}
	relay := newTestRelayWithHistory(t, &fakeProvider{}, &fakeRateLimiter{}, history)

	if err := relay.processMessage(context.Background(), testRelayMessage()); err != nil {
		t.Fatalf("processMessage() error = %v", err)
	}

	if len(history.history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history.history))
	}
	if history.history[0].ID != "b" || history.history[2].ID != "r1" {
		t.Fatalf("history = %+v, want oldest evicted and r1 appended", history.history)
	}
}

func TestRelayServiceHistorySaveFailureStillAcks(t *testing.T) {
	t.Parallel()

	history := &fakeHistoryRepo{saveErr: errors.New("store down")}
	relay := newTestRelayWithHistory(t, &fakeProvider{}, &fakeRateLimiter{}, history)

	if err := relay.processMessage(context.Background(), testRelayMessage()); err != nil {
		t.Fatalf("processMessage() error = %v, want nil so the delivered message is acked", err)
	}
	if history.saves != 1 {
		t.Fatalf("history saves = %d, want 1", history.saves)
	}
}

func TestRelayServiceProcessMessagePermanentFailureRejects(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{sendFn: func(ctx context.Context, r domain.Reminder) (*provider.ProviderResponse, error) {
		return nil, &provider.ProviderError{StatusCode: 400, Message: "bad request"}
	}}
	history := &fakeHistoryRepo{}
	relay := newTestRelayWithHistory(t, p, &fakeRateLimiter{}, history)

	err := relay.processMessage(context.Background(), testRelayMessage())
	if !errors.Is(err, queue.ErrReject) {
		t.Fatalf("processMessage() error = %v, want ErrReject", err)
	}
	if history.saves != 0 || len(history.history) != 0 {
		t.Fatalf("history = %+v (saves %d), want untouched for a dead-lettered reminder", history.history, history.saves)
	}
}

func TestRelayServiceProcessMessageTransientRetriesThenRejects(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{sendFn: func(ctx context.Context, r domain.Reminder) (*provider.ProviderResponse, error) {
		return nil, &provider.ProviderError{StatusCode: 503, Transient: true}
	}}
	relay := newTestRelay(t, p, &fakeRateLimiter{})

	var delays []time.Duration
	relay.backoff = func(ctx context.Context, d time.Duration) { delays = append(delays, d) }

	for attempt := 1; attempt < maxRelayAttempts; attempt++ {
		err := relay.processMessage(context.Background(), testRelayMessage())
		if err == nil || errors.Is(err, queue.ErrReject) {
			t.Fatalf("attempt %d: processMessage() error = %v, want requeue error", attempt, err)
		}
	}

	err := relay.processMessage(context.Background(), testRelayMessage())
	if !errors.Is(err, queue.ErrReject) {
		t.Fatalf("final attempt: processMessage() error = %v, want ErrReject", err)
	}
	if !strings.Contains(err.Error(), "retries exhausted") {
		t.Fatalf("final attempt error = %v, want retries exhausted", err)
	}

	if len(delays) != maxRelayAttempts-1 {
		t.Fatalf("backoff calls = %d, want %d", len(delays), maxRelayAttempts-1)
	}
	if delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("delays = %v, want exponential from 1s", delays)
	}
	if len(relay.attempts) != 0 {
		t.Fatalf("attempt counters = %v, want cleared", relay.attempts)
	}
}

func TestRelayServiceProcessMessageRateLimiterError(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	relay := newTestRelay(t, p, &fakeRateLimiter{waitFn: func(ctx context.Context, scope string) error {
		return errors.New("rate limit wait timeout")
	}})

	err := relay.processMessage(context.Background(), testRelayMessage())
	if err == nil {
		t.Fatal("processMessage() expected error, got nil")
	}
	if errors.Is(err, queue.ErrReject) {
		t.Fatal("rate limiter failures must requeue, not reject")
	}
	if !strings.Contains(err.Error(), "rate limiter wait failed") {
		t.Fatalf("processMessage() error = %v, want rate limiter wait failure", err)
	}
	if len(p.sent) != 0 {
		t.Fatal("provider should not be called when rate limiter fails")
	}
}

func TestRelayServiceStartPropagatesConsumerError(t *testing.T) {
	t.Parallel()

	consumeErr := errors.New("consume failed")
	consumer := &fakeConsumer{consumeFn: func(ctx context.Context, queueName string, handler queue.MessageHandler) error {
		if queueName != queue.ReminderQueueName {
			t.Errorf("queue = %q, want %q", queueName, queue.ReminderQueueName)
		}
		return consumeErr
	}}

	relay, err := NewRelayService(consumer, &fakeProvider{}, &fakeRateLimiter{}, nil, &fakeHistoryRepo{}, RelayOptions{Concurrency: 3}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRelayService() error = %v", err)
	}

	if err := relay.Start(context.Background()); !errors.Is(err, consumeErr) {
		t.Fatalf("Start() error = %v, want %v", err, consumeErr)
	}
}

func TestRelayServiceStartStopsOnCancel(t *testing.T) {
	t.Parallel()

	relay, err := NewRelayService(&fakeConsumer{}, &fakeProvider{}, &fakeRateLimiter{}, nil, &fakeHistoryRepo{}, RelayOptions{Concurrency: 2}, nil)
	if err != nil {
		t.Fatalf("NewRelayService() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := relay.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func TestNewRelayServiceValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRelayService(nil, &fakeProvider{}, &fakeRateLimiter{}, nil, &fakeHistoryRepo{}, RelayOptions{}, nil); err == nil {
		t.Fatal("expected error for nil consumer")
	}
	if _, err := NewRelayService(&fakeConsumer{}, &fakeProvider{name: provider.QueueProviderName}, &fakeRateLimiter{}, nil, &fakeHistoryRepo{}, RelayOptions{}, nil); err == nil {
		t.Fatal("expected error for queue provider")
	}
	if _, err := NewRelayService(&fakeConsumer{}, &fakeProvider{}, nil, nil, &fakeHistoryRepo{}, RelayOptions{}, nil); err == nil {
		t.Fatal("expected error for nil rate limiter")
	}
	if _, err := NewRelayService(&fakeConsumer{}, &fakeProvider{}, &fakeRateLimiter{}, nil, nil, RelayOptions{}, nil); err == nil {
		t.Fatal("expected error for nil history repository")
	}

	relay, err := NewRelayService(&fakeConsumer{}, &fakeProvider{}, &fakeRateLimiter{}, nil, &fakeHistoryRepo{}, RelayOptions{}, nil)
	if err != nil {
		t.Fatalf("NewRelayService() error = %v", err)
	}
	if relay.concurrency != minRelayConcurrency {
		t.Fatalf("concurrency = %d, want %d", relay.concurrency, minRelayConcurrency)
	}
	if relay.maxHistory != defaultMaxHistory {
		t.Fatalf("maxHistory = %d, want %d", relay.maxHistory, defaultMaxHistory)
	}
}

func TestRelayServiceComputeRetryDelay(t *testing.T) {
	t.Parallel()

	relay := newTestRelay(t, &fakeProvider{}, &fakeRateLimiter{})

	if got := relay.computeRetryDelay(1); got != time.Second {
		t.Fatalf("computeRetryDelay(1) = %v, want %v", got, time.Second)
	}
	if got := relay.computeRetryDelay(10); got != maxRetryDelay {
		t.Fatalf("computeRetryDelay(10) = %v, want %v", got, maxRetryDelay)
	}

	relay.randIntn = func(n int) int {
		if n != maxRetryJitterMillis+1 {
			t.Errorf("randIntn arg = %d, want %d", n, maxRetryJitterMillis+1)
		}
		return 125
	}

	want := 2*time.Second + 125*time.Millisecond
	if got := relay.computeRetryDelay(2); got != want {
		t.Fatalf("computeRetryDelay(2) = %v, want %v", got, want)
	}
}
