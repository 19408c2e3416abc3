package service

import (
	"context"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/provider"
	"github.com/kursadbilgin/reminder-engine/internal/queue"
)

type fakeProvider struct {
	name   string
	sendFn func(ctx context.Context, r domain.Reminder) (*provider.ProviderResponse, error)
	sent   []domain.Reminder
}

func (f *fakeProvider) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeProvider) Send(ctx context.Context, r domain.Reminder) (*provider.ProviderResponse, error) {
	f.sent = append(f.sent, r)
	if f.sendFn != nil {
		return f.sendFn(ctx, r)
	}
	return &provider.ProviderResponse{StatusCode: 200, MessageID: "msg-" + r.ID}, nil
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, scope string) (bool, error)
	waitFn  func(ctx context.Context, scope string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, scope)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, scope)
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.ReminderMessage) error
	published []queue.ReminderMessage
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.ReminderMessage) error {
	if f.publishFn != nil {
		if err := f.publishFn(ctx, queueName, msg); err != nil {
			return err
		}
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeAttemptRepo struct {
	createFn func(ctx context.Context, a *domain.DeliveryAttempt) error
	created  []domain.DeliveryAttempt
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	f.created = append(f.created, *a)
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	return nil
}

func (f *fakeAttemptRepo) ListByReminderID(ctx context.Context, reminderID string) ([]domain.DeliveryAttempt, error) {
	var out []domain.DeliveryAttempt
	for _, a := range f.created {
		if a.ReminderID == reminderID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeSettingsRepo struct {
	getFn    func(ctx context.Context) (domain.Settings, error)
	updateFn func(ctx context.Context, s domain.Settings) error
}

func (f *fakeSettingsRepo) Get(ctx context.Context) (domain.Settings, error) {
	if f.getFn != nil {
		return f.getFn(ctx)
	}
	return domain.Settings{QuietFrom: "22:00", QuietTo: "08:00", MaxPer2h: 3}, nil
}

func (f *fakeSettingsRepo) Update(ctx context.Context, s domain.Settings) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, s)
	}
	return nil
}

type fakeHistoryRepo struct {
	history []domain.NotificationRecord
	loadErr error
	saveErr error
	saves   int
}

func (f *fakeHistoryRepo) Load(ctx context.Context) ([]domain.NotificationRecord, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make([]domain.NotificationRecord, len(f.history))
	copy(out, f.history)
	return out, nil
}

func (f *fakeHistoryRepo) Save(ctx context.Context, history []domain.NotificationRecord) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.history = history
	return nil
}
