package provider

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"go.uber.org/zap"
)

const LogProviderName = "log"

// LogProvider writes the toast to the log. Used headless and in development.
type LogProvider struct {
	logger *zap.Logger
}

func NewLogProvider(logger *zap.Logger) *LogProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Name() string { return LogProviderName }

func (p *LogProvider) Send(ctx context.Context, reminder domain.Reminder) (*ProviderResponse, error) {
	if err := reminder.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reminder: %w", err)
	}

	observability.WithContextLogger(p.logger, ctx).Info("reminder toast",
		zap.String("reminderId", reminder.ID),
		zap.String("dedupeKey", reminder.DedupeKey),
		zap.String("title", reminder.Title),
		zap.String("body", reminder.Body),
	)

	return &ProviderResponse{MessageID: reminder.ID}, nil
}
