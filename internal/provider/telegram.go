package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
	tele "gopkg.in/telebot.v4"
)

const (
	TelegramProviderName   = "telegram"
	defaultTelegramTimeout = 10 * time.Second
)

// TelegramProvider sends reminders as chat messages through the Bot API.
type TelegramProvider struct {
	bot    *tele.Bot
	chatID int64
}

// NewTelegramProvider builds an offline bot client; apiURL may be empty to use
// the public Bot API.
func NewTelegramProvider(token string, chatID int64, apiURL string) (*TelegramProvider, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimSpace(apiURL),
		Token:   strings.TrimSpace(token),
		Client:  &http.Client{Timeout: defaultTelegramTimeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramProvider{bot: bot, chatID: chatID}, nil
}

func (p *TelegramProvider) Name() string { return TelegramProviderName }

func (p *TelegramProvider) Send(ctx context.Context, reminder domain.Reminder) (*ProviderResponse, error) {
	if p == nil || p.bot == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := reminder.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reminder: %w", err)
	}
	// The Bot API client has no context support; honor cancellation up front.
	if ctx != nil && ctx.Err() != nil {
		return nil, &ProviderError{
			Provider: TelegramProviderName,
			Message:  "telegram send canceled",
			Cause:    ctx.Err(),
		}
	}

	msg, err := p.bot.Send(&tele.Chat{ID: p.chatID}, telegramText(reminder))
	if err != nil {
		return nil, &ProviderError{
			Provider:  TelegramProviderName,
			Message:   "telegram send failed",
			Transient: isTransientTelegramError(err),
			Cause:     err,
		}
	}

	resp := &ProviderResponse{StatusCode: http.StatusOK}
	if msg != nil {
		resp.MessageID = strconv.Itoa(msg.ID)
	}
	return resp, nil
}

func telegramText(reminder domain.Reminder) string {
	title := strings.TrimSpace(reminder.Title)
	body := strings.TrimSpace(reminder.Body)

	switch {
	case title == "":
		return body
	case body == "":
		return title
	default:
		return title + "\n\n" + body
	}
}

func isTransientTelegramError(err error) bool {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}

	return !errors.Is(err, context.Canceled)
}
