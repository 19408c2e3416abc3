package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/kursadbilgin/reminder-engine/internal/service"
)

type ReminderService interface {
	Tick(ctx context.Context) (domain.Decision, error)
	RunOnce(ctx context.Context, input string) (*service.Delivery, error)
	SendNow(ctx context.Context, title, body string) (*service.Delivery, error)
	Settings(ctx context.Context) (domain.Settings, error)
	UpdateSettings(ctx context.Context, settings domain.Settings) (domain.Settings, error)
	History(ctx context.Context) ([]domain.NotificationRecord, error)
	ClearHistory(ctx context.Context) error
	Attempts(ctx context.Context, reminderID string) ([]domain.DeliveryAttempt, error)
}

type ReminderHandler struct {
	service  ReminderService
	validate *validator.Validate
}

func NewReminderHandler(service ReminderService) (*ReminderHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("reminder service is required")
	}
	return &ReminderHandler{service: service, validate: validator.New()}, nil
}

func RegisterReminderRoutes(router fiber.Router, service ReminderService) error {
	h, err := NewReminderHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/reminders/evaluate", h.Evaluate)
	v1.Post("/reminders/run-once", h.RunOnce)
	v1.Get("/reminders/:id/attempts", h.ListAttempts)
	v1.Post("/toasts", h.SendToast)
	v1.Get("/settings", h.GetSettings)
	v1.Put("/settings", h.UpdateSettings)
	v1.Get("/history", h.ListHistory)
	v1.Delete("/history", h.ClearHistory)

	return nil
}

type runOnceRequest struct {
	Input string `json:"input"`
}

type toastRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type settingsRequest struct {
	QuietFrom string `json:"quietFrom" validate:"required,len=5,datetime=15:04"`
	QuietTo   string `json:"quietTo" validate:"required,len=5,datetime=15:04"`
	MaxPer2h  *int   `json:"maxPer2h" validate:"required,min=0"`
}

type reminderResponse struct {
	ID        string `json:"id"`
	DedupeKey string `json:"dedupeKey,omitempty"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

type evaluateResponse struct {
	Allowed   bool              `json:"allowed"`
	Reason    string            `json:"reason,omitempty"`
	Delivered bool              `json:"delivered"`
	Reminder  *reminderResponse `json:"reminder,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type deliveryResponse struct {
	OK         bool   `json:"ok"`
	ReminderID string `json:"reminderId,omitempty"`
	MessageID  string `json:"messageId,omitempty"`
	Error      string `json:"error,omitempty"`
}

type historyResponse struct {
	Data []domain.NotificationRecord `json:"data"`
	Meta historyMeta                 `json:"meta"`
}

type historyMeta struct {
	Total int `json:"total"`
}

type attemptResponse struct {
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

type attemptListResponse struct {
	Data []attemptResponse `json:"data"`
	Meta historyMeta       `json:"meta"`
}

func (h *ReminderHandler) Evaluate(c *fiber.Ctx) error {
	decision, err := h.service.Tick(requestContext(c))

	resp := evaluateResponse{
		Allowed:   decision.Allowed,
		Reason:    decision.Reason.String(),
		Delivered: decision.Allowed && err == nil,
		Reminder:  toReminderResponse(decision.Reminder),
	}

	if err != nil {
		if !errors.Is(err, domain.ErrDeliveryFailed) {
			return toHTTPError(err)
		}
		resp.Error = err.Error()
		return c.Status(fiber.StatusBadGateway).JSON(resp)
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *ReminderHandler) RunOnce(c *fiber.Ctx) error {
	var req runOnceRequest
	if err := parseOptionalBody(c, &req); err != nil {
		return err
	}

	delivery, err := h.service.RunOnce(requestContext(c), req.Input)
	return writeDelivery(c, delivery, err)
}

func (h *ReminderHandler) SendToast(c *fiber.Ctx) error {
	var req toastRequest
	if err := parseOptionalBody(c, &req); err != nil {
		return err
	}

	delivery, err := h.service.SendNow(requestContext(c), req.Title, req.Body)
	return writeDelivery(c, delivery, err)
}

func (h *ReminderHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.service.Settings(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(settings)
}

func (h *ReminderHandler) UpdateSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, validationMessage(err))
	}

	updated, err := h.service.UpdateSettings(requestContext(c), domain.Settings{
		QuietFrom: strings.TrimSpace(req.QuietFrom),
		QuietTo:   strings.TrimSpace(req.QuietTo),
		MaxPer2h:  *req.MaxPer2h,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(updated)
}

func (h *ReminderHandler) ListHistory(c *fiber.Ctx) error {
	history, err := h.service.History(requestContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	if history == nil {
		history = []domain.NotificationRecord{}
	}

	return c.Status(fiber.StatusOK).JSON(historyResponse{
		Data: history,
		Meta: historyMeta{Total: len(history)},
	})
}

func (h *ReminderHandler) ListAttempts(c *fiber.Ctx) error {
	attempts, err := h.service.Attempts(requestContext(c), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		data = append(data, attemptResponse{
			ID:         a.ID,
			ReminderID: a.ReminderID,
			DedupeKey:  a.DedupeKey,
			Provider:   a.Provider,
			Success:    a.Success,
			StatusCode: a.StatusCode,
			MessageID:  a.MessageID,
			Error:      a.Error,
			CreatedAt:  a.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(attemptListResponse{
		Data: data,
		Meta: historyMeta{Total: len(data)},
	})
}

func (h *ReminderHandler) ClearHistory(c *fiber.Ctx) error {
	if err := h.service.ClearHistory(requestContext(c)); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func writeDelivery(c *fiber.Ctx, delivery *service.Delivery, err error) error {
	if err != nil {
		if errors.Is(err, domain.ErrDeliveryFailed) {
			return c.Status(fiber.StatusBadGateway).JSON(deliveryResponse{Error: err.Error()})
		}
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(deliveryResponse{
		OK:         true,
		ReminderID: delivery.Reminder.ID,
		MessageID:  delivery.MessageID,
	})
}

// parseOptionalBody accepts an empty body as the zero request.
func parseOptionalBody(c *fiber.Ctx, out any) error {
	if len(strings.TrimSpace(string(c.Body()))) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return nil
}

func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		switch fieldErr.Field() {
		case "QuietFrom", "QuietTo":
			parts = append(parts, fmt.Sprintf("%s must be HH:MM (24h)", lowerFirst(fieldErr.Field())))
		case "MaxPer2h":
			parts = append(parts, "maxPer2h must be an integer >= 0")
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fieldErr.Field()))
		}
	}
	return strings.Join(parts, "; ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id := requestCorrelationID(c); id != "" {
		ctx = observability.WithCorrelationID(ctx, id)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toReminderResponse(r *domain.Reminder) *reminderResponse {
	if r == nil {
		return nil
	}
	return &reminderResponse{
		ID:        r.ID,
		DedupeKey: r.DedupeKey,
		Title:     r.Title,
		Body:      r.Body,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDeliveryFailed):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}
