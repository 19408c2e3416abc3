package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kursadbilgin/reminder-engine/internal/app"
	"github.com/kursadbilgin/reminder-engine/internal/config"
	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/observability"
	"github.com/kursadbilgin/reminder-engine/internal/queue"
	"github.com/kursadbilgin/reminder-engine/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "reminderctl",
		Short:         "Inspect and operate the reminder engine store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(
		newSettingsCmd(opts),
		newHistoryCmd(opts),
		newEvaluateCmd(opts),
		newToastCmd(opts),
		newRunOnceCmd(opts),
		newAttemptsCmd(opts),
	)
	return root
}

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change quiet hours and the rate limit",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *service.ReminderService) error {
				settings, err := svc.Settings(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, settings)
			})
		},
	}

	var from, to string
	var maxPer2h int
	set := &cobra.Command{
		Use:   "set",
		Short: "Update settings; omitted flags keep their current value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *service.ReminderService) error {
				current, err := svc.Settings(ctx)
				if err != nil {
					return err
				}
				flags := cmd.Flags()
				if flags.Changed("from") {
					current.QuietFrom = from
				}
				if flags.Changed("to") {
					current.QuietTo = to
				}
				if flags.Changed("max") {
					current.MaxPer2h = maxPer2h
				}

				updated, err := svc.UpdateSettings(ctx, current)
				if err != nil {
					return err
				}
				return printJSON(cmd, updated)
			})
		},
	}
	set.Flags().StringVar(&from, "from", "", "quiet hours start, HH:MM")
	set.Flags().StringVar(&to, "to", "", "quiet hours end, HH:MM")
	set.Flags().IntVar(&maxPer2h, "max", 0, "maximum notifications per two hours")

	cmd.AddCommand(get, set)
	return cmd
}

type historyOutput struct {
	Data []domain.NotificationRecord `json:"data"`
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect delivered notifications",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print the notification history, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *service.ReminderService) error {
				history, err := svc.History(ctx)
				if err != nil {
					return err
				}
				out := historyOutput{Data: history}
				if out.Data == nil {
					out.Data = []domain.NotificationRecord{}
				}
				out.Meta.Total = len(out.Data)
				return printJSON(cmd, out)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the notification history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *service.ReminderService) error {
				if err := svc.ClearHistory(ctx); err != nil {
					return err
				}
				return printJSON(cmd, map[string]bool{"ok": true})
			})
		},
	}

	cmd.AddCommand(list, clearCmd)
	return cmd
}

type decisionOutput struct {
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	Delivered bool   `json:"delivered"`
	ID        string `json:"reminderId,omitempty"`
	DedupeKey string `json:"dedupeKey,omitempty"`
	Error     string `json:"error,omitempty"`
}

func newEvaluateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Run one gated tick now and deliver if allowed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *service.ReminderService) error {
				decision, tickErr := svc.Tick(ctx)
				out := decisionOutput{
					Allowed:   decision.Allowed,
					Reason:    decision.Reason.String(),
					Delivered: decision.Allowed && tickErr == nil,
				}
				if decision.Reminder != nil {
					out.ID = decision.Reminder.ID
					out.DedupeKey = decision.Reminder.DedupeKey
				}
				if tickErr != nil {
					out.Error = tickErr.Error()
				}
				if err := printJSON(cmd, out); err != nil {
					return err
				}
				return tickErr
			})
		},
	}
}

type deliveryOutput struct {
	OK         bool   `json:"ok"`
	ReminderID string `json:"reminderId"`
	MessageID  string `json:"messageId,omitempty"`
}

func newToastCmd(opts *rootOptions) *cobra.Command {
	var title, body string
	cmd := &cobra.Command{
		Use:   "toast",
		Short: "Deliver a notification immediately, bypassing the gate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *service.ReminderService) error {
				delivery, err := svc.SendNow(ctx, title, body)
				if err != nil {
					return err
				}
				return printDelivery(cmd, delivery)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "notification title")
	cmd.Flags().StringVar(&body, "body", "", "notification body")
	return cmd
}

func newRunOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once [input]",
		Short: "Compose a notification from input and deliver it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return withService(cmd, opts, func(ctx context.Context, svc *service.ReminderService) error {
				delivery, err := svc.RunOnce(ctx, input)
				if err != nil {
					return err
				}
				return printDelivery(cmd, delivery)
			})
		},
	}
}

type attemptsOutput struct {
	Data []domain.DeliveryAttempt `json:"data"`
	Meta struct {
		Total int `json:"total"`
	} `json:"meta"`
}

func newAttemptsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "attempts <reminder-id>",
		Short: "List audited delivery attempts of a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc *service.ReminderService) error {
				attempts, err := svc.Attempts(ctx, args[0])
				if err != nil {
					return err
				}
				out := attemptsOutput{Data: attempts}
				out.Meta.Total = len(attempts)
				return printJSON(cmd, out)
			})
		},
	}
}

// withService opens the configured backends for a single command.
func withService(
	cmd *cobra.Command,
	opts *rootOptions,
	fn func(ctx context.Context, svc *service.ReminderService) error,
) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.NewConsoleLogger(opts.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := res.Close(); closeErr != nil {
			logger.Warn("failed to close backends", zap.Error(closeErr))
		}
	}()

	var publisher queue.Publisher
	if cfg.DeliveryDriver == config.DeliveryRabbitMQ {
		client, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		rabbitPublisher := queue.NewRabbitMQPublisher(client)
		defer rabbitPublisher.Close()
		publisher = rabbitPublisher
	}

	p, err := app.NewProvider(cfg.DeliveryDriver, cfg, publisher, logger)
	if err != nil {
		return err
	}
	svc, err := app.NewReminderService(cfg, res, p, nil, logger)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

func printDelivery(cmd *cobra.Command, delivery *service.Delivery) error {
	return printJSON(cmd, deliveryOutput{
		OK:         true,
		ReminderID: delivery.Reminder.ID,
		MessageID:  delivery.MessageID,
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
