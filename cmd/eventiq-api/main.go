package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/eventiq/eventiq/pkg/cmd"
	"github.com/eventiq/eventiq/pkg/engine"
	"github.com/eventiq/eventiq/pkg/log"
	"github.com/eventiq/eventiq/pkg/otelhelper"
	"github.com/eventiq/eventiq/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "eventiq-api",
		Usage:                 "Create and manage approval workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "notify-channel",
				Usage:   "Notification channel (slog, bus, or a redis:// URL)",
				Value:   "slog",
				Sources: cli.EnvVars("NOTIFY_CHANNEL"),
			},
			&cli.IntFlag{
				Name:    "default-sla-hours",
				Usage:   "Fallback response budget for approval levels without one",
				Value:   72,
				Sources: cli.EnvVars("DEFAULT_SLA_HOURS"),
			},
			&cli.StringFlag{
				Name:    "admin-users",
				Usage:   "Comma-separated actors granted the admin role",
				Sources: cli.EnvVars("ADMIN_USERS"),
			},
			&cli.StringFlag{
				Name:    "expense-template-id",
				Usage:   "Template or template group expense approvals are submitted against",
				Sources: cli.EnvVars("EXPENSE_TEMPLATE_ID"),
			},
			&cli.FloatFlag{
				Name:    "expense-threshold",
				Usage:   "Expense amount at or above which an approval request opens",
				Value:   500,
				Sources: cli.EnvVars("EXPENSE_THRESHOLD"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Eventiq API")

			tracerProvider, err := otelhelper.InitTracer(ctx, "eventiq-api")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			notify := cmd.NewNotifier(command.String("notify-channel"), eventBus, logger)
			defer func() {
				if closer, ok := notify.(interface{ Close() error }); ok {
					if err := closer.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close notifier", "error", err)
					}
				}
			}()

			identity := engine.NewStaticIdentityProvider(nil)
			for _, actor := range strings.Split(command.String("admin-users"), ",") {
				if actor = strings.TrimSpace(actor); actor != "" {
					identity.Grant(actor, engine.AdminRole)
				}
			}

			eng := engine.New(engine.Config{
				DefaultSLAHours: int(command.Int("default-sla-hours")),
			}, persistence, identity, engine.SystemClock(), notify, eventBus, logger)

			api := NewAPI(logger, persistence, eng, identity, services.BackofficeConfig{
				ExpenseTemplateID: command.String("expense-template-id"),
				ExpenseThreshold:  command.Float("expense-threshold"),
			})

			err = api.Start(int(command.Int("port")))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
