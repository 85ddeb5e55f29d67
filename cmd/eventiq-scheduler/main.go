// Package main provides the Eventiq scheduler service, which drives the
// engine's reminder and escalation pass on a fixed cadence.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventiq/eventiq/pkg/cmd"
	"github.com/eventiq/eventiq/pkg/engine"
	"github.com/eventiq/eventiq/pkg/log"
	"github.com/eventiq/eventiq/pkg/otelhelper"
	"github.com/eventiq/eventiq/pkg/scheduler"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "eventiq-scheduler",
		Usage:                 "Start the Eventiq reminder and escalation scheduler",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "scheduler-id",
				Aliases: []string{"id"},
				Usage:   "Custom scheduler ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SCHEDULER_ID"),
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
			&cli.DurationFlag{
				Name:    "tick-interval",
				Usage:   "How often the overdue pass runs",
				Value:   time.Minute,
				Sources: cli.EnvVars("TICK_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "tick-cron",
				Usage:   "Cron expression for the overdue pass (overrides tick-interval)",
				Sources: cli.EnvVars("TICK_CRON"),
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

			tracerProvider, err := otelhelper.InitTracer(ctx, "eventiq-scheduler")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			schedulerID := command.String("scheduler-id")
			if schedulerID == "" {
				schedulerID = fmt.Sprintf("scheduler-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("eventiq-scheduler").With("scheduler_id", schedulerID)

			logger.InfoContext(ctx, "Initializing Eventiq Scheduler")

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

			clock := engine.SystemClock()
			eng := engine.New(engine.Config{}, persistence,
				engine.NewStaticIdentityProvider(nil), clock, notify, eventBus, logger)

			sched, err := scheduler.New(scheduler.Config{
				Interval:       command.Duration("tick-interval"),
				CronExpression: command.String("tick-cron"),
			}, eng, clock, notify, logger)
			if err != nil {
				return fmt.Errorf("failed to create scheduler: %w", err)
			}

			if err := sched.Start(ctx); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-ctx.Done():
			case <-stop:
			}

			logger.InfoContext(ctx, "Shutting down scheduler")

			if err := sched.Stop(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to stop scheduler", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
