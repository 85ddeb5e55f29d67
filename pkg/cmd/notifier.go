package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/eventiq/eventiq/pkg/eventbus"
	"github.com/eventiq/eventiq/pkg/notifier"
	"github.com/redis/go-redis/v9"
)

// NewNotifier creates a notification channel from a channel URL:
// redis://host:port streams intents into Redis, "bus" publishes them on the
// event bus, anything else logs them.
func NewNotifier(channelURL string, bus eventbus.EventBus, logger *slog.Logger) notifier.Notifier {
	switch {
	case strings.HasPrefix(channelURL, "redis://"):
		opts, err := redis.ParseURL(channelURL)
		if err != nil {
			panic(fmt.Errorf("failed to parse Redis notification URL: %w", err))
		}

		return notifier.NewRedisNotifier(redis.NewClient(opts), "")
	case channelURL == "bus":
		return notifier.NewEventBusNotifier(bus)
	default:
		return notifier.NewSlogNotifier(logger)
	}
}
