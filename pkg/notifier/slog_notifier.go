package notifier

import (
	"context"
	"log/slog"

	"github.com/eventiq/eventiq/pkg/models"
)

// SlogNotifier writes intents to the structured log. It is the default for
// local development and the fallback when no delivery channel is configured.
type SlogNotifier struct {
	logger *slog.Logger
}

func NewSlogNotifier(logger *slog.Logger) *SlogNotifier {
	return &SlogNotifier{logger: logger.With("module", "notifier")}
}

func (n *SlogNotifier) Send(ctx context.Context, intent models.NotificationIntent) error {
	n.logger.InfoContext(ctx, "notification",
		"intent_id", intent.ID,
		"kind", intent.Kind,
		"request_id", intent.RequestID,
		"reference", intent.Reference,
		"level", intent.Level,
		"recipient", intent.Recipient,
		"subject", intent.Subject)

	return nil
}
