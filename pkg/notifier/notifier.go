// Package notifier delivers notification intents produced by the workflow
// engine. Delivery is best-effort; the engine never depends on the result.
package notifier

import (
	"context"

	"github.com/eventiq/eventiq/pkg/models"
)

// Notifier sends a single notification intent. Implementations own the
// channel (log line, event bus message, redis stream entry); the engine
// only decides when and what.
type Notifier interface {
	Send(ctx context.Context, intent models.NotificationIntent) error
}
