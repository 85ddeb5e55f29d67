package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/eventiq/eventiq/pkg/models"
)

// DefaultStream is the redis stream notifications land on when no stream
// name is configured.
const DefaultStream = "eventiq:notifications"

// RedisNotifier appends intents to a redis stream. A delivery worker reads
// the stream with a consumer group and fans out to the real channels.
type RedisNotifier struct {
	client redis.UniversalClient
	stream string
}

func NewRedisNotifier(client redis.UniversalClient, stream string) *RedisNotifier {
	if stream == "" {
		stream = DefaultStream
	}

	return &RedisNotifier{client: client, stream: stream}
}

func (n *RedisNotifier) Send(ctx context.Context, intent models.NotificationIntent) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	err = n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"intent_id":  intent.ID,
			"kind":       string(intent.Kind),
			"request_id": intent.RequestID,
			"payload":    payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append to stream %s: %w", n.stream, err)
	}

	return nil
}

// Close releases the underlying client connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
