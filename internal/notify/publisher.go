package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yegara-dev/community-api/internal/models"
)

// Publisher pushes realtime events to a user's channel.
type Publisher interface {
	Publish(ctx context.Context, userID string, event models.PushEvent) error
}

// RedisPublisher fans realtime events out over Redis pub/sub. Each user has
// a dedicated channel that connected clients subscribe to.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher builds a publisher on the shared Redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// UserChannel returns the pub/sub channel name for a user.
func UserChannel(userID string) string {
	return "notify:user:" + userID
}

// Publish serialises the event and publishes it to the user's channel. A nil
// client degrades to a no-op so environments without Redis still run.
func (p *RedisPublisher) Publish(ctx context.Context, userID string, event models.PushEvent) error {
	if p == nil || p.client == nil || userID == "" {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal push event: %w", err)
	}
	if err := p.client.Publish(ctx, UserChannel(userID), payload).Err(); err != nil {
		return fmt.Errorf("publish push event: %w", err)
	}
	return nil
}
