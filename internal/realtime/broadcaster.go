package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cabanaresort/reservations-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Channel naming. Every event goes to EventsChannel; role-targeted events
// additionally go to "role.<role>".
const (
	EventsChannel     = "reservations.events"
	roleChannelPrefix = "role."
)

// Envelope is the wire format published to Redis
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

// RedisBroadcaster pushes lifecycle events to connected clients over Redis
// pub/sub. Delivery is best effort: publish errors are logged and dropped.
type RedisBroadcaster struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisClient creates a Redis client from configuration
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisBroadcaster creates a broadcaster on an existing client
func NewRedisBroadcaster(client *redis.Client, logger *logrus.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, logger: logger}
}

// Ping verifies the Redis connection
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Broadcast publishes an event on the shared events channel
func (b *RedisBroadcaster) Broadcast(event string, payload interface{}) error {
	return b.publish(EventsChannel, event, payload)
}

// SendToRole publishes an event on a role-scoped channel
func (b *RedisBroadcaster) SendToRole(role, event string, payload interface{}) error {
	return b.publish(roleChannelPrefix+role, event, payload)
}

func (b *RedisBroadcaster) publish(channel, event string, payload interface{}) error {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the underlying client
func (b *RedisBroadcaster) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}
