package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "dashbff:events"

// RedisBridge relays broadcasts through a Redis channel so that every BFF
// instance delivers them to its own subscribers.
type RedisBridge struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

func NewRedisBridge(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBridge{client: client, channel: channel, hub: hub, logger: logger}
}

// Run forwards channel messages to the local hub until ctx is done.
func (b *RedisBridge) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("event bridge subscribed", "channel", b.channel)

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.hub.Publish([]byte(msg.Payload))
		}
	}
}

// Broadcast publishes payload to all instances. The count is the number of
// subscribers connected to this instance.
func (b *RedisBridge) Broadcast(ctx context.Context, payload []byte) (int, error) {
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return 0, fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return b.hub.Count(), nil
}
