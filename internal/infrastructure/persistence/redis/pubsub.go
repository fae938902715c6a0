package redis

import (
	"context"

	"github.com/campus-hub/campus-course-hub/internal/infrastructure/messaging"
)

// ══════════════════════════════════════════════════════════════════════════════
// PUB/SUB ADAPTER
// Adapts the go-redis client to the messaging.RedisClient interface so the
// Redis event bus can run over the same connection as the cache.
// ══════════════════════════════════════════════════════════════════════════════

// PubSubAdapter implements messaging.RedisClient over a Cache connection.
type PubSubAdapter struct {
	cache *Cache
}

// NewPubSubAdapter creates a new PubSubAdapter.
func NewPubSubAdapter(cache *Cache) *PubSubAdapter {
	return &PubSubAdapter{cache: cache}
}

// Publish sends a message to a channel.
func (a *PubSubAdapter) Publish(ctx context.Context, channel string, message interface{}) error {
	return a.cache.Client().Publish(ctx, channel, message).Err()
}

// Subscribe subscribes to channels and returns a message stream. The stream
// closes when the context is cancelled.
func (a *PubSubAdapter) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	pubsub := a.cache.Client().Subscribe(ctx, channels...)

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the underlying connection is owned by the Cache.
func (a *PubSubAdapter) Close() error {
	return nil
}
