package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const eventChannelPrefix = "presence:events:"

// RedisBus carries status-change events over Redis pub/sub so every node's
// websocket subscribers see transitions regardless of which node's sweep
// detected them. Redis pub/sub has the exact delivery contract the design
// wants: fire-and-forget to currently connected subscribers, no backlog.
type RedisBus struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisBus(client *redis.Client, logger zerolog.Logger) *RedisBus {
	return &RedisBus{
		client: client,
		logger: logger.With().Str("component", "redis_bus").Logger(),
	}
}

func (b *RedisBus) Publish(ctx context.Context, event models.StatusChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, eventChannel(event.ActorID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(actorID uuid.UUID) (<-chan models.StatusChangeEvent, func()) {
	sub := b.client.Subscribe(context.Background(), eventChannel(actorID))
	out := make(chan models.StatusChangeEvent, subscriberBuffer)

	go func() {
		defer close(out)

		for msg := range sub.Channel() {
			var event models.StatusChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				// Malformed payloads are dropped; the consumer treats the
				// resulting sequence gap as a resync trigger.
				b.logger.Warn().Err(err).Str("actor_id", actorID.String()).Msg("dropping malformed event payload")
				continue
			}

			select {
			case out <- event:
			default:
				b.logger.Warn().Str("actor_id", actorID.String()).Msg("subscriber lagging, dropping event")
			}
		}
	}()

	cancel := func() {
		_ = sub.Close()
	}

	return out, cancel
}

func eventChannel(actorID uuid.UUID) string {
	return eventChannelPrefix + actorID.String()
}
