package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/metrics"
	"github.com/marigunting/presenced/internal/models"
	"github.com/marigunting/presenced/internal/pubsub"
	"github.com/rs/zerolog"
)

// OfflineNotifier enqueues a push-notification job for an actor that
// dropped offline, so devices with no live subscription can still be woken.
type OfflineNotifier interface {
	EnqueueOfflineNotice(ctx context.Context, notice models.OfflineNotice) error
}

// Publisher fans transitions out to current subscribers. Called only by the
// ledger, once per genuine transition, with the event sequence the store
// assigned atomically with the flip.
type Publisher struct {
	bus      pubsub.Bus
	notifier OfflineNotifier // optional
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewPublisher(
	bus pubsub.Bus,
	notifier OfflineNotifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Publisher {
	return &Publisher{
		bus:      bus,
		notifier: notifier,
		metrics:  m,
		logger:   logger.With().Str("component", "publisher").Logger(),
		now:      time.Now,
	}
}

func (p *Publisher) Publish(ctx context.Context, actorID uuid.UUID, previous, status models.PresenceStatus, seq int64) error {
	event := models.StatusChangeEvent{
		ActorID:   actorID,
		Previous:  previous,
		Status:    status,
		Sequence:  seq,
		Timestamp: p.now(),
	}

	if err := p.bus.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	if p.metrics != nil {
		p.metrics.Transitions.WithLabelValues(string(status)).Inc()
	}

	p.logger.Info().
		Str("actor_id", actorID.String()).
		Str("previous", string(previous)).
		Str("status", string(status)).
		Int64("sequence", seq).
		Msg("published status transition")

	if status == models.StatusOffline && p.notifier != nil {
		notice := models.OfflineNotice{ActorID: actorID, OccurredAt: event.Timestamp}
		if err := p.notifier.EnqueueOfflineNotice(ctx, notice); err != nil {
			// Push wake-ups are best effort on top of the realtime channel.
			p.logger.Warn().Err(err).Str("actor_id", actorID.String()).Msg("failed to enqueue offline notice")
		}
	}

	return nil
}
