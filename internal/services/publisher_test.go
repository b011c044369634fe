package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
	"github.com/marigunting/presenced/internal/pubsub"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	mu      sync.Mutex
	notices []models.OfflineNotice
}

func (n *captureNotifier) EnqueueOfflineNotice(_ context.Context, notice models.OfflineNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func TestPublisher_CarriesAssignedSequence(t *testing.T) {
	hub := pubsub.NewHub()
	publisher := NewPublisher(hub, nil, nil, zerolog.Nop())

	actorID := uuid.New()
	events, cancel := hub.Subscribe(actorID)
	defer cancel()

	// The sequence comes from the store's atomic flip; the publisher must
	// forward it untouched.
	require.NoError(t, publisher.Publish(context.Background(), actorID, models.StatusOffline, models.StatusOnline, 7))

	event := <-events
	assert.Equal(t, int64(7), event.Sequence)
	assert.Equal(t, actorID, event.ActorID)
	assert.Equal(t, models.StatusOffline, event.Previous)
	assert.Equal(t, models.StatusOnline, event.Status)
	assert.False(t, event.Timestamp.IsZero())
}

func TestPublisher_FansOutToAllSubscribers(t *testing.T) {
	hub := pubsub.NewHub()
	publisher := NewPublisher(hub, nil, nil, zerolog.Nop())

	actorID := uuid.New()
	first, cancelFirst := hub.Subscribe(actorID)
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe(actorID)
	defer cancelSecond()

	require.NoError(t, publisher.Publish(context.Background(), actorID, models.StatusOnline, models.StatusOffline, 1))

	assert.Equal(t, models.StatusOffline, (<-first).Status)
	assert.Equal(t, models.StatusOffline, (<-second).Status)
}

func TestPublisher_EnqueuesOfflineNotice(t *testing.T) {
	hub := pubsub.NewHub()
	notifier := &captureNotifier{}
	publisher := NewPublisher(hub, notifier, nil, zerolog.Nop())

	ctx := context.Background()
	actorID := uuid.New()

	require.NoError(t, publisher.Publish(ctx, actorID, models.StatusOffline, models.StatusOnline, 1))
	require.NoError(t, publisher.Publish(ctx, actorID, models.StatusOnline, models.StatusOffline, 2))

	// Only the offline transition wakes other sessions.
	require.Len(t, notifier.notices, 1)
	assert.Equal(t, actorID, notifier.notices[0].ActorID)
}
