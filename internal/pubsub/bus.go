package pubsub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
)

// subscriberBuffer bounds how far a slow subscriber may lag before events
// are dropped. Dropped events surface as a sequence gap, which the client
// resolves by re-fetching current status.
const subscriberBuffer = 16

// Bus fans status-change events out to current subscribers of an actor.
// Delivery is best effort: there is no queueing and no replay, because
// presence is a current-state signal that is always re-derivable.
type Bus interface {
	Publish(ctx context.Context, event models.StatusChangeEvent) error
	// Subscribe registers interest in one actor. The cancel func releases
	// the subscription; no event is delivered after it returns.
	Subscribe(actorID uuid.UUID) (<-chan models.StatusChangeEvent, func())
}

// Hub is the in-process Bus used by tests and single-node deployments.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[uuid.UUID]map[int]chan models.StatusChangeEvent
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[uuid.UUID]map[int]chan models.StatusChangeEvent),
	}
}

func (h *Hub) Publish(_ context.Context, event models.StatusChangeEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[event.ActorID] {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up; it will resync on the gap.
		}
	}
	return nil
}

func (h *Hub) Subscribe(actorID uuid.UUID) (<-chan models.StatusChangeEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID

	ch := make(chan models.StatusChangeEvent, subscriberBuffer)
	if h.subs[actorID] == nil {
		h.subs[actorID] = make(map[int]chan models.StatusChangeEvent)
	}
	h.subs[actorID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		if subs, ok := h.subs[actorID]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
				if len(subs) == 0 {
					delete(h.subs, actorID)
				}
			}
		}
	}

	return ch, cancel
}
