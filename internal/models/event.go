package models

import (
	"time"

	"github.com/google/uuid"
)

// StatusChangeEvent is published once per genuine online/offline transition.
// Sequence is monotonic per actor; subscribers that observe a gap must
// re-fetch the current status instead of trusting the delta.
type StatusChangeEvent struct {
	ActorID   uuid.UUID      `json:"actor_id"`
	Previous  PresenceStatus `json:"previous"`
	Status    PresenceStatus `json:"status"`
	Sequence  int64          `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
}

// OfflineNotice is the push-notification job enqueued when an actor drops
// offline, consumed by the notifier worker.
type OfflineNotice struct {
	ActorID    uuid.UUID `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
