package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
)

type ActorRepository interface {
	Create(ctx context.Context, actor *models.Actor) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Actor, error)
	GetByEmail(ctx context.Context, email string) (*models.Actor, error)
	UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error
}

// HeartbeatResult reports what an accepted heartbeat changed.
type HeartbeatResult struct {
	Accepted bool
	// WentOnline is true when the heartbeat flipped the actor's published
	// state to online, i.e. the caller owes subscribers exactly one
	// offline->online event.
	WentOnline bool
	// EventSequence is the per-actor event sequence assigned to the flip,
	// set only when WentOnline. It is drawn in the same atomic step as the
	// flip itself, so sequence order always matches flip order even when a
	// heartbeat races a sweep.
	EventSequence int64
}

// ExpiredActor pairs a swept actor with the event sequence assigned to its
// offline transition.
type ExpiredActor struct {
	ActorID       uuid.UUID
	EventSequence int64
}

// PresenceRepository is the storage behind the liveness ledger. Implementations
// must serialize heartbeat acceptance and sweep flips per actor: a heartbeat
// racing a sweep must never yield two conflicting transitions, and the event
// sequences assigned to the two flips must order them the way they happened.
type PresenceRepository interface {
	RecordHeartbeat(ctx context.Context, actorID uuid.UUID, seq int64, deviceTS, now time.Time) (HeartbeatResult, error)
	GetRecord(ctx context.Context, actorID uuid.UUID) (*models.PresenceRecord, error)
	// SweepExpired flips the published state to offline for every actor whose
	// last heartbeat is older than the expiry window, and returns those actors
	// with their assigned event sequences. Each expiry is returned exactly
	// once across repeated sweeps.
	SweepExpired(ctx context.Context, now time.Time, expiry time.Duration) ([]ExpiredActor, error)
}
