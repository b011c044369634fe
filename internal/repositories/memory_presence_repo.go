package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
)

// MemoryPresenceRepository keeps the liveness ledger in process memory.
// Used by tests and single-node deployments. Per-actor serialization is a
// mutex per entry; unrelated actors never contend.
type MemoryPresenceRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*memoryPresenceEntry
}

type memoryPresenceEntry struct {
	mu        sync.Mutex
	record    models.PresenceRecord
	published models.PresenceStatus
	eventSeq  int64
}

func NewMemoryPresenceRepository() *MemoryPresenceRepository {
	return &MemoryPresenceRepository{
		entries: make(map[uuid.UUID]*memoryPresenceEntry),
	}
}

func (r *MemoryPresenceRepository) entry(actorID uuid.UUID) *memoryPresenceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[actorID]
	if !ok {
		e = &memoryPresenceEntry{
			record:    models.PresenceRecord{ActorID: actorID},
			published: models.StatusOffline,
		}
		r.entries[actorID] = e
	}
	return e
}

func (r *MemoryPresenceRepository) RecordHeartbeat(_ context.Context, actorID uuid.UUID, seq int64, deviceTS, now time.Time) (HeartbeatResult, error) {
	e := r.entry(actorID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.record.LastSeen.IsZero() && seq < e.record.Sequence {
		return HeartbeatResult{}, nil
	}

	result := HeartbeatResult{Accepted: true}
	if e.published != models.StatusOnline {
		// Sequence and flip move together under the entry lock, so a racing
		// sweep can never order its flip ahead of this one.
		e.eventSeq++
		result.WentOnline = true
		result.EventSequence = e.eventSeq
	}

	e.record.Sequence = seq
	e.record.LastSeen = time.Unix(now.Unix(), 0)
	e.record.DeviceTS = time.Unix(deviceTS.Unix(), 0)
	e.published = models.StatusOnline

	return result, nil
}

func (r *MemoryPresenceRepository) GetRecord(_ context.Context, actorID uuid.UUID) (*models.PresenceRecord, error) {
	r.mu.RLock()
	e, ok := r.entries[actorID]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.record.LastSeen.IsZero() {
		return nil, ErrNotFound
	}

	record := e.record
	return &record, nil
}

func (r *MemoryPresenceRepository) SweepExpired(_ context.Context, now time.Time, expiry time.Duration) ([]ExpiredActor, error) {
	r.mu.RLock()
	candidates := make([]*memoryPresenceEntry, 0, len(r.entries))
	for _, e := range r.entries {
		candidates = append(candidates, e)
	}
	r.mu.RUnlock()

	var expired []ExpiredActor
	for _, e := range candidates {
		e.mu.Lock()
		if e.published == models.StatusOnline &&
			now.Unix()-e.record.LastSeen.Unix() >= int64(expiry.Seconds()) {
			e.published = models.StatusOffline
			e.eventSeq++
			expired = append(expired, ExpiredActor{ActorID: e.record.ActorID, EventSequence: e.eventSeq})
		}
		e.mu.Unlock()
	}

	return expired, nil
}
