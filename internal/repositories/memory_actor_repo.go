package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
)

// MemoryActorRepository backs tests and local development.
type MemoryActorRepository struct {
	mu     sync.RWMutex
	actors map[uuid.UUID]models.Actor
}

func NewMemoryActorRepository() *MemoryActorRepository {
	return &MemoryActorRepository{actors: make(map[uuid.UUID]models.Actor)}
}

func (r *MemoryActorRepository) Create(_ context.Context, actor *models.Actor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actor.ID == uuid.Nil {
		actor.ID = uuid.New()
	}
	actor.CreatedAt = time.Now()
	r.actors[actor.ID] = *actor
	return nil
}

func (r *MemoryActorRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actor, ok := r.actors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &actor, nil
}

func (r *MemoryActorRepository) GetByEmail(_ context.Context, email string) (*models.Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, actor := range r.actors {
		if actor.Email == email {
			a := actor
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryActorRepository) UpdatePushToken(_ context.Context, id uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	actor, ok := r.actors[id]
	if !ok {
		return ErrNotFound
	}

	now := time.Now()
	actor.PushToken = &token
	actor.UpdatedAt = &now
	r.actors[id] = actor
	return nil
}
