package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marigunting/presenced/internal/models"
)

var ErrNotFound = errors.New("not found")

type PostgresActorRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresActorRepository(pool *pgxpool.Pool) *PostgresActorRepository {
	return &PostgresActorRepository{pool: pool}
}

func (r *PostgresActorRepository) Create(ctx context.Context, actor *models.Actor) error {
	query := `INSERT INTO actors (name, email, password_hash)
              VALUES ($1, $2, $3)
              RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, actor.Name, actor.Email, actor.PasswordHash).
		Scan(&actor.ID, &actor.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create actor: %w", err)
	}
	return nil
}

func (r *PostgresActorRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Actor, error) {
	query := `SELECT id, name, email, password_hash, push_token, created_at, updated_at
	          FROM actors WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)

	var actor models.Actor
	err := row.Scan(&actor.ID, &actor.Name, &actor.Email, &actor.PasswordHash, &actor.PushToken, &actor.CreatedAt, &actor.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}
	return &actor, nil
}

func (r *PostgresActorRepository) GetByEmail(ctx context.Context, email string) (*models.Actor, error) {
	query := `SELECT id, name, email, password_hash, push_token, created_at, updated_at
	          FROM actors WHERE email = $1`

	row := r.pool.QueryRow(ctx, query, email)

	var actor models.Actor
	err := row.Scan(&actor.ID, &actor.Name, &actor.Email, &actor.PasswordHash, &actor.PushToken, &actor.CreatedAt, &actor.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}
	return &actor, nil
}

func (r *PostgresActorRepository) UpdatePushToken(ctx context.Context, id uuid.UUID, token string) error {
	query := `UPDATE actors SET push_token = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, token, id)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
