package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
	"github.com/marigunting/presenced/internal/repositories"
	"github.com/marigunting/presenced/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthService issues and verifies the credential every authenticated update
// (heartbeats, push-token writes) carries. Rotation and revocation live with
// the identity provider; here they surface only as verification failures.
type AuthService struct {
	actorRepo repositories.ActorRepository
	jwtSecret string
	jwtExpiry time.Duration
}

type TokenClaims struct {
	ActorID uuid.UUID
}

type LoginResponse struct {
	Token     string
	ExpiresAt time.Time
	ActorID   uuid.UUID
}

func NewAuthService(actorRepo repositories.ActorRepository, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		actorRepo: actorRepo,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) error {
	existing, err := s.actorRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return ErrEmailExists
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	actor := &models.Actor{
		Name:         name,
		Email:        email,
		PasswordHash: hashedPassword,
	}

	if err := s.actorRepo.Create(ctx, actor); err != nil {
		return fmt.Errorf("failed to create actor: %w", err)
	}

	return nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	actor, err := s.actorRepo.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}

	if !utils.CheckPassword(actor.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.jwtExpiry)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": actor.ID.String(),
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	})

	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &LoginResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		ActorID:   actor.ID,
	}, nil
}

func (s *AuthService) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}

	actorID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{ActorID: actorID}, nil
}
