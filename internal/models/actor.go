package models

import (
	"time"

	"github.com/google/uuid"
)

// Actor is a tracked participant (a barber). Accounts are created by the
// onboarding flow; this subsystem only reads them, except for the push token.
type Actor struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	PushToken    *string    `json:"push_token,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}
