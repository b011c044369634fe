package client

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// PushTokenRegistrar stores the device push token on the actor's profile
// record, using the same authenticated-update path as the reporter. The
// backend uses the token to wake sessions that hold no live subscription.
type PushTokenRegistrar struct {
	api    ProfileAPI
	logger zerolog.Logger
}

func NewPushTokenRegistrar(api ProfileAPI, logger zerolog.Logger) *PushTokenRegistrar {
	return &PushTokenRegistrar{
		api:    api,
		logger: logger.With().Str("component", "push_token_registrar").Logger(),
	}
}

func (r *PushTokenRegistrar) Register(ctx context.Context, credential, token string) error {
	if token == "" {
		return fmt.Errorf("push token is empty")
	}

	if err := r.api.UpdatePushToken(ctx, credential, token); err != nil {
		return fmt.Errorf("failed to register push token: %w", err)
	}

	r.logger.Info().Msg("registered push token")
	return nil
}
