package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/marigunting/presenced/internal/models"
	"github.com/marigunting/presenced/internal/repositories"
	"github.com/rs/zerolog"
)

// NoticeSource is the queue side the worker drains.
type NoticeSource interface {
	Consume(ctx context.Context, handler func(context.Context, models.OfflineNotice) error) error
}

// Worker turns offline notices into push notifications for the actor's
// other sessions. Actors without a registered token are skipped.
type Worker struct {
	source NoticeSource
	actors repositories.ActorRepository
	sender PushSender
	logger zerolog.Logger
}

func NewWorker(source NoticeSource, actors repositories.ActorRepository, sender PushSender, logger zerolog.Logger) *Worker {
	return &Worker{
		source: source,
		actors: actors,
		sender: sender,
		logger: logger.With().Str("component", "notifier").Logger(),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	return w.source.Consume(ctx, w.handle)
}

func (w *Worker) handle(ctx context.Context, notice models.OfflineNotice) error {
	actor, err := w.actors.GetByID(ctx, notice.ActorID)
	if errors.Is(err, repositories.ErrNotFound) {
		// Account deleted between the transition and delivery.
		w.logger.Debug().Str("actor_id", notice.ActorID.String()).Msg("actor no longer exists, skipping notice")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load actor: %w", err)
	}

	if actor.PushToken == nil || *actor.PushToken == "" {
		w.logger.Debug().Str("actor_id", actor.ID.String()).Msg("actor has no push token, skipping notice")
		return nil
	}

	title := "You appear offline"
	body := fmt.Sprintf("Your availability dropped at %s. Open the app to go back online.",
		notice.OccurredAt.Format("15:04"))

	if err := w.sender.Send(ctx, *actor.PushToken, title, body); err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}

	w.logger.Info().Str("actor_id", actor.ID.String()).Msg("sent offline push notification")
	return nil
}
