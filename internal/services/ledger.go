package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/metrics"
	"github.com/marigunting/presenced/internal/models"
	"github.com/marigunting/presenced/internal/repositories"
	"github.com/rs/zerolog"
)

// ErrStaleSequence is returned for heartbeats carrying a sequence number
// below the highest already accepted for the actor. It marks a superseded
// reporter instance, not a fault.
var ErrStaleSequence = errors.New("stale heartbeat sequence")

// StatusPublisher receives exactly one call per genuine transition. The
// sequence was assigned by the store in the same atomic step as the flip,
// so even when delivery order scrambles, sequence order matches flip order.
type StatusPublisher interface {
	Publish(ctx context.Context, actorID uuid.UUID, previous, status models.PresenceStatus, seq int64) error
}

// Ledger is the authoritative liveness store. It accepts heartbeats, derives
// online/offline on read, and sweeps expired records in the background.
// Status is always computed from the last receipt time at read time; the
// storage layer's published marker exists only to edge-trigger events.
type Ledger struct {
	store     repositories.PresenceRepository
	publisher StatusPublisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	expiry     time.Duration
	sweepEvery time.Duration

	// now is swappable for tests.
	now func() time.Time
}

func NewLedger(
	store repositories.PresenceRepository,
	publisher StatusPublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
	expiry time.Duration,
	sweepEvery time.Duration,
) *Ledger {
	return &Ledger{
		store:      store,
		publisher:  publisher,
		metrics:    m,
		logger:     logger.With().Str("component", "ledger").Logger(),
		expiry:     expiry,
		sweepEvery: sweepEvery,
		now:        time.Now,
	}
}

// RecordHeartbeat accepts or rejects a heartbeat. Expiry is computed against
// the ledger's own receipt time; the device timestamp is stored for
// diagnostics only. When the heartbeat revives an expired or unknown actor,
// the offline->online transition is published before returning.
func (l *Ledger) RecordHeartbeat(ctx context.Context, actorID uuid.UUID, seq int64, deviceTS time.Time) error {
	result, err := l.store.RecordHeartbeat(ctx, actorID, seq, deviceTS, l.now())
	if err != nil {
		return fmt.Errorf("record heartbeat: %w", err)
	}

	if !result.Accepted {
		if l.metrics != nil {
			l.metrics.HeartbeatsRejected.WithLabelValues("stale-sequence").Inc()
		}
		l.logger.Debug().
			Str("actor_id", actorID.String()).
			Int64("sequence", seq).
			Msg("rejected stale heartbeat")
		return ErrStaleSequence
	}

	if l.metrics != nil {
		l.metrics.HeartbeatsAccepted.Inc()
	}

	if result.WentOnline {
		if err := l.publisher.Publish(ctx, actorID, models.StatusOffline, models.StatusOnline, result.EventSequence); err != nil {
			// The ledger state is already correct; subscribers recover via
			// their next status fetch.
			l.logger.Error().Err(err).Str("actor_id", actorID.String()).Msg("failed to publish online transition")
		}
	}

	return nil
}

// GetStatus derives the actor's current status. Unknown actors are offline.
func (l *Ledger) GetStatus(ctx context.Context, actorID uuid.UUID) (models.PresenceStatus, time.Time, error) {
	asOf := l.now()

	record, err := l.store.GetRecord(ctx, actorID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.StatusOffline, asOf, nil
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("get presence record: %w", err)
	}

	return record.StatusAt(asOf, l.expiry), asOf, nil
}

// Run executes the background sweep until ctx is cancelled. The cadence must
// be at most the expiry window so a missed heartbeat is reflected within one
// window.
func (l *Ledger) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	l.logger.Info().
		Dur("sweep_interval", l.sweepEvery).
		Dur("expiry_window", l.expiry).
		Msg("starting liveness sweep")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("liveness sweep stopped")
			return ctx.Err()
		case <-ticker.C:
			l.Sweep(ctx)
		}
	}
}

// Sweep runs one sweep cycle. Exposed for tests and for an initial sweep on
// startup; Run calls it on every tick.
func (l *Ledger) Sweep(ctx context.Context) {
	started := l.now()

	expired, err := l.store.SweepExpired(ctx, started, l.expiry)
	if err != nil {
		// Partial sweeps are fine: an actor missed this cycle flips on the
		// next one, still within the user-visible delay bound.
		l.logger.Error().Err(err).Msg("sweep failed")
	}

	for _, actor := range expired {
		if err := l.publisher.Publish(ctx, actor.ActorID, models.StatusOnline, models.StatusOffline, actor.EventSequence); err != nil {
			l.logger.Error().Err(err).Str("actor_id", actor.ActorID.String()).Msg("failed to publish offline transition")
		}
	}

	if l.metrics != nil {
		l.metrics.SweepDuration.Observe(l.now().Sub(started).Seconds())
	}
	if len(expired) > 0 {
		l.logger.Info().Int("expired", len(expired)).Msg("swept expired actors")
	}
}
