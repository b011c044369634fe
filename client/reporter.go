package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const DefaultHeartbeatInterval = 30 * time.Second

// Reporter periodically asserts "I am alive" for one actor. It runs
// independently of whether the app UI is foregrounded; on platforms that
// kill background processes the host restarts it, and the durable sequence
// store keeps the new instance's sequence numbers above the old one's.
//
// The reporter never infers its own online/offline state from send results:
// only the backend's derived view is authoritative.
type Reporter struct {
	api      HeartbeatAPI
	seq      SequenceStore
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	authErrs chan error
}

func NewReporter(api HeartbeatAPI, seq SequenceStore, interval time.Duration, logger zerolog.Logger) *Reporter {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Reporter{
		api:      api,
		seq:      seq,
		interval: interval,
		logger:   logger.With().Str("component", "heartbeat_reporter").Logger(),
		authErrs: make(chan error, 1),
	}
}

// Start begins periodic reporting for the actor. The first heartbeat is
// sent immediately; subsequent ones on the fixed interval. Calling Start
// while running restarts the session.
func (r *Reporter) Start(ctx context.Context, actorID uuid.UUID, credential string) {
	r.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	r.logger.Info().Str("actor_id", actorID.String()).Msg("starting heartbeat reporter")

	go r.run(runCtx, done, actorID, credential)
}

// Stop ends reporting. No heartbeat is sent after Stop returns.
func (r *Reporter) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.cancel = nil
	r.done = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// AuthErrors surfaces credential rejection. Receiving on it means reporting
// has halted and the caller must re-authenticate before restarting.
func (r *Reporter) AuthErrors() <-chan error {
	return r.authErrs
}

func (r *Reporter) run(ctx context.Context, done chan struct{}, actorID uuid.UUID, credential string) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if halted := r.beat(ctx, actorID, credential); halted {
		return
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Str("actor_id", actorID.String()).Msg("heartbeat reporter stopped")
			return
		case <-ticker.C:
			if halted := r.beat(ctx, actorID, credential); halted {
				return
			}
		}
	}
}

// beat sends one heartbeat. Transient failures are logged and left for the
// next scheduled tick; an immediate retry would amplify a backend outage
// into a thundering herd. Returns true when reporting must halt.
func (r *Reporter) beat(ctx context.Context, actorID uuid.UUID, credential string) bool {
	seq, err := r.seq.Next()
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to advance heartbeat sequence")
		return false
	}

	err = r.api.SendHeartbeat(ctx, credential, Heartbeat{
		ActorID:  actorID,
		Sequence: seq,
		DeviceTS: time.Now(),
	})

	switch {
	case err == nil:
		r.logger.Debug().Int64("sequence", seq).Msg("heartbeat sent")
		return false
	case errors.Is(err, ErrAuthRequired):
		r.logger.Warn().Msg("credential rejected, halting heartbeat reporter")
		select {
		case r.authErrs <- err:
		default:
		}
		return true
	case errors.Is(err, ErrStaleSequence):
		// A fresher reporter instance owns this actor now; keep ticking
		// harmlessly, the host will tear this process down.
		r.logger.Warn().Int64("sequence", seq).Msg("heartbeat superseded by newer reporter")
		return false
	case errors.Is(err, context.Canceled):
		return true
	default:
		r.logger.Warn().Err(err).Msg("heartbeat failed, retrying on next tick")
		return false
	}
}
