package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
	"github.com/rs/zerolog"
)

// StatusUpdate is what a subscription callback receives. Resync marks a
// value recovered via a fresh status fetch after a missed event, as opposed
// to a confirmed transition, for consumers that care about the difference.
type StatusUpdate struct {
	ActorID uuid.UUID
	Status  models.PresenceStatus
	Resync  bool
}

// Subscriber maintains locally cached presence for actors of interest.
// Each Subscribe call is independent and owns its own stream.
type Subscriber struct {
	fetcher StatusFetcher
	dialer  StreamDialer
	logger  zerolog.Logger
}

func NewSubscriber(fetcher StatusFetcher, dialer StreamDialer, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		fetcher: fetcher,
		dialer:  dialer,
		logger:  logger.With().Str("component", "presence_subscriber").Logger(),
	}
}

// Handle is one live subscription.
type Handle struct {
	mu       sync.Mutex
	closed   bool
	onChange func(StatusUpdate)

	cancel context.CancelFunc
	stream EventStream
	done   chan struct{}
}

// deliver invokes the callback unless the handle was unsubscribed. The
// mutex makes "no callback after Unsubscribe returns" hold.
func (h *Handle) deliver(update StatusUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.onChange(update)
}

// Unsubscribe releases the subscription. It blocks until the event loop has
// exited, so no callback fires after it returns.
func (h *Handle) Unsubscribe() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	_ = h.stream.Close()
	<-h.done
}

// Subscribe registers a callback for one actor. The callback is invoked once
// synchronously with the current status as a baseline, so a late subscriber
// always starts with a value; then once per event, in sequence order.
func (s *Subscriber) Subscribe(ctx context.Context, actorID uuid.UUID, onChange func(StatusUpdate)) (*Handle, error) {
	// The stream must be open before the baseline fetch: a transition that
	// fires during the fetch then lands on the stream instead of falling
	// into the window between the two.
	stream, err := s.dialer.DialEvents(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}

	status, _, err := s.fetcher.GetStatus(ctx, actorID)
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to fetch baseline status: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle := &Handle{
		onChange: onChange,
		cancel:   cancel,
		stream:   stream,
		done:     make(chan struct{}),
	}

	// Baseline before the loop starts, so ordering is deterministic.
	onChange(StatusUpdate{ActorID: actorID, Status: status})

	go s.consume(runCtx, handle, actorID)

	return handle, nil
}

func (s *Subscriber) consume(ctx context.Context, handle *Handle, actorID uuid.UUID) {
	defer close(handle.done)

	var lastSeq int64

	for {
		event, err := handle.stream.Next(ctx)
		if errors.Is(err, ErrMalformedEvent) {
			// Treated exactly like a gap: the delta is untrusted, the
			// current state is re-fetched.
			s.logger.Warn().Str("actor_id", actorID.String()).Msg("malformed event, resyncing")
			s.resync(ctx, handle, actorID)
			continue
		}
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Debug().Err(err).Str("actor_id", actorID.String()).Msg("event stream closed")
			}
			return
		}

		if event.Sequence <= lastSeq {
			// Duplicate or reordered; already reflected.
			continue
		}

		if lastSeq != 0 && event.Sequence > lastSeq+1 {
			s.logger.Warn().
				Str("actor_id", actorID.String()).
				Int64("expected", lastSeq+1).
				Int64("received", event.Sequence).
				Msg("event sequence gap, resyncing")
			lastSeq = event.Sequence
			s.resync(ctx, handle, actorID)
			continue
		}

		lastSeq = event.Sequence
		handle.deliver(StatusUpdate{ActorID: actorID, Status: event.Status})
	}
}

func (s *Subscriber) resync(ctx context.Context, handle *Handle, actorID uuid.UUID) {
	status, _, err := s.fetcher.GetStatus(ctx, actorID)
	if err != nil {
		// Leave the cached value; the next event or resync catches up.
		s.logger.Warn().Err(err).Str("actor_id", actorID.String()).Msg("resync fetch failed")
		return
	}

	handle.deliver(StatusUpdate{ActorID: actorID, Status: status, Resync: true})
}
