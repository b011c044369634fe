package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
	"github.com/marigunting/presenced/internal/repositories"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedTransition struct {
	ActorID  uuid.UUID
	Previous models.PresenceStatus
	Status   models.PresenceStatus
	Sequence int64
}

// capturePublisher records every transition the ledger hands off.
type capturePublisher struct {
	mu     sync.Mutex
	events []capturedTransition
}

func (p *capturePublisher) Publish(_ context.Context, actorID uuid.UUID, previous, status models.PresenceStatus, seq int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedTransition{ActorID: actorID, Previous: previous, Status: status, Sequence: seq})
	return nil
}

func (p *capturePublisher) all() []capturedTransition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]capturedTransition(nil), p.events...)
}

// fakeClock lets tests move the ledger's notion of now.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLedger(t *testing.T) (*Ledger, *capturePublisher, *fakeClock) {
	t.Helper()

	store := repositories.NewMemoryPresenceRepository()
	publisher := &capturePublisher{}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	ledger := NewLedger(store, publisher, nil, zerolog.Nop(), 90*time.Second, 30*time.Second)
	ledger.now = clock.Now

	return ledger, publisher, clock
}

func TestLedger_HeartbeatMakesActorOnline(t *testing.T) {
	ledger, publisher, _ := newTestLedger(t)
	ctx := context.Background()
	actorID := uuid.New()

	err := ledger.RecordHeartbeat(ctx, actorID, 1, time.Now())
	require.NoError(t, err)

	status, _, err := ledger.GetStatus(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, status)

	// First heartbeat is a genuine offline->online transition.
	events := publisher.all()
	require.Len(t, events, 1)
	assert.Equal(t, models.StatusOnline, events[0].Status)
	assert.Equal(t, models.StatusOffline, events[0].Previous)
}

func TestLedger_UnknownActorIsOffline(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	status, _, err := ledger.GetStatus(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, status)
}

func TestLedger_StaleSequenceRejectedWithoutRefresh(t *testing.T) {
	ledger, _, clock := newTestLedger(t)
	ctx := context.Background()
	actorID := uuid.New()

	require.NoError(t, ledger.RecordHeartbeat(ctx, actorID, 5, time.Now()))

	// A heartbeat from a superseded process must not reset the timestamp.
	clock.Advance(60 * time.Second)
	err := ledger.RecordHeartbeat(ctx, actorID, 4, time.Now())
	assert.ErrorIs(t, err, ErrStaleSequence)

	// Only 30 more seconds until the original heartbeat expires: if the
	// stale one had refreshed the record, this would still be online at +95.
	clock.Advance(35 * time.Second)
	status, _, err := ledger.GetStatus(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, status)
}

func TestLedger_EqualSequenceIsIdempotentRefresh(t *testing.T) {
	ledger, publisher, clock := newTestLedger(t)
	ctx := context.Background()
	actorID := uuid.New()

	require.NoError(t, ledger.RecordHeartbeat(ctx, actorID, 7, time.Now()))
	clock.Advance(40 * time.Second)
	require.NoError(t, ledger.RecordHeartbeat(ctx, actorID, 7, time.Now()))

	// The refresh moved last-seen forward: still online 80s after the first.
	clock.Advance(80 * time.Second)
	status, _, err := ledger.GetStatus(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, status)

	// No duplicate online event for the second, idempotent heartbeat.
	assert.Len(t, publisher.all(), 1)
}

func TestLedger_ExpiryScenario(t *testing.T) {
	// Reporter sends sequence 5 at t=0 with a 90s expiry window: online at
	// t=60, offline at t=95, and exactly one online->offline event published
	// by the sweep between t=90 and t=95.
	ledger, publisher, clock := newTestLedger(t)
	ctx := context.Background()
	actorID := uuid.New()

	require.NoError(t, ledger.RecordHeartbeat(ctx, actorID, 5, time.Now()))

	clock.Advance(60 * time.Second)
	status, _, err := ledger.GetStatus(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, status)
	ledger.Sweep(ctx)

	clock.Advance(35 * time.Second)
	status, _, err = ledger.GetStatus(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOffline, status)

	ledger.Sweep(ctx)

	events := publisher.all()
	require.Len(t, events, 2)
	assert.Equal(t, models.StatusOnline, events[0].Status)
	assert.Equal(t, models.StatusOffline, events[1].Status)
	assert.Equal(t, models.StatusOnline, events[1].Previous)
	assert.Equal(t, events[0].Sequence+1, events[1].Sequence)
}

func TestLedger_SweepIsEdgeTriggered(t *testing.T) {
	ledger, publisher, clock := newTestLedger(t)
	ctx := context.Background()
	actorID := uuid.New()

	require.NoError(t, ledger.RecordHeartbeat(ctx, actorID, 1, time.Now()))
	clock.Advance(2 * time.Minute)

	// Repeated sweeps of an already-offline actor must not re-emit.
	ledger.Sweep(ctx)
	ledger.Sweep(ctx)
	ledger.Sweep(ctx)

	var offline int
	for _, e := range publisher.all() {
		if e.Status == models.StatusOffline {
			offline++
		}
	}
	assert.Equal(t, 1, offline, "exactly one offline event per transition")
}

func TestLedger_HeartbeatAfterExpiryPublishesOnline(t *testing.T) {
	ledger, publisher, clock := newTestLedger(t)
	ctx := context.Background()
	actorID := uuid.New()

	require.NoError(t, ledger.RecordHeartbeat(ctx, actorID, 1, time.Now()))
	clock.Advance(2 * time.Minute)
	ledger.Sweep(ctx)

	require.NoError(t, ledger.RecordHeartbeat(ctx, actorID, 2, time.Now()))

	events := publisher.all()
	require.Len(t, events, 3)
	assert.Equal(t, models.StatusOnline, events[0].Status)
	assert.Equal(t, models.StatusOffline, events[1].Status)
	assert.Equal(t, models.StatusOnline, events[2].Status)
}

// stallingPublisher holds the first offline publish until released, so a
// test can land a heartbeat in that window.
type stallingPublisher struct {
	inner   *capturePublisher
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *stallingPublisher) Publish(ctx context.Context, actorID uuid.UUID, previous, status models.PresenceStatus, seq int64) error {
	if status == models.StatusOffline {
		p.once.Do(func() { close(p.entered) })
		<-p.release
	}
	return p.inner.Publish(ctx, actorID, previous, status, seq)
}

func TestLedger_HeartbeatOvertakingSweepKeepsSequenceOrder(t *testing.T) {
	store := repositories.NewMemoryPresenceRepository()
	capture := &capturePublisher{}
	stalling := &stallingPublisher{
		inner:   capture,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	ledger := NewLedger(store, stalling, nil, zerolog.Nop(), 90*time.Second, 30*time.Second)
	ledger.now = clock.Now

	ctx := context.Background()
	actorID := uuid.New()

	require.NoError(t, ledger.RecordHeartbeat(ctx, actorID, 1, time.Now()))
	clock.Advance(2 * time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ledger.Sweep(ctx)
	}()

	// The sweep has flipped the actor offline but its publish is stalled; a
	// fresh heartbeat flips back online and publishes first.
	<-stalling.entered
	require.NoError(t, ledger.RecordHeartbeat(ctx, actorID, 2, time.Now()))
	close(stalling.release)
	<-done

	events := capture.all()
	require.Len(t, events, 3)

	// Delivery order inverted, but the sequences assigned with the flips
	// did not: the late offline event carries the lower sequence, so a
	// sequence-ordered consumer settles on online, matching the ledger.
	var offlineSeq, reviveSeq int64
	for _, e := range events[1:] {
		if e.Status == models.StatusOffline {
			offlineSeq = e.Sequence
		} else {
			reviveSeq = e.Sequence
		}
	}
	assert.Less(t, offlineSeq, reviveSeq)

	status, _, err := ledger.GetStatus(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, status)
}

func TestLedger_ConcurrentIdenticalHeartbeats(t *testing.T) {
	ledger, publisher, _ := newTestLedger(t)
	ctx := context.Background()
	actorID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ledger.RecordHeartbeat(ctx, actorID, 7, time.Now()))
		}()
	}
	wg.Wait()

	status, _, err := ledger.GetStatus(ctx, actorID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, status)

	// Both accepted, but only the first flips the published state.
	assert.Len(t, publisher.all(), 1)
}
