package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySequenceStore is an in-process SequenceStore for tests.
type memorySequenceStore struct {
	mu      sync.Mutex
	current int64
}

func (s *memorySequenceStore) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current++
	return s.current, nil
}

// heartbeatRecorder captures sent heartbeats and can be scripted to fail.
type heartbeatRecorder struct {
	mu   sync.Mutex
	sent []Heartbeat
	fail error
}

func (r *heartbeatRecorder) SendHeartbeat(_ context.Context, _ string, hb Heartbeat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, hb)
	return nil
}

func (r *heartbeatRecorder) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func (r *heartbeatRecorder) all() []Heartbeat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Heartbeat(nil), r.sent...)
}

func waitForHeartbeats(t *testing.T, recorder *heartbeatRecorder, n int) []Heartbeat {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sent := recorder.all()
		if len(sent) >= n {
			return sent
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d heartbeats, have %d", n, len(recorder.all()))
	return nil
}

func TestReporter_SendsImmediatelyThenOnInterval(t *testing.T) {
	recorder := &heartbeatRecorder{}
	reporter := NewReporter(recorder, &memorySequenceStore{}, 20*time.Millisecond, zerolog.Nop())
	actorID := uuid.New()

	reporter.Start(context.Background(), actorID, "credential")
	defer reporter.Stop()

	sent := waitForHeartbeats(t, recorder, 3)
	assert.Equal(t, actorID, sent[0].ActorID)

	// Sequences increase by one per send.
	for i := 1; i < len(sent); i++ {
		assert.Equal(t, sent[i-1].Sequence+1, sent[i].Sequence)
	}
}

func TestReporter_NoHeartbeatAfterStop(t *testing.T) {
	recorder := &heartbeatRecorder{}
	reporter := NewReporter(recorder, &memorySequenceStore{}, 10*time.Millisecond, zerolog.Nop())

	reporter.Start(context.Background(), uuid.New(), "credential")
	waitForHeartbeats(t, recorder, 2)

	reporter.Stop()
	count := len(recorder.all())

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, recorder.all(), count, "no heartbeat may be sent after Stop returns")
}

func TestReporter_HaltsOnAuthRejection(t *testing.T) {
	recorder := &heartbeatRecorder{}
	recorder.setFail(ErrAuthRequired)
	reporter := NewReporter(recorder, &memorySequenceStore{}, 10*time.Millisecond, zerolog.Nop())

	reporter.Start(context.Background(), uuid.New(), "revoked-credential")
	defer reporter.Stop()

	select {
	case err := <-reporter.AuthErrors():
		assert.ErrorIs(t, err, ErrAuthRequired)
	case <-time.After(2 * time.Second):
		t.Fatal("auth rejection was not surfaced")
	}

	// Reporting halted: nothing further goes out even after the rejection.
	recorder.setFail(nil)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, recorder.all())
}

func TestReporter_ContinuesThroughTransientFailures(t *testing.T) {
	recorder := &heartbeatRecorder{}
	recorder.setFail(assert.AnError)
	reporter := NewReporter(recorder, &memorySequenceStore{}, 10*time.Millisecond, zerolog.Nop())

	reporter.Start(context.Background(), uuid.New(), "credential")
	defer reporter.Stop()

	// Let a few sends fail, then recover: the next scheduled tick succeeds.
	time.Sleep(35 * time.Millisecond)
	recorder.setFail(nil)

	sent := waitForHeartbeats(t, recorder, 1)
	// The failed attempts consumed sequence numbers, so the first delivered
	// heartbeat is past 1 but still monotonic.
	assert.Greater(t, sent[0].Sequence, int64(1))
}

func TestReporter_ContinuesAfterStaleSequence(t *testing.T) {
	recorder := &heartbeatRecorder{}
	recorder.setFail(ErrStaleSequence)
	reporter := NewReporter(recorder, &memorySequenceStore{}, 10*time.Millisecond, zerolog.Nop())

	reporter.Start(context.Background(), uuid.New(), "credential")
	defer reporter.Stop()

	time.Sleep(35 * time.Millisecond)
	recorder.setFail(nil)

	waitForHeartbeats(t, recorder, 1)
}

func TestReporter_StartRestartsSession(t *testing.T) {
	recorder := &heartbeatRecorder{}
	reporter := NewReporter(recorder, &memorySequenceStore{}, 10*time.Millisecond, zerolog.Nop())

	first := uuid.New()
	second := uuid.New()

	reporter.Start(context.Background(), first, "credential")
	waitForHeartbeats(t, recorder, 1)

	reporter.Start(context.Background(), second, "credential")
	defer reporter.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sent := recorder.all()
		if len(sent) > 0 && sent[len(sent)-1].ActorID == second {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("restarted session never reported for the new actor")
}

func TestReporter_StopWithoutStartIsNoop(t *testing.T) {
	reporter := NewReporter(&heartbeatRecorder{}, &memorySequenceStore{}, time.Second, zerolog.Nop())
	reporter.Stop()
}

func TestReporter_DefaultInterval(t *testing.T) {
	reporter := NewReporter(&heartbeatRecorder{}, &memorySequenceStore{}, 0, zerolog.Nop())
	require.Equal(t, DefaultHeartbeatInterval, reporter.interval)
}
