package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSequenceStore_MonotonicWithinProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.seq")
	store := NewFileSequenceStore(path)

	first, err := store.Next()
	require.NoError(t, err)
	second, err := store.Next()
	require.NoError(t, err)

	assert.Equal(t, first+1, second)
}

func TestFileSequenceStore_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.seq")

	store := NewFileSequenceStore(path)
	var last int64
	for i := 0; i < 3; i++ {
		var err error
		last, err = store.Next()
		require.NoError(t, err)
	}

	// A new store over the same file models a process restart: it must
	// continue above the persisted value, never reuse one.
	restarted := NewFileSequenceStore(path)
	next, err := restarted.Next()
	require.NoError(t, err)
	assert.Greater(t, next, last)
}

func TestFileSequenceStore_ReseedsOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heartbeat.seq")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number"), 0o644))

	store := NewFileSequenceStore(path)
	next, err := store.Next()
	require.NoError(t, err)

	// Wall-clock seeding keeps the new counter above any counter a healthy
	// reporter could have reached by incrementing once per heartbeat.
	assert.Greater(t, next, int64(1_000_000_000))
}
