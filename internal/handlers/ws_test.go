package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marigunting/presenced/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeEndpoint_StreamsTransitions(t *testing.T) {
	env := newTestEnv(t)
	actorID, _ := env.registerActor(t, "barber@example.com")

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1)
	conn, resp, err := websocket.DefaultDialer.Dial(fmt.Sprintf("%s/v1/presence/%s/ws", wsURL, actorID), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Give the handler a moment to register its subscription after the
	// upgrade handshake.
	time.Sleep(100 * time.Millisecond)

	// The first heartbeat is an offline->online transition and must reach
	// the already-connected subscriber.
	require.NoError(t, env.ledger.RecordHeartbeat(context.Background(), actorID, 1, time.Now()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var event models.StatusChangeEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, actorID, event.ActorID)
	assert.Equal(t, models.StatusOnline, event.Status)
	assert.Equal(t, int64(1), event.Sequence)
}

func TestSubscribeEndpoint_InvalidActorID(t *testing.T) {
	env := newTestEnv(t)

	wsURL := strings.Replace(env.server.URL, "http", "ws", 1)
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/v1/presence/not-a-uuid/ws", nil)
	require.Error(t, err)
	if resp != nil {
		defer resp.Body.Close()
		assert.Equal(t, 400, resp.StatusCode)
	}
}
