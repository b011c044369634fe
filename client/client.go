// Package client is the device-side half of the presence subsystem: the
// heartbeat reporter a barber app runs, the subscription client a customer
// app runs, the interruption coordinator that gates the offline modal, and
// the push-token registrar. All network calls are context-bound and never
// block the caller beyond the operation itself.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/marigunting/presenced/internal/models"
)

var (
	// ErrAuthRequired marks a revoked or expired credential. The caller must
	// re-authenticate; retrying without a fresh credential is pointless.
	ErrAuthRequired = errors.New("authentication required")
	// ErrStaleSequence marks a heartbeat superseded by a fresher reporter
	// instance for the same actor.
	ErrStaleSequence = errors.New("stale heartbeat sequence")
	// ErrMalformedEvent marks an undecodable event; consumers treat it like
	// a sequence gap.
	ErrMalformedEvent = errors.New("malformed event")
)

// Heartbeat is one liveness assertion sent to the backend.
type Heartbeat struct {
	ActorID  uuid.UUID `json:"actor_id"`
	Sequence int64     `json:"sequence"`
	DeviceTS time.Time `json:"device_ts"`
}

// HeartbeatAPI is what the reporter needs from the transport.
type HeartbeatAPI interface {
	SendHeartbeat(ctx context.Context, credential string, hb Heartbeat) error
}

// StatusFetcher is what the subscriber needs for baselines and resyncs.
type StatusFetcher interface {
	GetStatus(ctx context.Context, actorID uuid.UUID) (models.PresenceStatus, time.Time, error)
}

// EventStream yields status-change events for one actor until closed.
type EventStream interface {
	// Next blocks for the next event. It returns ErrMalformedEvent for an
	// undecodable payload (the stream stays usable) and any other error
	// when the stream is finished.
	Next(ctx context.Context) (models.StatusChangeEvent, error)
	Close() error
}

// StreamDialer opens an EventStream for one actor.
type StreamDialer interface {
	DialEvents(ctx context.Context, actorID uuid.UUID) (EventStream, error)
}

// ProfileAPI is what the push-token registrar needs from the transport.
type ProfileAPI interface {
	UpdatePushToken(ctx context.Context, credential, token string) error
}

// API talks to the presence backend over HTTP and websocket.
type API struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer
}

func NewAPI(baseURL string) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		dialer:  websocket.DefaultDialer,
	}
}

func (a *API) SendHeartbeat(ctx context.Context, credential string, hb Heartbeat) error {
	body, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("failed to encode heartbeat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/heartbeat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuthRequired
	case resp.StatusCode == http.StatusConflict:
		return ErrStaleSequence
	default:
		return fmt.Errorf("heartbeat rejected with status %d", resp.StatusCode)
	}
}

func (a *API) GetStatus(ctx context.Context, actorID uuid.UUID) (models.PresenceStatus, time.Time, error) {
	url := fmt.Sprintf("%s/v1/presence/%s", a.baseURL, actorID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to fetch status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("status query returned %d", resp.StatusCode)
	}

	var payload struct {
		Status models.PresenceStatus `json:"status"`
		AsOf   time.Time             `json:"as_of"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to decode status: %w", err)
	}

	return payload.Status, payload.AsOf, nil
}

func (a *API) UpdatePushToken(ctx context.Context, credential, token string) error {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return fmt.Errorf("failed to encode push token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.baseURL+"/v1/profile/push-token", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrAuthRequired
	default:
		return fmt.Errorf("push token update returned %d", resp.StatusCode)
	}
}

func (a *API) DialEvents(ctx context.Context, actorID uuid.UUID) (EventStream, error) {
	wsURL := strings.Replace(a.baseURL, "http", "ws", 1)
	url := fmt.Sprintf("%s/v1/presence/%s/ws", wsURL, actorID)

	conn, resp, err := a.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial event stream: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	return &wsEventStream{conn: conn}, nil
}

type wsEventStream struct {
	conn *websocket.Conn
}

func (s *wsEventStream) Next(_ context.Context) (models.StatusChangeEvent, error) {
	_, payload, err := s.conn.ReadMessage()
	if err != nil {
		return models.StatusChangeEvent{}, err
	}

	var event models.StatusChangeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return models.StatusChangeEvent{}, ErrMalformedEvent
	}

	return event, nil
}

func (s *wsEventStream) Close() error {
	return s.conn.Close()
}
