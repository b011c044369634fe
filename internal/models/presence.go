package models

import (
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// PresenceRecord is the raw ledger entry for one actor. The online/offline
// status is never stored; it is derived from LastSeen on every read so a
// cached boolean can never go stale.
type PresenceRecord struct {
	ActorID  uuid.UUID `json:"actor_id"`
	Sequence int64     `json:"sequence"`
	// LastSeen is the server's receipt time of the newest accepted heartbeat.
	// It is the only input to status derivation.
	LastSeen time.Time `json:"last_seen"`
	// DeviceTS is the device-reported send time, kept for diagnostics only.
	// Device clocks are not trusted for expiry.
	DeviceTS time.Time `json:"device_ts"`
}

// StatusAt derives the status at the given instant. Comparison is at
// second granularity, matching heartbeat storage.
func (r *PresenceRecord) StatusAt(now time.Time, expiry time.Duration) PresenceStatus {
	if r == nil || r.LastSeen.IsZero() {
		return StatusOffline
	}
	if now.Unix()-r.LastSeen.Unix() < int64(expiry.Seconds()) {
		return StatusOnline
	}
	return StatusOffline
}
