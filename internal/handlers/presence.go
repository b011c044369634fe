package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/marigunting/presenced/internal/models"
	"github.com/marigunting/presenced/internal/services"
)

type PresenceHandler struct {
	ledger *services.Ledger
}

func NewPresenceHandler(ledger *services.Ledger) *PresenceHandler {
	return &PresenceHandler{ledger: ledger}
}

type heartbeatRequest struct {
	ActorID  uuid.UUID `json:"actor_id"`
	Sequence int64     `json:"sequence"`
	DeviceTS time.Time `json:"device_ts"`
}

type heartbeatResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type statusResponse struct {
	Status models.PresenceStatus `json:"status"`
	AsOf   time.Time             `json:"as_of"`
}

// Heartbeat records an authenticated liveness assertion. The caller only
// ever sees accepted or rejected; ledger internals never leak.
func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	callerID, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// A credential only asserts liveness for its own actor.
	if req.ActorID != callerID {
		writeError(w, http.StatusForbidden, "actor mismatch")
		return
	}

	err := h.ledger.RecordHeartbeat(r.Context(), req.ActorID, req.Sequence, req.DeviceTS)
	if errors.Is(err, services.ErrStaleSequence) {
		writeJSON(w, http.StatusConflict, heartbeatResponse{Status: "rejected", Reason: "stale-sequence"})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record heartbeat")
		return
	}

	writeJSON(w, http.StatusAccepted, heartbeatResponse{Status: "accepted"})
}

// Status serves the derived current status; subscribers use it for the
// initial baseline and for resync after a gap.
func (h *PresenceHandler) Status(w http.ResponseWriter, r *http.Request) {
	actorID, err := uuid.Parse(chi.URLParam(r, "actorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor id")
		return
	}

	status, asOf, err := h.ledger.GetStatus(r.Context(), actorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get status")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: status, AsOf: asOf})
}
