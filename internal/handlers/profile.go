package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/marigunting/presenced/internal/repositories"
)

// ProfileHandler owns the authenticated profile updates this subsystem
// makes: currently just the push token the backend uses to wake devices
// that hold no live subscription.
type ProfileHandler struct {
	actors repositories.ActorRepository
}

func NewProfileHandler(actors repositories.ActorRepository) *ProfileHandler {
	return &ProfileHandler{actors: actors}
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

func (h *ProfileHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req pushTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	err := h.actors.UpdatePushToken(r.Context(), actorID, req.Token)
	if errors.Is(err, repositories.ErrNotFound) {
		writeError(w, http.StatusNotFound, "actor not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update push token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
