package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/marigunting/presenced/internal/metrics"
	"github.com/marigunting/presenced/internal/pubsub"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SubscribeHandler streams status-change events for one actor over a
// websocket. Events are written in sequence order; a dropped connection is
// simply gone, the client resyncs via the status query when it returns.
type SubscribeHandler struct {
	bus     pubsub.Bus
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewSubscribeHandler(bus pubsub.Bus, m *metrics.Metrics, logger zerolog.Logger) *SubscribeHandler {
	return &SubscribeHandler{
		bus:     bus,
		metrics: m,
		logger:  logger.With().Str("component", "ws_handler").Logger(),
	}
}

func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	actorID, err := uuid.Parse(chi.URLParam(r, "actorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid actor id")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}
	defer conn.Close()

	events, cancel := h.bus.Subscribe(actorID)
	defer cancel()

	if h.metrics != nil {
		h.metrics.Subscribers.Inc()
		defer h.metrics.Subscribers.Dec()
	}

	// Reader goroutine: the peer never sends application data, but reading
	// is how close frames and dead connections are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Str("actor_id", actorID.String()).Msg("subscriber write failed")
				return
			}
		}
	}
}
