package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/marigunting/presenced/internal/metrics"
	"github.com/marigunting/presenced/internal/services"
)

type RouterDeps struct {
	Auth      *AuthHandler
	Presence  *PresenceHandler
	Subscribe *SubscribeHandler
	Profile   *ProfileHandler

	AuthService *services.AuthService
	Metrics     *metrics.Metrics
}

func NewRouter(deps RouterDeps) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	router.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", deps.Auth.Register)
		r.Post("/auth/login", deps.Auth.Login)

		r.Get("/presence/{actorID}", deps.Presence.Status)
		r.Get("/presence/{actorID}/ws", deps.Subscribe.Subscribe)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(deps.AuthService))
			r.Post("/heartbeat", deps.Presence.Heartbeat)
			r.Put("/profile/push-token", deps.Profile.UpdatePushToken)
		})
	})

	return router
}
