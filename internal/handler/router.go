package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mindease/backend/internal/auth"
	chatHandler "github.com/mindease/backend/internal/handler/chat"
	profileHandler "github.com/mindease/backend/internal/handler/profile"
	trackingHandler "github.com/mindease/backend/internal/handler/tracking"
	middlewarePkg "github.com/mindease/backend/internal/middleware"
	profileService "github.com/mindease/backend/internal/service/profile"
	sessionService "github.com/mindease/backend/internal/service/session"
	trackingService "github.com/mindease/backend/internal/service/tracking"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(profiles *profileService.Service, tracking *trackingService.Service, sessions *sessionService.Registry, tokens *auth.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	profileRoutes := profileHandler.New(profiles, tracking, tokens)
	trackingRoutes := trackingHandler.New(tracking)
	chatRoutes := chatHandler.New(sessions)

	r.Route("/api", func(api chi.Router) {
		profileRoutes.RegisterPublicRoutes(api)

		api.Group(func(authed chi.Router) {
			authed.Use(tokens.Require)
			profileRoutes.RegisterRoutes(authed)
			trackingRoutes.RegisterRoutes(authed)
			chatRoutes.RegisterRoutes(authed)
		})
	})

	return r
}
