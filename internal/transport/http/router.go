package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDeps struct {
	Catalog     CatalogReader
	Admin       AdminService
	WS          http.Handler
	Store       Pinger
	Origins     OriginPolicy
	Logger      *zap.Logger
}

// NewRouter wires the public, admin and socket routes.
func NewRouter(deps RouterDeps) http.Handler {
	router := chi.NewRouter()
	router.NotFound(NotFoundHandler().ServeHTTP)
	router.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	router.Get("/health", HealthHandler(deps.Store, deps.Logger))
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/events", func(r chi.Router) {
		r.Get("/", HandleListEvents(deps.Catalog))
		r.Get("/{eventID}", HandleGetEvent(deps.Catalog))
	})

	router.Route("/admin", func(r chi.Router) {
		r.Post("/events", HandleAdminCreateEvent(deps.Admin))
		r.Post("/events/{eventID}/ticket-types", HandleAdminCreateTicketType(deps.Admin))
		r.Post("/users", HandleAdminCreateUser(deps.Admin))
	})

	if deps.WS != nil {
		router.Get("/ws/events/{eventID}", deps.WS.ServeHTTP)
	}

	return CORS(deps.Origins, RequestLogger(router, deps.Logger))
}
