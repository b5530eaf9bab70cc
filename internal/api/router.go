// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meetassist/backend/internal/api/handlers"
	"github.com/meetassist/backend/internal/api/middleware"
	"github.com/meetassist/backend/internal/calendar"
	"github.com/meetassist/backend/internal/storage"
	"github.com/meetassist/backend/internal/websocket"
)

// Services are the dependencies the routes are served from. Session and
// Feeds may be nil, in which case their routes are not registered.
type Services struct {
	DB            *storage.DB
	Events        *storage.EventRepository
	Planner       *storage.PlannerRepository
	Notifications *storage.NotificationRepository
	Hub           *websocket.Hub
	Session       *calendar.Session
	Feeds         handlers.FeedScheduler
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(svc Services) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(svc.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(svc.Events, svc.Session, svc.Hub, svc.Feeds)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(svc.Hub)).Methods("GET")

	// Event endpoints
	api.HandleFunc("/events", handlers.ListEvents(svc.Events)).Methods("GET")
	api.HandleFunc("/events", handlers.CreateEvent(svc.Events)).Methods("POST")
	api.HandleFunc("/events/{id}", handlers.GetEvent(svc.Events)).Methods("GET")
	api.HandleFunc("/events/{id}", handlers.PutEvent(svc.Events)).Methods("PUT")
	api.HandleFunc("/events/{id}", handlers.DeleteEvent(svc.Events)).Methods("DELETE")

	// Planner endpoints
	api.HandleFunc("/planner", handlers.ListPlanner(svc.Planner)).Methods("GET")
	api.HandleFunc("/planner/{id}", handlers.PutPlannerEntry(svc.Planner)).Methods("PUT")
	api.HandleFunc("/planner/{id}", handlers.DeletePlannerEntry(svc.Planner)).Methods("DELETE")

	api.HandleFunc("/notifications", handlers.ListNotifications(svc.Notifications)).Methods("GET")

	if svc.Session != nil {
		api.HandleFunc("/layout/week", handlers.WeekLayout(svc.Session)).Methods("GET")
	}

	if svc.Feeds != nil {
		api.HandleFunc("/feeds", handlers.ListFeeds(svc.Feeds)).Methods("GET")
		api.HandleFunc("/feeds/{id}/sync", handlers.SyncFeed(svc.Feeds)).Methods("POST")
	}

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "No such endpoint")
	})

	return r
}
