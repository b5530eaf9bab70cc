// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"net/http"
	"time"

	"github.com/meetassist/backend/internal/api/middleware"
	"github.com/meetassist/backend/internal/calendar"
	"github.com/meetassist/backend/internal/storage"
	"github.com/meetassist/backend/internal/storage/models"
	"github.com/meetassist/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		code := http.StatusOK
		if !dbConnected {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		middleware.WriteJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	EventsCount      int        `json:"events_count"`
	CachedEvents     int        `json:"cached_events"`
	Cursor           string     `json:"cursor,omitempty"`
	SessionClosed    bool       `json:"session_closed"`
	WebSocketClients int        `json:"websocket_clients"`
	Feeds            []string   `json:"feeds"`
	NextFeedSyncAt   *time.Time `json:"next_feed_sync_at,omitempty"`
}

// Status returns a handler that reports what the poller currently holds.
// session and feeds may be nil.
func Status(events *storage.EventRepository, session *calendar.Session, hub *websocket.Hub, feeds FeedScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := events.Count(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to count events")
			return
		}

		response := StatusResponse{
			EventsCount: count,
			Feeds:       []string{},
		}

		if session != nil {
			response.CachedEvents = len(session.Snapshot().Events)
			response.SessionClosed = session.Closed()
			if cursor, ok := session.Cursor(); ok {
				response.Cursor = models.FormatTime(cursor)
			}
		}
		if hub != nil {
			response.WebSocketClients = hub.ClientCount()
		}
		if feeds != nil {
			response.Feeds = feeds.ScheduledFeeds()
			for _, id := range response.Feeds {
				next := feeds.NextRun(id)
				if next != nil && (response.NextFeedSyncAt == nil || next.Before(*response.NextFeedSyncAt)) {
					response.NextFeedSyncAt = next
				}
			}
		}

		middleware.WriteJSON(w, http.StatusOK, response)
	}
}
