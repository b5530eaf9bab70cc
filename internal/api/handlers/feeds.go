package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/meetassist/backend/internal/api/middleware"
)

// FeedScheduler is the part of the scheduler the feed endpoints use.
type FeedScheduler interface {
	ScheduledFeeds() []string
	NextRun(feedID string) *time.Time
	TriggerImport(feedID string) bool
}

// FeedResponse represents a scheduled ICS feed.
type FeedResponse struct {
	ID        string     `json:"id"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// ListFeeds returns the scheduled feeds and when each runs next.
func ListFeeds(feeds FeedScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := feeds.ScheduledFeeds()
		response := make([]FeedResponse, 0, len(ids))
		for _, id := range ids {
			response = append(response, FeedResponse{ID: id, NextRunAt: feeds.NextRun(id)})
		}
		middleware.WriteJSON(w, http.StatusOK, response)
	}
}

// SyncFeed starts an import of one feed in the background. The outcome is
// broadcast over the websocket.
func SyncFeed(feeds FeedScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if !feeds.TriggerImport(id) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Feed not found")
			return
		}
		middleware.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "syncing"})
	}
}
