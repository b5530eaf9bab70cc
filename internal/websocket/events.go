package websocket

import (
	"context"
	"fmt"
	"log"

	"github.com/meetassist/backend/internal/notify"
	"github.com/meetassist/backend/internal/storage/models"
)

// EventBroadcaster turns domain events into WebSocket messages.
// It implements notify.Sink.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// Deliver sends one notification.created message per notification.
func (b *EventBroadcaster) Deliver(ctx context.Context, notifications []notify.Notification) error {
	dropped := 0
	for _, n := range notifications {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.broadcast(NewMessage(TypeNotificationCreated, n)); err != nil {
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("broadcasting notifications: %d of %d dropped: %w", dropped, len(notifications), ErrHubBusy)
	}
	return nil
}

// BroadcastFeedSyncCompleted sends a feed sync completed event.
func (b *EventBroadcaster) BroadcastFeedSyncCompleted(result models.FeedSyncResult) {
	payload := FeedSyncPayload{
		FeedID:      result.FeedID,
		EventsFound: result.EventsFound,
		Created:     result.Created,
		Updated:     result.Updated,
		Removed:     result.Removed,
		SyncedAt:    result.SyncedAt,
	}

	_ = b.broadcast(NewMessage(TypeFeedSyncCompleted, payload))
}

// BroadcastFeedSyncError sends a feed sync error event.
func (b *EventBroadcaster) BroadcastFeedSyncError(feedID string, err error) {
	payload := FeedSyncErrorPayload{
		FeedID:  feedID,
		Error:   "sync_error",
		Message: err.Error(),
	}

	_ = b.broadcast(NewMessage(TypeFeedSyncError, payload))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) error {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return err
	}

	return b.hub.Broadcast(data)
}
