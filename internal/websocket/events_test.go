package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/meetassist/backend/internal/notify"
	"github.com/meetassist/backend/internal/storage/models"
)

func receive(t *testing.T, c *Client) Message {
	t.Helper()

	select {
	case data, ok := <-c.Send():
		if !ok {
			t.Fatalf("client channel closed")
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for message")
	}
	return Message{}
}

func TestEventBroadcaster_DeliverSendsNotifications(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	client := NewClient(hub)
	hub.Register(client)

	var sink notify.Sink = NewEventBroadcaster(hub)
	err := sink.Deliver(ctx, []notify.Notification{
		{ID: "n1", Title: "New event", Metadata: notify.Metadata{Kind: notify.KindNewEvent, EventID: "e1"}},
		{ID: "n2", Title: "Notes ready", Metadata: notify.Metadata{Kind: notify.KindBotCompleted, EventID: "e1"}},
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	for _, want := range []string{"n1", "n2"} {
		msg := receive(t, client)
		if msg.Type != TypeNotificationCreated {
			t.Fatalf("type mismatch: %s", msg.Type)
		}
		payload, ok := msg.Payload.(map[string]any)
		if !ok || payload["id"] != want {
			t.Fatalf("payload mismatch: %#v", msg.Payload)
		}
	}

	if hub.ClientCount() != 1 {
		t.Fatalf("client count mismatch: %d", hub.ClientCount())
	}
}

func TestEventBroadcaster_FeedSync(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	client := NewClient(hub)
	hub.Register(client)

	b := NewEventBroadcaster(hub)
	b.BroadcastFeedSyncCompleted(models.FeedSyncResult{FeedID: "work", Created: 2})
	b.BroadcastFeedSyncError("home", errors.New("status 500"))

	if msg := receive(t, client); msg.Type != TypeFeedSyncCompleted {
		t.Fatalf("type mismatch: %s", msg.Type)
	}
	msg := receive(t, client)
	if msg.Type != TypeFeedSyncError {
		t.Fatalf("type mismatch: %s", msg.Type)
	}
	if payload := msg.Payload.(map[string]any); payload["message"] != "status 500" {
		t.Fatalf("payload mismatch: %#v", payload)
	}
}

func TestHub_BroadcastWhenFull(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	for i := 0; i < cap(hub.broadcast); i++ {
		if err := hub.Broadcast([]byte("{}")); err != nil {
			t.Fatalf("broadcast %d: %v", i, err)
		}
	}

	if err := hub.Broadcast([]byte("{}")); !errors.Is(err, ErrHubBusy) {
		t.Fatalf("expected ErrHubBusy, got %v", err)
	}

	err := NewEventBroadcaster(hub).Deliver(context.Background(), []notify.Notification{{ID: "n"}})
	if !errors.Is(err, ErrHubBusy) {
		t.Fatalf("expected deliver to report ErrHubBusy, got %v", err)
	}
}

func TestHub_RunClosesClientsOnShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := NewClient(hub)
	hub.Register(client)
	cancel()
	<-done

	if _, ok := <-client.Send(); ok {
		t.Fatalf("expected closed send channel")
	}
}

func TestHub_SendToRegisteredClientOnly(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	go hub.Run(ctx)

	stranger := NewClient(hub)
	if hub.SendTo(stranger, []byte(`{}`)) {
		t.Fatalf("expected send to unregistered client to fail")
	}

	client := NewClient(hub)
	hub.Register(client)

	data, err := NewMessage(TypePong, nil).JSON()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !hub.SendTo(client, data) {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if msg := receive(t, client); msg.Type != TypePong {
		t.Fatalf("type mismatch: %s", msg.Type)
	}
}
