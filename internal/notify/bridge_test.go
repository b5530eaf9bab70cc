package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/meetassist/backend/internal/storage/models"
)

var base = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestBridge() *Bridge {
	b := NewBridge()
	n := 0
	b.newID = func() string {
		n++
		return fmt.Sprintf("n%d", n)
	}
	b.now = func() time.Time { return base }
	return b
}

func ev(id string, bot, link string) models.Event {
	return models.Event{
		ID:         id,
		Title:      "Standup",
		StartTime:  base,
		Status:     models.EventStatusConfirmed,
		BotStatus:  models.StringPtr(bot),
		MeetingURL: models.StringPtr(link),
	}
}

func kinds(ns []Notification) []Kind {
	out := make([]Kind, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Metadata.Kind)
	}
	return out
}

func TestBridge_BootstrapIsSilent(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	if _, ok := b.Cursor(); ok {
		t.Fatal("expected fresh bridge to have no cursor")
	}

	b.Bootstrap([]models.Event{ev("e1", "", ""), ev("e2", "", "")}, base)
	cursor, ok := b.Cursor()
	if !ok || !cursor.Equal(base) {
		t.Fatalf("cursor mismatch: %v %v", cursor, ok)
	}
	if b.Tracked() != 2 {
		t.Fatalf("expected 2 fingerprints, got %d", b.Tracked())
	}

	ns := b.Observe(models.Delta{Events: []models.Event{ev("e1", "", "")}, ServerTimestamp: base.Add(time.Minute)})
	if len(ns) != 0 {
		t.Fatalf("expected no notifications for unchanged event, got %v", kinds(ns))
	}
}

func TestBridge_NewEvent(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	b.Bootstrap(nil, base)

	ns := b.Observe(models.Delta{Events: []models.Event{ev("e9", "", "")}, ServerTimestamp: base})
	if len(ns) != 1 || ns[0].Metadata.Kind != KindNewEvent {
		t.Fatalf("expected one new event notification, got %v", kinds(ns))
	}
	if ns[0].ID != "n1" || ns[0].Metadata.EventID != "e9" || !ns[0].CreatedAt.Equal(base) {
		t.Fatalf("unexpected notification: %+v", ns[0])
	}
}

func TestBridge_BotCompletedFiresOnce(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	b.Bootstrap([]models.Event{ev("e1", models.BotStatusScheduled, "")}, base)

	done := models.Delta{Events: []models.Event{ev("e1", models.BotStatusDone, "")}, ServerTimestamp: base.Add(time.Minute)}

	ns := b.Observe(done)
	if len(ns) != 1 || ns[0].Metadata.Kind != KindBotCompleted {
		t.Fatalf("expected one bot completed notification, got %v", kinds(ns))
	}

	if again := b.Observe(done); len(again) != 0 {
		t.Fatalf("expected no duplicate on identical poll, got %v", kinds(again))
	}
}

func TestBridge_MeetingLinkChanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous string
		current  string
		action   ChangeAction
	}{
		{name: "added", previous: "", current: "https://zoom.us/j/1", action: ActionAdded},
		{name: "removed", previous: "https://zoom.us/j/1", current: "", action: ActionRemoved},
		{name: "updated", previous: "https://zoom.us/j/1", current: "https://zoom.us/j/2", action: ActionUpdated},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := newTestBridge()
			b.Bootstrap([]models.Event{ev("e1", "", tc.previous)}, base)
			ns := b.Observe(models.Delta{Events: []models.Event{ev("e1", "", tc.current)}, ServerTimestamp: base})

			if len(ns) != 1 || ns[0].Metadata.Kind != KindMeetingLinkUpdated {
				t.Fatalf("expected one link notification, got %v", kinds(ns))
			}
			change := ns[0].Metadata.Change
			if change == nil || change.Action != tc.action || change.Field != "meetingUrl" {
				t.Fatalf("unexpected change: %+v", change)
			}
			if models.StringValue(change.Previous) != tc.previous || models.StringValue(change.Current) != tc.current {
				t.Fatalf("change values mismatch: %+v", change)
			}
		})
	}
}

func TestBridge_StatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		current string
		title   string
	}{
		{name: "cancelled", current: models.EventStatusCancelled, title: "Event cancelled"},
		{name: "tentative", current: models.EventStatusTentative, title: "Event status changed"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := newTestBridge()
			b.Bootstrap([]models.Event{ev("e1", "", "")}, base)

			changed := ev("e1", "", "")
			changed.Status = tc.current
			delta := models.Delta{Events: []models.Event{changed}, ServerTimestamp: base.Add(time.Minute)}

			ns := b.Observe(delta)
			if len(ns) != 1 || ns[0].Metadata.Kind != KindStatusChanged || ns[0].Title != tc.title {
				t.Fatalf("expected one status notification, got %+v", ns)
			}
			change := ns[0].Metadata.Change
			if change == nil || change.Field != "status" || change.Action != ActionUpdated {
				t.Fatalf("unexpected change: %+v", change)
			}
			if models.StringValue(change.Previous) != models.EventStatusConfirmed || models.StringValue(change.Current) != tc.current {
				t.Fatalf("change values mismatch: %+v", change)
			}

			if again := b.Observe(delta); len(again) != 0 {
				t.Fatalf("expected no duplicate on identical poll, got %v", kinds(again))
			}
		})
	}
}

func TestBridge_TombstonesDropFingerprints(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	b.Bootstrap([]models.Event{ev("e1", "", ""), ev("e2", "", "")}, base)

	ns := b.Observe(models.Delta{
		Events:          []models.Event{ev("e2", models.BotStatusDone, "")},
		DeletedIDs:      []string{"e1", "e2"},
		ServerTimestamp: base,
	})
	if len(ns) != 0 {
		t.Fatalf("expected no notifications for deleted events, got %v", kinds(ns))
	}
	if b.Tracked() != 0 {
		t.Fatalf("expected fingerprints removed, got %d", b.Tracked())
	}

	// A deleted id coming back later is new again.
	ns = b.Observe(models.Delta{Events: []models.Event{ev("e1", "", "")}, ServerTimestamp: base})
	if len(ns) != 1 || ns[0].Metadata.Kind != KindNewEvent {
		t.Fatalf("expected new event after resurrection, got %v", kinds(ns))
	}
}

func TestBridge_Run(t *testing.T) {
	t.Parallel()

	b := newTestBridge()
	b.Bootstrap(nil, base)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan models.Delta, 1)
	out := make(chan Notification, 4)
	done := make(chan struct{})
	go func() {
		b.Run(ctx, in, out)
		close(done)
	}()

	in <- models.Delta{Events: []models.Event{ev("e1", "", "")}, ServerTimestamp: base}

	select {
	case n := <-out:
		if n.Metadata.Kind != KindNewEvent {
			t.Fatalf("unexpected kind: %s", n.Metadata.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}

	close(in)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after input closed")
	}
}

func TestFanout_JoinsErrors(t *testing.T) {
	t.Parallel()

	var got int
	ok := SinkFunc(func(_ context.Context, ns []Notification) error {
		got += len(ns)
		return nil
	})
	failing := SinkFunc(func(context.Context, []Notification) error {
		return fmt.Errorf("boom")
	})

	err := Fanout{ok, nil, failing, ok}.Deliver(context.Background(), []Notification{{ID: "a"}})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if got != 2 {
		t.Fatalf("expected both healthy sinks to receive, got %d", got)
	}
}
