package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meetassist/backend/internal/storage/models"
)

// Bridge tracks a fingerprint per event id and turns deltas into
// notifications. The initial load seeds the fingerprints silently.
type Bridge struct {
	mu           sync.Mutex
	fingerprints map[string]Fingerprint
	cursor       time.Time
	seeded       bool

	now   func() time.Time
	newID func() string
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{
		fingerprints: make(map[string]Fingerprint),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

// Bootstrap seeds fingerprints from a full event list and records the
// cursor. No notifications are produced.
func (b *Bridge) Bootstrap(events []models.Event, serverTimestamp time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.fingerprints = make(map[string]Fingerprint, len(events))
	for _, e := range events {
		b.fingerprints[e.ID] = FingerprintOf(e)
	}
	b.cursor = serverTimestamp
	b.seeded = true
}

// Cursor returns the last server timestamp seen and whether the bridge has
// been bootstrapped.
func (b *Bridge) Cursor() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor, b.seeded
}

// Tracked returns the number of events with a fingerprint.
func (b *Bridge) Tracked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fingerprints)
}

// Observe applies d and returns the notifications it implies:
//   - an unknown id is a new event;
//   - a bot status moving to DONE is a completed bot;
//   - a changed meeting URL is a link update with a change descriptor;
//   - a changed event status, such as a cancellation, is a status change.
//
// Fingerprints are updated whether or not anything fired. Ids tombstoned in
// the same delta are dropped without notifications.
func (b *Bridge) Observe(d models.Delta) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	deleted := make(map[string]struct{}, len(d.DeletedIDs))
	for _, id := range d.DeletedIDs {
		deleted[id] = struct{}{}
		delete(b.fingerprints, id)
	}

	var out []Notification
	for _, e := range d.Events {
		if _, gone := deleted[e.ID]; gone {
			continue
		}

		current := FingerprintOf(e)
		previous, known := b.fingerprints[e.ID]
		b.fingerprints[e.ID] = current

		if !known {
			out = append(out, b.notification(e, KindNewEvent, "New event", newEventBody(e), nil))
			continue
		}

		if models.StringValue(previous.BotStatus) != models.BotStatusDone &&
			models.StringValue(current.BotStatus) == models.BotStatusDone {
			out = append(out, b.notification(e, KindBotCompleted, "Notes ready",
				"The notetaker finished recording "+eventTitle(e), nil))
		}

		if !sameString(previous.MeetingURL, current.MeetingURL) {
			change := meetingLinkChange(previous.MeetingURL, current.MeetingURL)
			out = append(out, b.notification(e, KindMeetingLinkUpdated, "Meeting link updated",
				linkBody(e, change), &change))
		}

		if previous.Status != current.Status {
			change := statusChange(previous.Status, current.Status)
			out = append(out, b.notification(e, KindStatusChanged, statusTitle(current.Status),
				statusBody(e, current.Status), &change))
		}
	}

	b.cursor = d.ServerTimestamp
	b.seeded = true
	return out
}

// Run consumes deltas from in and publishes notifications to out until ctx
// is done or in is closed.
func (b *Bridge) Run(ctx context.Context, in <-chan models.Delta, out chan<- Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-in:
			if !ok {
				return
			}
			for _, n := range b.Observe(d) {
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (b *Bridge) notification(e models.Event, kind Kind, title, body string, change *Change) Notification {
	return Notification{
		ID:        b.newID(),
		Title:     title,
		Body:      body,
		CreatedAt: b.now(),
		Metadata: Metadata{
			Kind:      kind,
			EventID:   e.ID,
			StartTime: e.StartTime,
			Change:    change,
		},
	}
}
