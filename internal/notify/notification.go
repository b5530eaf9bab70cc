// Package notify derives user-facing notifications from successive event
// deltas.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/meetassist/backend/internal/storage/models"
)

// Kind identifies what a notification is about.
type Kind string

const (
	KindNewEvent           Kind = "new_event"
	KindBotCompleted       Kind = "bot_completed"
	KindMeetingLinkUpdated Kind = "meeting_link_updated"
	KindStatusChanged      Kind = "status_changed"
)

// ChangeAction classifies a field change by which side is empty.
type ChangeAction string

const (
	ActionAdded   ChangeAction = "added"
	ActionRemoved ChangeAction = "removed"
	ActionUpdated ChangeAction = "updated"
)

// Change describes one field-level change on an event.
type Change struct {
	Field    string       `json:"field"`
	Label    string       `json:"label"`
	Previous *string      `json:"previous"`
	Current  *string      `json:"current"`
	Action   ChangeAction `json:"action"`
}

// Metadata is the structured part of a notification.
type Metadata struct {
	Kind      Kind      `json:"kind"`
	EventID   string    `json:"eventId"`
	StartTime time.Time `json:"startTime"`
	Change    *Change   `json:"change,omitempty"`
}

// Notification is what the bridge hands to a sink.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Metadata  Metadata  `json:"metadata"`
}

// Fingerprint is the subset of an event watched for transitions.
type Fingerprint struct {
	BotStatus  *string
	Status     string
	MeetingURL *string
}

// FingerprintOf extracts the fingerprint of e.
func FingerprintOf(e models.Event) Fingerprint {
	return Fingerprint{
		BotStatus:  copyString(e.BotStatus),
		Status:     e.Status,
		MeetingURL: copyString(e.MeetingURL),
	}
}

// classify returns the action for a change from previous to current.
func classify(previous, current *string) ChangeAction {
	switch {
	case previous == nil && current != nil:
		return ActionAdded
	case previous != nil && current == nil:
		return ActionRemoved
	default:
		return ActionUpdated
	}
}

func meetingLinkChange(previous, current *string) Change {
	return Change{
		Field:    "meetingUrl",
		Label:    "Meeting link",
		Previous: copyString(previous),
		Current:  copyString(current),
		Action:   classify(previous, current),
	}
}

func statusChange(previous, current string) Change {
	return Change{
		Field:    "status",
		Label:    "Status",
		Previous: optionalString(previous),
		Current:  optionalString(current),
		Action:   classify(optionalString(previous), optionalString(current)),
	}
}

func statusTitle(status string) string {
	if status == models.EventStatusCancelled {
		return "Event cancelled"
	}
	return "Event status changed"
}

func statusBody(e models.Event, status string) string {
	switch status {
	case models.EventStatusCancelled:
		return fmt.Sprintf("%s on %s was cancelled", eventTitle(e), e.StartTime.Format("Mon Jan 2 15:04"))
	case "":
		return fmt.Sprintf("%s no longer has a status", eventTitle(e))
	default:
		return fmt.Sprintf("%s is now %s", eventTitle(e), strings.ToLower(status))
	}
}

func eventTitle(e models.Event) string {
	if e.Title == "" {
		return "Untitled event"
	}
	return e.Title
}

func newEventBody(e models.Event) string {
	body := fmt.Sprintf("%s was added for %s", eventTitle(e), e.StartTime.Format("Mon Jan 2 15:04"))
	if cal := models.StringValue(e.CalendarTitle); cal != "" {
		body += " on " + cal
	}
	return body
}

func linkBody(e models.Event, c Change) string {
	switch c.Action {
	case ActionAdded:
		return fmt.Sprintf("A meeting link was added to %s", eventTitle(e))
	case ActionRemoved:
		return fmt.Sprintf("The meeting link was removed from %s", eventTitle(e))
	default:
		return fmt.Sprintf("The meeting link for %s changed", eventTitle(e))
	}
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
