package models

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrInvalidEvent is returned when a payload cannot be coerced into an Event.
var ErrInvalidEvent = errors.New("invalid event")

// timeFormats are the accepted wire formats for event timestamps.
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// EventPayload is the loosely typed event shape exchanged with the backend.
type EventPayload struct {
	ID               string  `json:"id"`
	StartTime        string  `json:"startTime"`
	EndTime          *string `json:"endTime"`
	Title            string  `json:"title"`
	MeetingPlatform  string  `json:"meetingPlatform"`
	MeetingURL       *string `json:"meetingUrl"`
	BotStatus        *string `json:"botStatus"`
	Status           string  `json:"status"`
	CreatorEmail     *string `json:"creatorEmail"`
	CalendarTitle    *string `json:"calendarTitle"`
	NotetakerEnabled bool    `json:"notetakerEnabled"`
	Source           string  `json:"source,omitempty"`
	CreatedAt        string  `json:"createdAt,omitempty"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
}

// SnapshotPayload is the wire shape of a full fetch.
type SnapshotPayload struct {
	Events          []EventPayload `json:"events"`
	ServerTimestamp string         `json:"serverTimestamp"`
}

// DeltaPayload is the wire shape of an incremental fetch.
type DeltaPayload struct {
	Events          []EventPayload `json:"events"`
	DeletedIDs      []string       `json:"deletedIds"`
	ServerTimestamp string         `json:"serverTimestamp"`
}

// ParseTime parses a wire timestamp in any of the accepted formats.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, format := range timeFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

// FormatTime formats t for the wire.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Event validates the payload and returns the strict Event.
func (p EventPayload) Event() (Event, error) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return Event{}, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}

	start, err := ParseTime(p.StartTime)
	if err != nil {
		return Event{}, fmt.Errorf("%w: event %s: startTime: %v", ErrInvalidEvent, id, err)
	}

	var end *time.Time
	if p.EndTime != nil {
		if t, err := ParseTime(*p.EndTime); err == nil {
			end = &t
		}
	}

	status := strings.ToUpper(strings.TrimSpace(p.Status))
	if status == "" {
		status = EventStatusConfirmed
	}

	event := Event{
		ID:               id,
		StartTime:        start,
		EndTime:          end,
		Title:            p.Title,
		MeetingPlatform:  strings.TrimSpace(p.MeetingPlatform),
		MeetingURL:       nonEmpty(p.MeetingURL),
		BotStatus:        nonEmpty(p.BotStatus),
		Status:           status,
		CreatorEmail:     nonEmpty(p.CreatorEmail),
		CalendarTitle:    nonEmpty(p.CalendarTitle),
		NotetakerEnabled: p.NotetakerEnabled,
		Source:           p.Source,
	}
	if t, err := ParseTime(p.CreatedAt); err == nil {
		event.CreatedAt = t
	}
	if t, err := ParseTime(p.UpdatedAt); err == nil {
		event.UpdatedAt = t
	}

	return event, nil
}

// NewEventPayload converts an Event to its wire shape.
func NewEventPayload(e Event) EventPayload {
	p := EventPayload{
		ID:               e.ID,
		StartTime:        FormatTime(e.StartTime),
		Title:            e.Title,
		MeetingPlatform:  e.MeetingPlatform,
		MeetingURL:       e.MeetingURL,
		BotStatus:        e.BotStatus,
		Status:           e.Status,
		CreatorEmail:     e.CreatorEmail,
		CalendarTitle:    e.CalendarTitle,
		NotetakerEnabled: e.NotetakerEnabled,
		Source:           e.Source,
	}
	if e.EndTime != nil {
		end := FormatTime(*e.EndTime)
		p.EndTime = &end
	}
	if !e.CreatedAt.IsZero() {
		p.CreatedAt = FormatTime(e.CreatedAt)
	}
	if !e.UpdatedAt.IsZero() {
		p.UpdatedAt = FormatTime(e.UpdatedAt)
	}
	return p
}

// Snapshot coerces the payload. Invalid events are dropped and logged.
func (p SnapshotPayload) Snapshot() (Snapshot, error) {
	ts, err := ParseTime(p.ServerTimestamp)
	if err != nil {
		return Snapshot{}, fmt.Errorf("serverTimestamp: %w", err)
	}
	return Snapshot{Events: coerceEvents(p.Events), ServerTimestamp: ts}, nil
}

// Delta coerces the payload. Invalid events are dropped and logged.
func (p DeltaPayload) Delta() (Delta, error) {
	ts, err := ParseTime(p.ServerTimestamp)
	if err != nil {
		return Delta{}, fmt.Errorf("serverTimestamp: %w", err)
	}

	deleted := make([]string, 0, len(p.DeletedIDs))
	for _, id := range p.DeletedIDs {
		if id = strings.TrimSpace(id); id != "" {
			deleted = append(deleted, id)
		}
	}

	return Delta{
		Events:          coerceEvents(p.Events),
		DeletedIDs:      deleted,
		ServerTimestamp: ts,
	}, nil
}

// NewSnapshotPayload converts a Snapshot to its wire shape.
func NewSnapshotPayload(s Snapshot) SnapshotPayload {
	events := make([]EventPayload, 0, len(s.Events))
	for _, e := range s.Events {
		events = append(events, NewEventPayload(e))
	}
	return SnapshotPayload{Events: events, ServerTimestamp: FormatTime(s.ServerTimestamp)}
}

// NewDeltaPayload converts a Delta to its wire shape.
func NewDeltaPayload(d Delta) DeltaPayload {
	events := make([]EventPayload, 0, len(d.Events))
	for _, e := range d.Events {
		events = append(events, NewEventPayload(e))
	}
	deleted := d.DeletedIDs
	if deleted == nil {
		deleted = []string{}
	}
	return DeltaPayload{Events: events, DeletedIDs: deleted, ServerTimestamp: FormatTime(d.ServerTimestamp)}
}

func coerceEvents(payloads []EventPayload) []Event {
	events := make([]Event, 0, len(payloads))
	for _, p := range payloads {
		e, err := p.Event()
		if err != nil {
			log.Printf("Dropping event from payload: %v", err)
			continue
		}
		events = append(events, e)
	}
	return events
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
