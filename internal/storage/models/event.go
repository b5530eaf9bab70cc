// Package models contains the domain models for the application.
package models

import (
	"time"
)

// Event is a calendar event as the engine sees it after boundary coercion.
// EndTime may be nil; layout treats a missing end as a one-hour event.
type Event struct {
	ID               string     `json:"id"`
	StartTime        time.Time  `json:"startTime"`
	EndTime          *time.Time `json:"endTime"`
	Title            string     `json:"title"`
	MeetingPlatform  string     `json:"meetingPlatform"`
	MeetingURL       *string    `json:"meetingUrl"`
	BotStatus        *string    `json:"botStatus"`
	Status           string     `json:"status"`
	CreatorEmail     *string    `json:"creatorEmail"`
	CalendarTitle    *string    `json:"calendarTitle"`
	NotetakerEnabled bool       `json:"notetakerEnabled"`

	// Source names where the event came from (a feed id, "api", ...).
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Event status constants
const (
	EventStatusConfirmed = "CONFIRMED"
	EventStatusTentative = "TENTATIVE"
	EventStatusCancelled = "CANCELLED"
)

// Bot status constants
const (
	BotStatusScheduled = "SCHEDULED"
	BotStatusJoining   = "JOINING"
	BotStatusInCall    = "IN_CALL"
	BotStatusDone      = "DONE"
	BotStatusFailed    = "FAILED"
)

// Meeting platform constants
const (
	PlatformNone       = ""
	PlatformZoom       = "zoom"
	PlatformGoogleMeet = "google_meet"
	PlatformTeams      = "teams"
	PlatformWebex      = "webex"
	PlatformOther      = "other"
)

// End returns the effective end of the event: EndTime when present,
// otherwise one hour after StartTime.
func (e Event) End() time.Time {
	if e.EndTime == nil {
		return e.StartTime.Add(time.Hour)
	}
	return *e.EndTime
}

// In returns a copy of the event with its times converted to loc.
func (e Event) In(loc *time.Location) Event {
	if loc == nil {
		return e
	}
	e.StartTime = e.StartTime.In(loc)
	if e.EndTime != nil {
		end := e.EndTime.In(loc)
		e.EndTime = &end
	}
	return e
}

// Snapshot is the client-held copy of the event list together with the
// server cursor it is valid for.
type Snapshot struct {
	Events          []Event   `json:"events"`
	ServerTimestamp time.Time `json:"serverTimestamp"`
}

// Delta is an incremental update: upserted events, tombstoned ids and the
// cursor for the next fetch.
type Delta struct {
	Events          []Event   `json:"events"`
	DeletedIDs      []string  `json:"deletedIds"`
	ServerTimestamp time.Time `json:"serverTimestamp"`
}

// IsEmpty reports whether the delta carries no upserts and no tombstones.
func (d Delta) IsEmpty() bool {
	return len(d.Events) == 0 && len(d.DeletedIDs) == 0
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue returns the string value or empty string if nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
