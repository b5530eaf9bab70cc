package models

import "time"

// FeedSyncResult summarizes one ICS feed import.
type FeedSyncResult struct {
	FeedID      string    `json:"feedId"`
	EventsFound int       `json:"eventsFound"`
	Created     int       `json:"created"`
	Updated     int       `json:"updated"`
	Removed     int       `json:"removed"`
	Unchanged   int       `json:"unchanged"`
	SyncedAt    time.Time `json:"syncedAt"`
}
