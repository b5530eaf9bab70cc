package models

import (
	"errors"
	"time"
)

// DateLayout is the key format used for calendar days.
const DateLayout = "2006-01-02"

// ErrInvalidEntry is returned for planner entries without a usable date.
var ErrInvalidEntry = errors.New("invalid planner entry")

// PlannerEntry is a block of planned hours on a single date.
type PlannerEntry struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"` // YYYY-MM-DD
	Title     string    `json:"title"`
	Hours     float64   `json:"hours"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlannerRange is an inclusive range of dates.
type PlannerRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Contains reports whether date (YYYY-MM-DD) lies inside the range.
func (r PlannerRange) Contains(date string) bool {
	return date >= r.From && date <= r.To
}

// PlannerSnapshot is the cached planner state for one date range.
// TotalHours and DaysWithEntries are derived from Entries.
type PlannerSnapshot struct {
	Range           PlannerRange   `json:"range"`
	Entries         []PlannerEntry `json:"entries"`
	TotalHours      float64        `json:"totalHours"`
	DaysWithEntries int            `json:"daysWithEntries"`
	ServerTimestamp time.Time      `json:"serverTimestamp"`
}

// PlannerDelta is an incremental planner update.
type PlannerDelta struct {
	Entries         []PlannerEntry `json:"entries"`
	DeletedIDs      []string       `json:"deletedIds"`
	ServerTimestamp time.Time      `json:"serverTimestamp"`
}
