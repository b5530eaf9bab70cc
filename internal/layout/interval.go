// Package layout positions calendar events on a seven-day time grid.
//
// Everything in this package is pure: callers pass events already converted
// to the zone they render in, and get plain values back.
package layout

import (
	"time"

	"github.com/meetassist/backend/internal/storage/models"
)

// allDaySpan is the exact span that marks an event as all-day.
const allDaySpan = 24 * time.Hour

// DurationHours returns the event length in hours. A missing end counts as
// one hour and a negative span is clamped to zero.
func DurationHours(e models.Event) float64 {
	if e.EndTime == nil {
		return 1
	}
	d := e.EndTime.Sub(e.StartTime)
	if d < 0 {
		return 0
	}
	return d.Hours()
}

// StartHours returns the hour of day of the event start as a fraction.
func StartHours(e models.Event) float64 {
	return float64(e.StartTime.Hour()) + float64(e.StartTime.Minute())/60
}

// EndHours is StartHours plus the duration. It may exceed 24 for events
// that run past midnight.
func EndHours(e models.Event) float64 {
	return StartHours(e) + DurationHours(e)
}

// IsAllDay reports whether the event spans exactly 24 hours.
func IsAllDay(e models.Event) bool {
	return e.EndTime != nil && e.EndTime.Sub(e.StartTime) == allDaySpan
}

// Overlaps reports whether a and b intersect as half-open hour intervals.
// Back-to-back events do not overlap.
func Overlaps(a, b models.Event) bool {
	return !(EndHours(a) <= StartHours(b) || StartHours(a) >= EndHours(b))
}

// dayStart returns local midnight of the day t falls on.
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayKey formats the calendar day of t.
func DayKey(t time.Time) string {
	return t.Format(models.DateLayout)
}
