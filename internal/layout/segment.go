package layout

import (
	"time"

	"github.com/meetassist/backend/internal/storage/models"
)

// SegmentType tags the part of a multi-day event a segment covers.
type SegmentType string

const (
	SegmentWhole  SegmentType = ""
	SegmentStart  SegmentType = "start"
	SegmentMiddle SegmentType = "middle"
	SegmentEnd    SegmentType = "end"
)

// Segment is the part of an event that falls on one calendar day. Its
// embedded Event carries the clipped times and, for split events, the
// synthetic id "<eventID>-<YYYY-MM-DD>".
type Segment struct {
	models.Event
	OriginalEventID string      `json:"originalEventId"`
	SegmentType     SegmentType `json:"segmentType,omitempty"`
}

// Day returns the calendar day key of the segment.
func (s Segment) Day() string {
	return DayKey(s.StartTime)
}

// Window is a run of consecutive calendar days starting at Start.
type Window struct {
	Start time.Time
	Days  int
}

// NewWeek returns the seven-day window starting on the day of start.
func NewWeek(start time.Time) Window {
	return Window{Start: dayStart(start), Days: 7}
}

// End returns midnight after the last day of the window.
func (w Window) End() time.Time {
	s := dayStart(w.Start)
	return time.Date(s.Year(), s.Month(), s.Day()+w.Days, 0, 0, 0, 0, s.Location())
}

// Contains reports whether t falls on a day inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(dayStart(w.Start)) && t.Before(w.End())
}

// DayKeys lists the day keys of the window in order.
func (w Window) DayKeys() []string {
	s := dayStart(w.Start)
	keys := make([]string, 0, w.Days)
	for i := 0; i < w.Days; i++ {
		keys = append(keys, DayKey(time.Date(s.Year(), s.Month(), s.Day()+i, 0, 0, 0, 0, s.Location())))
	}
	return keys
}

// SplitMultiDay cuts events that cross midnight into per-day segments and
// drops segments outside the window. Single-day events pass through whole.
// All-day events must be filtered out beforehand.
func SplitMultiDay(events []models.Event, w Window) []Segment {
	var out []Segment
	for _, e := range events {
		for _, seg := range splitEvent(e) {
			if w.Contains(seg.StartTime) {
				out = append(out, seg)
			}
		}
	}
	return out
}

func splitEvent(e models.Event) []Segment {
	end := e.End()
	if end.Before(e.StartTime) {
		end = e.StartTime
	}

	first := dayStart(e.StartTime)
	// An end at exactly midnight belongs to the previous day.
	last := dayStart(end)
	if end.Equal(last) && last.After(first) {
		last = time.Date(last.Year(), last.Month(), last.Day()-1, 0, 0, 0, 0, last.Location())
	}
	if !last.After(first) {
		return []Segment{wholeEvent(e)}
	}

	var segments []Segment
	for day := first; !day.After(last); day = nextDay(day) {
		segStart, segEnd := day, nextDay(day)
		kind := SegmentMiddle
		switch {
		case day.Equal(first):
			segStart, kind = e.StartTime, SegmentStart
		case day.Equal(last):
			segEnd, kind = end, SegmentEnd
		}
		segments = append(segments, clip(e, segStart, segEnd, kind))
	}
	return segments
}

func clip(e models.Event, start, end time.Time, kind SegmentType) Segment {
	seg := Segment{Event: e, OriginalEventID: e.ID, SegmentType: kind}
	seg.ID = e.ID + "-" + DayKey(start)
	seg.StartTime = start
	seg.EndTime = &end
	return seg
}

func wholeEvent(e models.Event) Segment {
	return Segment{Event: e, OriginalEventID: e.ID, SegmentType: SegmentWhole}
}

func nextDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}
