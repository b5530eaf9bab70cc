package layout

import (
	"time"

	"github.com/meetassist/backend/internal/storage/models"
)

// WeekLayout is everything a renderer needs to draw one week.
type WeekLayout struct {
	Days       []string                  `json:"days"`
	DayLayouts map[string][]OverlapGroup `json:"dayLayouts"`
	RowHeights RowHeights                `json:"rowHeights"`
	Placements map[string]Placement      `json:"placements"`
	AllDay     []models.Event            `json:"allDay"`
}

// BuildWeek runs the layout pipeline for the week starting on the day of
// start: all-day events are set aside, the rest are split per day, grouped
// per day, and placed against shared row heights. Event times must already
// be in the rendering zone; start decides the zone of the window.
func BuildWeek(events []models.Event, start time.Time, m Metrics) WeekLayout {
	window := NewWeek(start)

	var timed []models.Event
	allDay := []models.Event{}
	for _, e := range events {
		if IsAllDay(e) {
			if window.Contains(e.StartTime) {
				allDay = append(allDay, e)
			}
			continue
		}
		timed = append(timed, e.In(window.Start.Location()))
	}

	byDay := make(map[string][]Segment)
	for _, seg := range SplitMultiDay(timed, window) {
		byDay[seg.Day()] = append(byDay[seg.Day()], seg)
	}

	keys := window.DayKeys()
	dayLayouts := make(map[string][]OverlapGroup, len(keys))
	ordered := make([][]OverlapGroup, 0, len(keys))
	for _, key := range keys {
		groups := GroupOverlaps(byDay[key])
		if groups == nil {
			groups = []OverlapGroup{}
		}
		dayLayouts[key] = groups
		ordered = append(ordered, groups)
	}

	rows := ComputeRowHeights(ordered, m)

	placements := make(map[string]Placement)
	for _, groups := range ordered {
		for _, g := range groups {
			for lane, seg := range g {
				placements[seg.ID] = Place(seg, lane, len(g), rows, m)
			}
		}
	}

	return WeekLayout{
		Days:       keys,
		DayLayouts: dayLayouts,
		RowHeights: rows,
		Placements: placements,
		AllDay:     allDay,
	}
}
