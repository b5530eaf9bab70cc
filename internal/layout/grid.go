package layout

import (
	"math"
)

// HoursPerDay is the number of rows in the grid.
const HoursPerDay = 24

// Metrics are the grid sizing constants, in pixels.
type Metrics struct {
	HeaderHeight     float64 `json:"headerHeight"`
	BaseRowHeight    float64 `json:"baseRowHeight"`
	EmptyRowHeight   float64 `json:"emptyRowHeight"`
	BaseEventHeight  float64 `json:"baseEventHeight"`
	HeightPerOverlap float64 `json:"heightPerOverlap"`
	OffsetPerEvent   float64 `json:"offsetPerEvent"`
}

// DefaultMetrics returns the stock grid sizing.
func DefaultMetrics() Metrics {
	return Metrics{
		HeaderHeight:     0,
		BaseRowHeight:    64,
		EmptyRowHeight:   40,
		BaseEventHeight:  64,
		HeightPerOverlap: 28,
		OffsetPerEvent:   12,
	}
}

// RowHeights are the shared heights of the 24 hourly rows.
type RowHeights [HoursPerDay]float64

// Placement is where a segment sits inside its day column.
type Placement struct {
	Top         float64 `json:"top"`
	Height      float64 `json:"height"`
	LeftOffset  float64 `json:"leftOffset"`
	RightOffset float64 `json:"rightOffset"`
}

// ComputeRowHeights sizes each hour from the busiest day of the week. A day
// whose largest group touching the hour has n >= 2 members asks for
// BaseEventHeight + (n-1)*HeightPerOverlap, even when single events touch
// the hour too; a day touched only by single events asks for BaseRowHeight.
// An hour no group touches on any day gets EmptyRowHeight.
func ComputeRowHeights(days [][]OverlapGroup, m Metrics) RowHeights {
	var rows RowHeights
	for h := 0; h < HoursPerDay; h++ {
		touched := false
		height := 0.0
		for _, groups := range days {
			largest := 0
			for _, g := range groups {
				if g.touchesHour(h) && len(g) > largest {
					largest = len(g)
				}
			}
			switch {
			case largest == 0:
				continue
			case largest >= 2:
				height = math.Max(height, m.BaseEventHeight+float64(largest-1)*m.HeightPerOverlap)
			default:
				height = math.Max(height, m.BaseRowHeight)
			}
			touched = true
		}
		if !touched {
			height = m.EmptyRowHeight
		}
		rows[h] = height
	}
	return rows
}

// Place positions a segment given its lane in a group of groupSize members.
func Place(seg Segment, lane, groupSize int, rows RowHeights, m Metrics) Placement {
	start := clampHours(StartHours(seg.Event))
	end := clampHours(EndHours(seg.Event))

	startHour := int(math.Floor(start))
	if startHour >= HoursPerDay {
		startHour = HoursPerDay - 1
	}

	top := m.HeaderHeight
	for h := 0; h < startHour; h++ {
		top += rows[h]
	}
	top += (start - float64(startHour)) * rows[startHour]

	height := 0.0
	for h := startHour; h < HoursPerDay && float64(h) < end; h++ {
		lo := math.Max(start, float64(h))
		hi := math.Min(end, float64(h+1))
		if hi > lo {
			height += (hi - lo) * rows[h]
		}
	}
	if height < m.BaseEventHeight {
		height = m.BaseEventHeight
	}

	if groupSize < 1 {
		groupSize = 1
	}
	return Placement{
		Top:         top,
		Height:      height,
		LeftOffset:  float64(lane) * m.OffsetPerEvent,
		RightOffset: float64(groupSize-1-lane) * m.OffsetPerEvent,
	}
}

func clampHours(h float64) float64 {
	return math.Max(0, math.Min(h, HoursPerDay))
}
