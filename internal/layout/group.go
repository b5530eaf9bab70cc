package layout

import (
	"sort"

	"github.com/meetassist/backend/internal/storage/models"
)

// OverlapGroup is a cluster of same-day segments that intersect directly or
// through a chain. Member order is the lane order.
type OverlapGroup []Segment

// GroupOverlaps clusters the segments of one day.
//
// Segments are visited by start hour and each joins the first existing group
// holding a member it overlaps, otherwise it opens a new group. Groups are
// never merged: a segment that bridges two earlier groups joins only the
// first of them.
func GroupOverlaps(segments []Segment) []OverlapGroup {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return StartHours(sorted[i].Event) < StartHours(sorted[j].Event)
	})

	var groups []OverlapGroup
	for _, seg := range sorted {
		placed := false
		for gi := range groups {
			if groups[gi].overlaps(seg) {
				groups[gi] = append(groups[gi], seg)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, OverlapGroup{seg})
		}
	}

	return groups
}

// GroupEvents groups plain single-day events.
func GroupEvents(events []models.Event) []OverlapGroup {
	segments := make([]Segment, 0, len(events))
	for _, e := range events {
		segments = append(segments, wholeEvent(e))
	}
	return GroupOverlaps(segments)
}

func (g OverlapGroup) overlaps(seg Segment) bool {
	for _, member := range g {
		if Overlaps(member.Event, seg.Event) {
			return true
		}
	}
	return false
}

// touchesHour reports whether any member intersects [h, h+1).
func (g OverlapGroup) touchesHour(h int) bool {
	lo, hi := float64(h), float64(h+1)
	for _, member := range g {
		if StartHours(member.Event) < hi && EndHours(member.Event) > lo {
			return true
		}
	}
	return false
}
