package layout

import (
	"testing"

	"github.com/meetassist/backend/internal/storage/models"
)

func TestBuildWeek(t *testing.T) {
	t.Parallel()

	m := testMetrics()
	events := []models.Event{
		event("a", "2024-03-04T09:00", "2024-03-04T10:00"),
		event("b", "2024-03-04T09:30", "2024-03-04T10:30"),
		event("holiday", "2024-03-05T00:00", "2024-03-06T00:00"),
		event("trip", "2024-03-06T22:00", "2024-03-08T02:00"),
		event("next-week", "2024-03-12T09:00", "2024-03-12T10:00"),
	}

	wl := BuildWeek(events, at("2024-03-04T15:00"), m)

	if len(wl.Days) != 7 || wl.Days[0] != "2024-03-04" || wl.Days[6] != "2024-03-10" {
		t.Fatalf("unexpected days: %v", wl.Days)
	}
	if len(wl.AllDay) != 1 || wl.AllDay[0].ID != "holiday" {
		t.Fatalf("unexpected all-day events: %+v", wl.AllDay)
	}
	if groups := wl.DayLayouts["2024-03-04"]; len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("expected one group of two on monday, got %v", groupIDs(groups))
	}
	if groups := wl.DayLayouts["2024-03-05"]; len(groups) != 0 {
		t.Fatalf("expected all-day event excluded from grid, got %v", groupIDs(groups))
	}
	for _, id := range []string{"trip-2024-03-06", "trip-2024-03-07", "trip-2024-03-08"} {
		if _, ok := wl.Placements[id]; !ok {
			t.Fatalf("missing placement for %s", id)
		}
	}
	if _, ok := wl.Placements["next-week"]; ok {
		t.Fatal("unexpected placement for event outside the window")
	}

	a, b := wl.Placements["a"], wl.Placements["b"]
	if a.LeftOffset != 0 || a.RightOffset != m.OffsetPerEvent {
		t.Fatalf("lane 0 offsets mismatch: %+v", a)
	}
	if b.LeftOffset != m.OffsetPerEvent || b.RightOffset != 0 {
		t.Fatalf("lane 1 offsets mismatch: %+v", b)
	}
	// The middle segment of the trip touches every hour.
	for h, height := range wl.RowHeights {
		if height == m.EmptyRowHeight {
			t.Fatalf("hour %d unexpectedly empty", h)
		}
	}
}
