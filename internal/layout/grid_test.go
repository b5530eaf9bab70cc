package layout

import (
	"testing"

	"github.com/meetassist/backend/internal/storage/models"
)

func testMetrics() Metrics {
	return Metrics{
		HeaderHeight:     10,
		BaseRowHeight:    60,
		EmptyRowHeight:   20,
		BaseEventHeight:  50,
		HeightPerOverlap: 25,
		OffsetPerEvent:   8,
	}
}

func TestComputeRowHeights_BusiestDayWins(t *testing.T) {
	t.Parallel()

	m := testMetrics()
	monday := GroupEvents([]models.Event{
		event("a", "2024-03-04T09:00", "2024-03-04T10:00"),
	})
	tuesday := GroupEvents([]models.Event{
		event("b", "2024-03-05T09:00", "2024-03-05T10:00"),
		event("c", "2024-03-05T09:30", "2024-03-05T10:30"),
		event("d", "2024-03-05T09:45", "2024-03-05T10:15"),
	})

	rows := ComputeRowHeights([][]OverlapGroup{monday, tuesday}, m)

	if rows[8] != m.EmptyRowHeight {
		t.Fatalf("hour 8 = %v, want empty %v", rows[8], m.EmptyRowHeight)
	}
	if want := m.BaseEventHeight + 2*m.HeightPerOverlap; rows[9] != want {
		t.Fatalf("hour 9 = %v, want %v", rows[9], want)
	}
	if want := m.BaseEventHeight + 2*m.HeightPerOverlap; rows[10] != want {
		t.Fatalf("hour 10 = %v, want %v", rows[10], want)
	}
	if rows[11] != m.EmptyRowHeight {
		t.Fatalf("hour 11 = %v, want empty", rows[11])
	}
}

func TestComputeRowHeights_SingleEventUsesBaseRow(t *testing.T) {
	t.Parallel()

	m := testMetrics()
	day := GroupEvents([]models.Event{event("a", "2024-03-04T13:00", "2024-03-04T15:00")})
	rows := ComputeRowHeights([][]OverlapGroup{day}, m)

	if rows[13] != m.BaseRowHeight || rows[14] != m.BaseRowHeight {
		t.Fatalf("expected base rows, got %v %v", rows[13], rows[14])
	}
	if rows[15] != m.EmptyRowHeight {
		t.Fatalf("hour 15 = %v, want empty", rows[15])
	}
}

func TestComputeRowHeights_OverlapBeatsSingleOnSameDay(t *testing.T) {
	t.Parallel()

	m := testMetrics()
	m.BaseRowHeight = 100
	m.BaseEventHeight = 40
	m.HeightPerOverlap = 10

	day := GroupEvents([]models.Event{
		event("a", "2024-03-04T09:00", "2024-03-04T09:20"),
		event("b", "2024-03-04T09:10", "2024-03-04T09:30"),
		event("c", "2024-03-04T09:40", "2024-03-04T10:00"),
	})
	if len(day) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(day))
	}

	rows := ComputeRowHeights([][]OverlapGroup{day}, m)
	if rows[9] != 50 {
		t.Fatalf("hour 9 = %v, want 50", rows[9])
	}

	// A quiet day with only a single event still wins by its own candidate.
	other := GroupEvents([]models.Event{event("d", "2024-03-05T09:00", "2024-03-05T09:30")})
	rows = ComputeRowHeights([][]OverlapGroup{day, other}, m)
	if rows[9] != m.BaseRowHeight {
		t.Fatalf("hour 9 across days = %v, want %v", rows[9], m.BaseRowHeight)
	}
}

func TestPlace_TopHeightAndLanes(t *testing.T) {
	t.Parallel()

	m := testMetrics()
	var rows RowHeights
	for h := range rows {
		rows[h] = 20
	}
	rows[9] = 100
	rows[10] = 40

	seg := wholeEvent(event("a", "2024-03-04T09:30", "2024-03-04T10:30"))
	p := Place(seg, 1, 3, rows, m)

	if want := 10.0 + 9*20 + 0.5*100; p.Top != want {
		t.Fatalf("top = %v, want %v", p.Top, want)
	}
	if want := 0.5*100 + 0.5*40; p.Height != want {
		t.Fatalf("height = %v, want %v", p.Height, want)
	}
	if p.LeftOffset != 8 || p.RightOffset != 8 {
		t.Fatalf("offsets = %v/%v, want 8/8", p.LeftOffset, p.RightOffset)
	}
}

func TestPlace_FloorsHeight(t *testing.T) {
	t.Parallel()

	m := testMetrics()
	var rows RowHeights
	for h := range rows {
		rows[h] = 20
	}

	p := Place(wholeEvent(event("short", "2024-03-04T09:00", "2024-03-04T09:15")), 0, 1, rows, m)
	if p.Height != m.BaseEventHeight {
		t.Fatalf("height = %v, want floor %v", p.Height, m.BaseEventHeight)
	}
	if p.LeftOffset != 0 || p.RightOffset != 0 {
		t.Fatalf("expected zero offsets, got %v/%v", p.LeftOffset, p.RightOffset)
	}
}
