package layout

import (
	"testing"
	"time"

	"github.com/meetassist/backend/internal/storage/models"
)

func at(value string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func event(id, start, end string) models.Event {
	e := models.Event{ID: id, StartTime: at(start), Status: models.EventStatusConfirmed}
	if end != "" {
		t := at(end)
		e.EndTime = &t
	}
	return e
}

func TestDurationHours(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   models.Event
		out  float64
	}{
		{name: "normal", in: event("a", "2024-01-01T09:00", "2024-01-01T10:30"), out: 1.5},
		{name: "missing_end", in: event("b", "2024-01-01T09:00", ""), out: 1},
		{name: "negative_clamped", in: event("c", "2024-01-01T10:00", "2024-01-01T09:00"), out: 0},
		{name: "multi_day", in: event("d", "2024-03-01T22:00", "2024-03-03T02:00"), out: 28},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DurationHours(tc.in); got != tc.out {
				t.Fatalf("DurationHours() = %v, want %v", got, tc.out)
			}
		})
	}
}

func TestEndHours_ExceedsMidnight(t *testing.T) {
	t.Parallel()

	e := event("a", "2024-01-01T23:00", "2024-01-02T01:30")
	if got := StartHours(e); got != 23 {
		t.Fatalf("start hours mismatch: %v", got)
	}
	if got := EndHours(e); got != 25.5 {
		t.Fatalf("end hours mismatch: %v", got)
	}
}

func TestIsAllDay(t *testing.T) {
	t.Parallel()

	if !IsAllDay(event("a", "2024-01-01T00:00", "2024-01-02T00:00")) {
		t.Fatal("expected exact 24h span to be all-day")
	}
	if IsAllDay(event("b", "2024-01-01T00:00", "2024-01-02T00:01")) {
		t.Fatal("expected 24h01m span not to be all-day")
	}
	if IsAllDay(event("c", "2024-01-01T00:00", "")) {
		t.Fatal("expected open-ended event not to be all-day")
	}
}

func TestOverlaps_SymmetricAndHalfOpen(t *testing.T) {
	t.Parallel()

	events := []models.Event{
		event("a", "2024-01-01T09:00", "2024-01-01T10:00"),
		event("b", "2024-01-01T09:30", "2024-01-01T10:30"),
		event("c", "2024-01-01T10:00", "2024-01-01T11:00"),
		event("d", "2024-01-01T12:00", ""),
		event("e", "2024-01-01T12:30", "2024-01-01T12:00"),
	}

	for _, a := range events {
		for _, b := range events {
			if Overlaps(a, b) != Overlaps(b, a) {
				t.Fatalf("overlap not symmetric for %s/%s", a.ID, b.ID)
			}
		}
	}

	if !Overlaps(events[0], events[1]) {
		t.Fatal("expected a and b to overlap")
	}
	if Overlaps(events[0], events[2]) {
		t.Fatal("expected back-to-back a and c not to overlap")
	}
}
