package delta

import (
	"testing"

	"github.com/meetassist/backend/internal/storage/models"
)

func TestMergePlanner_RecomputesRollup(t *testing.T) {
	t.Parallel()

	r := models.PlannerRange{From: "2024-03-01", To: "2024-03-07"}
	s := NewPlannerSnapshot(r, []models.PlannerEntry{
		{ID: "p1", Date: "2024-03-01", Hours: 2},
		{ID: "p2", Date: "2024-03-01", Hours: 1.5},
		{ID: "p3", Date: "2024-03-03", Hours: 4},
	}, t0)

	if s.TotalHours != 7.5 || s.DaysWithEntries != 2 {
		t.Fatalf("initial rollup = %v/%d, want 7.5/2", s.TotalHours, s.DaysWithEntries)
	}

	d := models.PlannerDelta{
		Entries: []models.PlannerEntry{
			{ID: "p2", Date: "2024-03-02", Hours: 3},
			{ID: "p4", Date: "2024-04-01", Hours: 8},
		},
		DeletedIDs:      []string{"p3"},
		ServerTimestamp: t1,
	}

	got := MergePlanner(s, d)
	if len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", got.Entries)
	}
	if got.Entries[0].ID != "p1" || got.Entries[1].ID != "p2" {
		t.Fatalf("unexpected order: %+v", got.Entries)
	}
	if got.TotalHours != 5 || got.DaysWithEntries != 2 {
		t.Fatalf("rollup = %v/%d, want 5/2", got.TotalHours, got.DaysWithEntries)
	}
	if !got.ServerTimestamp.Equal(t1) {
		t.Fatalf("cursor mismatch: %v", got.ServerTimestamp)
	}

	again := MergePlanner(got, d)
	if again.TotalHours != got.TotalHours || len(again.Entries) != len(got.Entries) {
		t.Fatalf("planner merge not idempotent: %+v vs %+v", again, got)
	}
}

func TestRollup_IgnoresNegativeHours(t *testing.T) {
	t.Parallel()

	total, days := Rollup([]models.PlannerEntry{
		{ID: "a", Date: "2024-03-01", Hours: -3},
		{ID: "b", Date: "2024-03-02", Hours: 1},
	})
	if total != 1 || days != 2 {
		t.Fatalf("rollup = %v/%d, want 1/2", total, days)
	}
}
