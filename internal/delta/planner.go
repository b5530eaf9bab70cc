package delta

import (
	"time"

	"github.com/meetassist/backend/internal/storage/models"
)

// MergePlanner applies d to s using the same rules as Merge. Entries outside
// the snapshot range are dropped and the rollup is recomputed from the
// merged list.
func MergePlanner(s models.PlannerSnapshot, d models.PlannerDelta) models.PlannerSnapshot {
	entries := mergeByID(s.Entries, d.Entries, d.DeletedIDs, plannerID, plannerLess)
	return NewPlannerSnapshot(s.Range, entries, d.ServerTimestamp)
}

// NewPlannerSnapshot builds a planner snapshot for r from a full fetch.
func NewPlannerSnapshot(r models.PlannerRange, entries []models.PlannerEntry, serverTimestamp time.Time) models.PlannerSnapshot {
	merged := mergeByID(nil, entries, nil, plannerID, plannerLess)

	inRange := make([]models.PlannerEntry, 0, len(merged))
	for _, e := range merged {
		if r.Contains(e.Date) {
			inRange = append(inRange, e)
		}
	}

	total, days := Rollup(inRange)
	return models.PlannerSnapshot{
		Range:           r,
		Entries:         inRange,
		TotalHours:      total,
		DaysWithEntries: days,
		ServerTimestamp: serverTimestamp,
	}
}

// Rollup sums planned hours and counts distinct dates with entries.
// Negative hours count as zero.
func Rollup(entries []models.PlannerEntry) (totalHours float64, daysWithEntries int) {
	days := make(map[string]struct{})
	for _, e := range entries {
		if e.Hours > 0 {
			totalHours += e.Hours
		}
		days[e.Date] = struct{}{}
	}
	return totalHours, len(days)
}

func plannerID(e models.PlannerEntry) string { return e.ID }

func plannerLess(a, b models.PlannerEntry) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
