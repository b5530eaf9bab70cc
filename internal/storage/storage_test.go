package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/meetassist/backend/internal/notify"
	"github.com/meetassist/backend/internal/storage/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "meetassist.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// frozen returns a clock that never moves, so every stamp comes from the
// update clock's tie-breaking.
func frozen(value string) func() time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func testEvent(id, start string) *models.Event {
	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		panic(err)
	}
	end := t.Add(time.Hour)
	return &models.Event{
		ID:              id,
		Title:           "Meeting " + id,
		StartTime:       t,
		EndTime:         &end,
		Status:          models.EventStatusConfirmed,
		MeetingPlatform: models.PlatformZoom,
		MeetingURL:      models.StringPtr("https://zoom.us/j/" + id),
		Source:          "test",
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
}

func TestEventRepository_SnapshotAndDelta(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewEventRepository(newTestDB(t))
	repo.now = frozen("2026-03-02T08:00:00Z")

	for _, e := range []*models.Event{
		testEvent("b", "2026-03-02T10:00:00Z"),
		testEvent("a", "2026-03-02T09:00:00Z"),
	} {
		if err := repo.Upsert(ctx, e); err != nil {
			t.Fatalf("upsert %s: %v", e.ID, err)
		}
	}

	snap, err := repo.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Events) != 2 || snap.Events[0].ID != "a" || snap.Events[1].ID != "b" {
		t.Fatalf("snapshot events mismatch: %+v", snap.Events)
	}
	if !snap.ServerTimestamp.After(frozen("2026-03-02T08:00:00Z")()) {
		t.Fatalf("cursor should be past the frozen clock: %v", snap.ServerTimestamp)
	}

	empty, err := repo.Since(ctx, snap.ServerTimestamp)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if !empty.IsEmpty() || !empty.ServerTimestamp.Equal(snap.ServerTimestamp) {
		t.Fatalf("expected empty delta at the same cursor, got %+v", empty)
	}

	changed := testEvent("a", "2026-03-02T09:30:00Z")
	changed.BotStatus = models.StringPtr(models.BotStatusDone)
	if err := repo.Upsert(ctx, changed); err != nil {
		t.Fatalf("update a: %v", err)
	}
	if err := repo.Delete(ctx, "b"); err != nil {
		t.Fatalf("delete b: %v", err)
	}

	d, err := repo.Since(ctx, snap.ServerTimestamp)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(d.Events) != 1 || d.Events[0].ID != "a" {
		t.Fatalf("delta events mismatch: %+v", d.Events)
	}
	if models.StringValue(d.Events[0].BotStatus) != models.BotStatusDone {
		t.Fatalf("bot status mismatch: %v", d.Events[0].BotStatus)
	}
	if !d.Events[0].CreatedAt.Equal(snap.Events[0].CreatedAt) {
		t.Fatalf("createdAt should survive updates: %v vs %v", d.Events[0].CreatedAt, snap.Events[0].CreatedAt)
	}
	if len(d.DeletedIDs) != 1 || d.DeletedIDs[0] != "b" {
		t.Fatalf("deleted ids mismatch: %v", d.DeletedIDs)
	}
	if !d.ServerTimestamp.After(snap.ServerTimestamp) {
		t.Fatalf("cursor did not advance: %v", d.ServerTimestamp)
	}
}

func TestEventRepository_DeleteMissing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewEventRepository(newTestDB(t))

	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.Upsert(ctx, testEvent("x", "2026-03-02T09:00:00Z")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Delete(ctx, "x"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after delete should be ErrNotFound, got %v", err)
	}
}

func TestEventRepository_UpsertRevivesTombstone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewEventRepository(newTestDB(t))

	if err := repo.Upsert(ctx, testEvent("x", "2026-03-02T09:00:00Z")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Delete(ctx, "x"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Upsert(ctx, testEvent("x", "2026-03-02T11:00:00Z")); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, "x")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StartTime.Hour() != 11 {
		t.Fatalf("start mismatch: %v", got.StartTime)
	}
	if got.EndTime == nil || got.EndTime.Sub(got.StartTime) != time.Hour {
		t.Fatalf("end mismatch: %v", got.EndTime)
	}
}

func TestEventRepository_ListBySource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewEventRepository(newTestDB(t))

	feed := testEvent("feed:1", "2026-03-02T09:00:00Z")
	feed.Source = "feed"
	manual := testEvent("m1", "2026-03-02T10:00:00Z")
	manual.Source = "manual"
	manual.EndTime = nil
	for _, e := range []*models.Event{feed, manual} {
		if err := repo.Upsert(ctx, e); err != nil {
			t.Fatalf("upsert %s: %v", e.ID, err)
		}
	}

	events, err := repo.ListBySource(ctx, "feed")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].ID != "feed:1" {
		t.Fatalf("list mismatch: %+v", events)
	}

	got, err := repo.GetByID(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EndTime != nil {
		t.Fatalf("expected missing end to stay missing, got %v", got.EndTime)
	}

	n, err := repo.Count(ctx)
	if err != nil || n != 2 {
		t.Fatalf("count mismatch: %d (%v)", n, err)
	}
}

func TestPlannerRepository_RangeAndDelta(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewPlannerRepository(newTestDB(t))
	week := models.PlannerRange{From: "2026-03-02", To: "2026-03-08"}

	entries := []*models.PlannerEntry{
		{ID: "p1", Date: "2026-03-02", Title: "Deep work", Hours: 3},
		{ID: "p2", Date: "2026-03-02", Title: "Review", Hours: 1.5},
		{ID: "p3", Date: "2026-03-04", Title: "Planning", Hours: 2},
		{ID: "p4", Date: "2026-03-12", Title: "Later", Hours: 8},
	}
	for _, e := range entries {
		if err := repo.Upsert(ctx, e); err != nil {
			t.Fatalf("upsert %s: %v", e.ID, err)
		}
	}

	snap, err := repo.Snapshot(ctx, week)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Entries) != 3 || snap.TotalHours != 6.5 || snap.DaysWithEntries != 2 {
		t.Fatalf("snapshot mismatch: %d entries, %v hours, %d days", len(snap.Entries), snap.TotalHours, snap.DaysWithEntries)
	}

	moved := *entries[2]
	moved.Date = "2026-03-20"
	if err := repo.Upsert(ctx, &moved); err != nil {
		t.Fatalf("move p3: %v", err)
	}
	if err := repo.Delete(ctx, "p2"); err != nil {
		t.Fatalf("delete p2: %v", err)
	}

	d, err := repo.Since(ctx, week, snap.ServerTimestamp)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(d.Entries) != 0 {
		t.Fatalf("expected no in-range upserts, got %+v", d.Entries)
	}
	if len(d.DeletedIDs) != 2 || d.DeletedIDs[0] != "p3" || d.DeletedIDs[1] != "p2" {
		t.Fatalf("deleted ids mismatch: %v", d.DeletedIDs)
	}
}

func TestPlannerRepository_RejectsBadDate(t *testing.T) {
	t.Parallel()

	repo := NewPlannerRepository(newTestDB(t))
	err := repo.Upsert(context.Background(), &models.PlannerEntry{Date: "March 2nd", Hours: 1})
	if !errors.Is(err, models.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestNotificationRepository_DeliverAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewNotificationRepository(newTestDB(t))
	base := frozen("2026-03-02T08:00:00Z")()

	var sink notify.Sink = repo
	err := sink.Deliver(ctx, []notify.Notification{
		{
			ID:        "n1",
			Title:     "New event",
			CreatedAt: base,
			Metadata:  notify.Metadata{Kind: notify.KindNewEvent, EventID: "a", StartTime: base},
		},
		{
			ID:        "n2",
			Title:     "Meeting link updated",
			CreatedAt: base.Add(time.Minute),
			Metadata: notify.Metadata{
				Kind:    notify.KindMeetingLinkUpdated,
				EventID: "a",
				Change: &notify.Change{
					Field:   "meetingUrl",
					Label:   "Meeting link",
					Current: models.StringPtr("https://meet.google.com/abc"),
					Action:  notify.ActionAdded,
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	got, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "n2" || got[1].ID != "n1" {
		t.Fatalf("list order mismatch: %+v", got)
	}
	if got[0].Metadata.Change == nil || got[0].Metadata.Change.Action != notify.ActionAdded {
		t.Fatalf("change metadata lost: %+v", got[0].Metadata)
	}

	limited, err := repo.List(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("limit mismatch: %d (%v)", len(limited), err)
	}
}
