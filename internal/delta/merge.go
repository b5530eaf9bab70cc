// Package delta folds incremental server updates into cached snapshots.
//
// Upserts are applied before tombstones, so an id that is both upserted and
// deleted in one delta ends up deleted.
package delta

import (
	"sort"
	"time"

	"github.com/meetassist/backend/internal/storage/models"
)

// Merge applies d to s and returns the new snapshot. Events are ordered by
// start time, then creation time, then id. An empty delta only moves the
// cursor, and applying the same delta twice yields the same result.
func Merge(s models.Snapshot, d models.Delta) models.Snapshot {
	events := mergeByID(s.Events, d.Events, d.DeletedIDs, eventID, eventLess)
	return models.Snapshot{Events: events, ServerTimestamp: d.ServerTimestamp}
}

// NewSnapshot builds a snapshot from a full fetch, dropping duplicate ids
// (the last occurrence wins) and applying the merge ordering.
func NewSnapshot(events []models.Event, serverTimestamp time.Time) models.Snapshot {
	return models.Snapshot{
		Events:          mergeByID(nil, events, nil, eventID, eventLess),
		ServerTimestamp: serverTimestamp,
	}
}

// Resync turns a full fetch into the delta that takes current to it: every
// fetched event is an upsert and every cached id missing from the fetch is a
// tombstone.
func Resync(current models.Snapshot, full models.Snapshot) models.Delta {
	present := make(map[string]struct{}, len(full.Events))
	for _, e := range full.Events {
		present[e.ID] = struct{}{}
	}

	deleted := []string{}
	for _, e := range current.Events {
		if _, ok := present[e.ID]; !ok {
			deleted = append(deleted, e.ID)
		}
	}

	return models.Delta{
		Events:          full.Events,
		DeletedIDs:      deleted,
		ServerTimestamp: full.ServerTimestamp,
	}
}

func eventID(e models.Event) string { return e.ID }

func eventLess(a, b models.Event) bool {
	if !a.StartTime.Equal(b.StartTime) {
		return a.StartTime.Before(b.StartTime)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// mergeByID is the shared shape of every stream: key the current items,
// overwrite with upserts, drop tombstones, sort.
func mergeByID[T any](current, upserts []T, deleted []string, id func(T) string, less func(a, b T) bool) []T {
	byID := make(map[string]T, len(current)+len(upserts))
	for _, item := range current {
		byID[id(item)] = item
	}
	for _, item := range upserts {
		byID[id(item)] = item
	}
	for _, key := range deleted {
		delete(byID, key)
	}

	out := make([]T, 0, len(byID))
	for _, item := range byID {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}
