package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meetassist/backend/internal/delta"
	"github.com/meetassist/backend/internal/storage/models"
)

const plannerColumns = `id, date, title, hours, notes, created_at, updated_at, deleted_at`

// PlannerRepository stores day planner entries.
type PlannerRepository struct {
	BaseRepository
	clock updateClock
}

// NewPlannerRepository creates a new planner repository.
func NewPlannerRepository(db *DB) *PlannerRepository {
	return &PlannerRepository{
		BaseRepository: NewBaseRepository(db),
		clock:          updateClock{table: "planner_entries"},
	}
}

// Upsert inserts or replaces a planner entry.
func (r *PlannerRepository) Upsert(ctx context.Context, e *models.PlannerEntry) error {
	if _, err := time.Parse(models.DateLayout, e.Date); err != nil {
		return fmt.Errorf("planner entry date %q: %w", e.Date, models.ErrInvalidEntry)
	}
	if e.ID == "" {
		e.ID = GenerateID()
	}

	stamp, err := r.clock.begin(ctx, r.DB(), r.Now())
	if err != nil {
		return err
	}
	defer r.clock.end()

	var createdAt string
	err = r.DB().QueryRowContext(ctx, `
		INSERT INTO planner_entries (id, date, title, hours, notes, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			title = excluded.title,
			hours = excluded.hours,
			notes = excluded.notes,
			updated_at = excluded.updated_at,
			deleted_at = NULL
		RETURNING created_at
	`, e.ID, e.Date, e.Title, e.Hours, e.Notes, formatTime(stamp), formatTime(stamp)).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("upserting planner entry: %w", err)
	}

	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return err
	}
	e.UpdatedAt = stamp
	return nil
}

// Delete tombstones a planner entry.
func (r *PlannerRepository) Delete(ctx context.Context, id string) error {
	stamp, err := r.clock.begin(ctx, r.DB(), r.Now())
	if err != nil {
		return err
	}
	defer r.clock.end()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE planner_entries SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, formatTime(stamp), formatTime(stamp), id)
	if err != nil {
		return fmt.Errorf("deleting planner entry: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("planner entry %s: %w", id, ErrNotFound)
	}

	return nil
}

// Snapshot returns the live entries dated within r, with the rollup filled in.
func (r *PlannerRepository) Snapshot(ctx context.Context, rng models.PlannerRange) (models.PlannerSnapshot, error) {
	var snap models.PlannerSnapshot
	err := r.Transaction(func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT "+plannerColumns+`
			FROM planner_entries
			WHERE deleted_at IS NULL AND date >= ? AND date <= ?`, rng.From, rng.To)
		if err != nil {
			return fmt.Errorf("querying planner entries: %w", err)
		}
		defer rows.Close()

		var entries []models.PlannerEntry
		for rows.Next() {
			e, _, err := scanPlannerEntry(rows)
			if err != nil {
				return fmt.Errorf("scanning planner entry: %w", err)
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		ts, err := cursor(ctx, tx, "planner_entries")
		if err != nil {
			return err
		}
		snap = delta.NewPlannerSnapshot(rng, entries, ts)
		return nil
	})
	return snap, err
}

// Since returns the planner changes after since as seen from rng. Entries
// that were deleted or moved outside rng are reported as deleted ids.
func (r *PlannerRepository) Since(ctx context.Context, rng models.PlannerRange, since time.Time) (models.PlannerDelta, error) {
	rows, err := r.DB().QueryContext(ctx, "SELECT "+plannerColumns+`
		FROM planner_entries WHERE updated_at > ?
		ORDER BY updated_at`, formatTime(since))
	if err != nil {
		return models.PlannerDelta{}, fmt.Errorf("querying changed planner entries: %w", err)
	}
	defer rows.Close()

	d := models.PlannerDelta{
		Entries:         []models.PlannerEntry{},
		DeletedIDs:      []string{},
		ServerTimestamp: since,
	}
	for rows.Next() {
		e, deleted, err := scanPlannerEntry(rows)
		if err != nil {
			return models.PlannerDelta{}, fmt.Errorf("scanning planner entry: %w", err)
		}
		if deleted || !rng.Contains(e.Date) {
			d.DeletedIDs = append(d.DeletedIDs, e.ID)
		} else {
			d.Entries = append(d.Entries, e)
		}
		if e.UpdatedAt.After(d.ServerTimestamp) {
			d.ServerTimestamp = e.UpdatedAt
		}
	}

	return d, rows.Err()
}

func scanPlannerEntry(row rowScanner) (models.PlannerEntry, bool, error) {
	var (
		e                models.PlannerEntry
		created, updated string
		deletedAt        sql.NullString
	)

	if err := row.Scan(&e.ID, &e.Date, &e.Title, &e.Hours, &e.Notes, &created, &updated, &deletedAt); err != nil {
		return models.PlannerEntry{}, false, err
	}

	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return models.PlannerEntry{}, false, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return models.PlannerEntry{}, false, err
	}

	return e, deletedAt.Valid, nil
}
