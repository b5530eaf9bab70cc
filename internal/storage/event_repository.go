package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/meetassist/backend/internal/storage/models"
)

const eventColumns = `id, source, title, meeting_platform, meeting_url, bot_status, status,
	creator_email, calendar_title, notetaker_enabled, start_time, end_time,
	created_at, updated_at, deleted_at`

// EventRepository stores events with an update cursor and tombstones so it
// can serve both full snapshots and deltas.
type EventRepository struct {
	BaseRepository
	clock updateClock
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{
		BaseRepository: NewBaseRepository(db),
		clock:          updateClock{table: "events"},
	}
}

// Upsert inserts or replaces an event and clears any tombstone for its id.
// CreatedAt is kept from the first insert; UpdatedAt is a fresh stamp.
func (r *EventRepository) Upsert(ctx context.Context, e *models.Event) error {
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
		INSERT INTO events (
			id, source, title, meeting_platform, meeting_url, bot_status, status,
			creator_email, calendar_title, notetaker_enabled, start_time, end_time,
			created_at, updated_at, deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			title = excluded.title,
			meeting_platform = excluded.meeting_platform,
			meeting_url = excluded.meeting_url,
			bot_status = excluded.bot_status,
			status = excluded.status,
			creator_email = excluded.creator_email,
			calendar_title = excluded.calendar_title,
			notetaker_enabled = excluded.notetaker_enabled,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			updated_at = excluded.updated_at,
			deleted_at = NULL
		RETURNING created_at
	`,
		e.ID, e.Source, e.Title, e.MeetingPlatform, nullString(e.MeetingURL),
		nullString(e.BotStatus), e.Status, nullString(e.CreatorEmail),
		nullString(e.CalendarTitle), e.NotetakerEnabled,
		formatTime(e.StartTime), formatNullTime(e.EndTime),
		formatTime(stamp), formatTime(stamp),
	).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("upserting event: %w", err)
	}

	created, err := parseTime(createdAt)
	if err != nil {
		return err
	}
	e.CreatedAt = created
	e.UpdatedAt = stamp
	return nil
}

// Delete tombstones an event.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	stamp, err := r.clock.begin(ctx, r.DB(), r.Now())
	if err != nil {
		return err
	}
	defer r.clock.end()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE events SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, formatTime(stamp), formatTime(stamp), id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}

	return nil
}

// GetByID retrieves a live event by its ID.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	row := r.DB().QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ? AND deleted_at IS NULL", id)

	e, _, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying event: %w", err)
	}
	return &e, nil
}

// Snapshot returns every live event and the cursor it is valid for.
func (r *EventRepository) Snapshot(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	err := r.Transaction(func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT "+eventColumns+`
			FROM events WHERE deleted_at IS NULL
			ORDER BY start_time, created_at, id`)
		if err != nil {
			return fmt.Errorf("querying events: %w", err)
		}
		defer rows.Close()

		snap.Events = []models.Event{}
		for rows.Next() {
			e, _, err := scanEvent(rows)
			if err != nil {
				return fmt.Errorf("scanning event: %w", err)
			}
			snap.Events = append(snap.Events, e)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		snap.ServerTimestamp, err = cursor(ctx, tx, "events")
		return err
	})
	return snap, err
}

// Since returns everything that changed after since. The returned cursor is
// the newest stamp seen, or since itself when nothing changed.
func (r *EventRepository) Since(ctx context.Context, since time.Time) (models.Delta, error) {
	rows, err := r.DB().QueryContext(ctx, "SELECT "+eventColumns+`
		FROM events WHERE updated_at > ?
		ORDER BY updated_at`, formatTime(since))
	if err != nil {
		return models.Delta{}, fmt.Errorf("querying changed events: %w", err)
	}
	defer rows.Close()

	d := models.Delta{Events: []models.Event{}, DeletedIDs: []string{}, ServerTimestamp: since}
	for rows.Next() {
		e, deleted, err := scanEvent(rows)
		if err != nil {
			return models.Delta{}, fmt.Errorf("scanning event: %w", err)
		}
		if deleted {
			d.DeletedIDs = append(d.DeletedIDs, e.ID)
		} else {
			d.Events = append(d.Events, e)
		}
		if e.UpdatedAt.After(d.ServerTimestamp) {
			d.ServerTimestamp = e.UpdatedAt
		}
	}

	return d, rows.Err()
}

// ListBySource retrieves the live events imported from one source.
func (r *EventRepository) ListBySource(ctx context.Context, source string) ([]models.Event, error) {
	rows, err := r.DB().QueryContext(ctx, "SELECT "+eventColumns+`
		FROM events WHERE source = ? AND deleted_at IS NULL
		ORDER BY start_time`, source)
	if err != nil {
		return nil, fmt.Errorf("querying events by source: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, _, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// Count returns the number of live events.
func (r *EventRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE deleted_at IS NULL").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent reads one row selected with eventColumns and reports whether it
// is a tombstone.
func scanEvent(row rowScanner) (models.Event, bool, error) {
	var (
		e                       models.Event
		start, created, updated string
		meetingURL, botStatus   sql.NullString
		creator, calendar       sql.NullString
		end, deletedAt          sql.NullString
	)

	if err := row.Scan(
		&e.ID, &e.Source, &e.Title, &e.MeetingPlatform, &meetingURL, &botStatus, &e.Status,
		&creator, &calendar, &e.NotetakerEnabled, &start, &end,
		&created, &updated, &deletedAt,
	); err != nil {
		return models.Event{}, false, err
	}

	var err error
	if e.StartTime, err = parseTime(start); err != nil {
		return models.Event{}, false, err
	}
	if e.EndTime, err = parseNullTime(end); err != nil {
		return models.Event{}, false, err
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return models.Event{}, false, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return models.Event{}, false, err
	}
	e.MeetingURL = stringPtr(meetingURL)
	e.BotStatus = stringPtr(botStatus)
	e.CreatorEmail = stringPtr(creator)
	e.CalendarTitle = stringPtr(calendar)

	return e, deletedAt.Valid, nil
}
