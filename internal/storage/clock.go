package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// updateClock hands out strictly increasing update stamps for one table.
// Writers hold the clock while they commit, so a reader that has not seen a
// write has also not seen any stamp above it; MAX(updated_at) is therefore a
// safe cursor.
type updateClock struct {
	mu    sync.Mutex
	table string
	last  time.Time
	ready bool
}

// begin locks the clock and returns the next stamp. The caller must call
// end once its write is committed or abandoned.
func (c *updateClock) begin(ctx context.Context, q Queryable, now time.Time) (time.Time, error) {
	c.mu.Lock()

	if !c.ready {
		var max sql.NullString
		if err := q.QueryRowContext(ctx, "SELECT MAX(updated_at) FROM "+c.table).Scan(&max); err != nil {
			c.mu.Unlock()
			return time.Time{}, fmt.Errorf("reading %s cursor: %w", c.table, err)
		}
		if max.Valid {
			last, err := parseTime(max.String)
			if err != nil {
				c.mu.Unlock()
				return time.Time{}, err
			}
			c.last = last
		}
		c.ready = true
	}

	stamp := now.UTC()
	if !stamp.After(c.last) {
		stamp = c.last.Add(time.Nanosecond)
	}
	c.last = stamp
	return stamp, nil
}

func (c *updateClock) end() {
	c.mu.Unlock()
}

// cursor reads MAX(updated_at) from the table, tombstones included.
func cursor(ctx context.Context, q Queryable, table string) (time.Time, error) {
	var max sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT MAX(updated_at) FROM "+table).Scan(&max); err != nil {
		return time.Time{}, fmt.Errorf("reading %s cursor: %w", table, err)
	}
	if !max.Valid {
		return time.Time{}, nil
	}
	return parseTime(max.String)
}
