package calendar

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meetassist/backend/internal/delta"
	"github.com/meetassist/backend/internal/storage/models"
)

// PlannerCache keeps planner entries for a rolling range of days starting
// today, refreshed with the same bootstrap-then-delta cycle as Session.
type PlannerCache struct {
	source PlannerSource
	days   int
	loc    *time.Location
	now    func() time.Time

	mu       sync.RWMutex
	snapshot models.PlannerSnapshot
	seeded   bool

	inFlight atomic.Bool
}

// NewPlannerCache creates a cache covering days days from today in loc.
func NewPlannerCache(source PlannerSource, days int, loc *time.Location) *PlannerCache {
	if days <= 0 {
		days = 7
	}
	if loc == nil {
		loc = time.Local
	}
	return &PlannerCache{source: source, days: days, loc: loc, now: time.Now}
}

// Range returns the date range the cache currently covers.
func (c *PlannerCache) Range() models.PlannerRange {
	today := c.now().In(c.loc)
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, c.loc)
	to := from.AddDate(0, 0, c.days-1)
	return models.PlannerRange{From: from.Format(models.DateLayout), To: to.Format(models.DateLayout)}
}

// Refresh polls the source. When the range has rolled over since the last
// refresh, or nothing is cached yet, it refetches in full.
func (c *PlannerCache) Refresh(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrPollInFlight
	}
	defer c.inFlight.Store(false)

	rng := c.Range()

	c.mu.RLock()
	current, seeded := c.snapshot, c.seeded
	c.mu.RUnlock()

	if !seeded || current.Range != rng {
		snap, err := c.source.FetchPlanner(ctx, rng)
		if err != nil {
			return fmt.Errorf("fetching planner: %w", err)
		}

		c.mu.Lock()
		c.snapshot = delta.NewPlannerSnapshot(rng, snap.Entries, snap.ServerTimestamp)
		c.seeded = true
		c.mu.Unlock()
		return nil
	}

	d, err := c.source.FetchPlannerDelta(ctx, rng, current.ServerTimestamp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeltaFetch, err)
	}
	if d.ServerTimestamp.Before(current.ServerTimestamp) {
		d.ServerTimestamp = current.ServerTimestamp
	}

	c.mu.Lock()
	c.snapshot = delta.MergePlanner(c.snapshot, d)
	c.mu.Unlock()
	return nil
}

// Invalidate drops the cache so the next Refresh refetches in full.
func (c *PlannerCache) Invalidate() {
	c.mu.Lock()
	c.seeded = false
	c.mu.Unlock()
}

// Snapshot returns the cached planner snapshot.
func (c *PlannerCache) Snapshot() models.PlannerSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]models.PlannerEntry, len(c.snapshot.Entries))
	copy(entries, c.snapshot.Entries)
	snap := c.snapshot
	snap.Entries = entries
	return snap
}
