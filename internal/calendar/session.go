package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meetassist/backend/internal/delta"
	"github.com/meetassist/backend/internal/layout"
	"github.com/meetassist/backend/internal/notify"
	"github.com/meetassist/backend/internal/storage/models"
)

var (
	// ErrPollInFlight is returned by a tick that arrives while another poll
	// is still running. The tick is dropped, not queued.
	ErrPollInFlight = errors.New("poll already in flight")
	// ErrSessionClosed is returned once Close has been called. Results of
	// polls that finish after Close are discarded.
	ErrSessionClosed = errors.New("session closed")
	// ErrDeltaFetch wraps a failed incremental fetch. Callers fall back to
	// Resync.
	ErrDeltaFetch = errors.New("delta fetch failed")
)

// Session owns the cached event snapshot for one polling loop and the
// notification bridge fed from it.
type Session struct {
	source  Source
	sink    notify.Sink
	bridge  *notify.Bridge
	loc     *time.Location
	metrics layout.Metrics

	mu       sync.RWMutex
	snapshot models.Snapshot

	inFlight atomic.Bool
	closed   atomic.Bool
}

// SessionOptions configures a Session. Zero values fall back to time.Local
// and layout.DefaultMetrics.
type SessionOptions struct {
	Location *time.Location
	Metrics  *layout.Metrics
}

// NewSession creates a session reading from source and delivering
// notifications to sink. sink may be nil.
func NewSession(source Source, sink notify.Sink, opts SessionOptions) *Session {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	metrics := layout.DefaultMetrics()
	if opts.Metrics != nil {
		metrics = *opts.Metrics
	}

	return &Session{
		source:   source,
		sink:     sink,
		bridge:   notify.NewBridge(),
		loc:      loc,
		metrics:  metrics,
		snapshot: models.Snapshot{Events: []models.Event{}},
	}
}

// Tick runs one poll. The first successful tick bootstraps from a full
// fetch and emits nothing; later ticks fetch a delta since the cursor.
// A failed fetch leaves the snapshot and cursor untouched.
func (s *Session) Tick(ctx context.Context) ([]notify.Notification, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrPollInFlight
	}
	defer s.inFlight.Store(false)

	cursor, seeded := s.bridge.Cursor()
	if !seeded {
		return nil, s.bootstrap(ctx)
	}

	d, err := s.source.FetchDelta(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeltaFetch, err)
	}
	if d.ServerTimestamp.Before(cursor) {
		d.ServerTimestamp = cursor
	}

	return s.apply(ctx, d)
}

// Resync replaces an incremental fetch with a full one. The full list is
// turned into a delta against the cache, so notifications still derive
// from it.
func (s *Session) Resync(ctx context.Context) ([]notify.Notification, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrPollInFlight
	}
	defer s.inFlight.Store(false)

	if _, seeded := s.bridge.Cursor(); !seeded {
		return nil, s.bootstrap(ctx)
	}

	full, err := s.source.FetchSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}

	s.mu.RLock()
	d := delta.Resync(s.snapshot, full)
	s.mu.RUnlock()

	return s.apply(ctx, d)
}

func (s *Session) bootstrap(ctx context.Context) error {
	full, err := s.source.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetching snapshot: %w", err)
	}
	snap := delta.NewSnapshot(full.Events, full.ServerTimestamp)

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.snapshot = snap
	s.bridge.Bootstrap(snap.Events, snap.ServerTimestamp)
	s.mu.Unlock()

	log.Printf("Session bootstrapped with %d events", len(snap.Events))
	return nil
}

func (s *Session) apply(ctx context.Context, d models.Delta) ([]notify.Notification, error) {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.snapshot = delta.Merge(s.snapshot, d)
	notifications := s.bridge.Observe(d)
	s.mu.Unlock()

	if len(notifications) > 0 && s.sink != nil {
		if err := s.sink.Deliver(ctx, notifications); err != nil {
			log.Printf("Failed to deliver %d notifications: %v", len(notifications), err)
		}
	}

	return notifications, nil
}

// Close ends the session. Polls still running finish without touching the
// snapshot.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.CompareAndSwap(false, true) {
		log.Println("Session closed")
	}
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Snapshot returns a copy of the cached snapshot.
func (s *Session) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]models.Event, len(s.snapshot.Events))
	copy(events, s.snapshot.Events)
	return models.Snapshot{Events: events, ServerTimestamp: s.snapshot.ServerTimestamp}
}

// Cursor returns the server timestamp of the last successful poll and
// whether the session has bootstrapped.
func (s *Session) Cursor() (time.Time, bool) {
	return s.bridge.Cursor()
}

// Location returns the zone layouts are computed in.
func (s *Session) Location() *time.Location {
	return s.loc
}

// WeekLayout lays out the cached events for the week starting on the day
// of start, in the session's zone.
func (s *Session) WeekLayout(start time.Time) layout.WeekLayout {
	snap := s.Snapshot()
	return layout.BuildWeek(snap.Events, start.In(s.loc), s.metrics)
}
