package calendar

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meetassist/backend/internal/config"
	"github.com/meetassist/backend/internal/storage/models"
)

// SyncNotifier is told about feed import outcomes.
type SyncNotifier interface {
	BroadcastFeedSyncCompleted(result models.FeedSyncResult)
	BroadcastFeedSyncError(feedID string, err error)
}

// SchedulerOptions configures the job intervals.
type SchedulerOptions struct {
	PollInterval time.Duration
	FeedInterval time.Duration
}

// Scheduler drives the session poll, the planner refresh and the ICS feed
// imports from cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	session  *Session
	planner  *PlannerCache
	importer *ImportService
	notifier SyncNotifier

	// Track jobs per feed
	jobs    map[string]cron.EntryID
	feeds   map[string]config.Feed
	stopped bool
	jobsMu  sync.RWMutex

	// Imports started outside cron
	imports sync.WaitGroup

	pollInterval time.Duration
	feedInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler. planner, importer and notifier may
// be nil.
func NewScheduler(session *Session, planner *PlannerCache, importer *ImportService, notifier SyncNotifier, opts SchedulerOptions) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.FeedInterval <= 0 {
		opts.FeedInterval = 15 * time.Minute
	}

	return &Scheduler{
		cron:         cron.New(cron.WithSeconds()),
		session:      session,
		planner:      planner,
		importer:     importer,
		notifier:     notifier,
		jobs:         make(map[string]cron.EntryID),
		feeds:        make(map[string]config.Feed),
		pollInterval: opts.PollInterval,
		feedInterval: opts.FeedInterval,
		ctx:          context.Background(),
		cancel:       func() {},
	}
}

// Start runs one poll right away, schedules the recurring jobs and imports
// every feed once in the background.
func (s *Scheduler) Start(ctx context.Context, feeds []config.Feed) error {
	log.Println("Starting sync scheduler...")

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.pollSession()
	s.refreshPlanner()

	if _, err := s.cron.AddFunc(everySpec(s.pollInterval), s.pollSession); err != nil {
		return err
	}
	if s.planner != nil {
		if _, err := s.cron.AddFunc(everySpec(s.pollInterval), s.refreshPlanner); err != nil {
			return err
		}
	}

	for _, feed := range feeds {
		s.ScheduleFeed(feed)
	}
	if s.importer != nil && len(feeds) > 0 {
		s.goImport(func() { s.importAll(feeds) })
	}

	s.cron.Start()
	log.Printf("Sync scheduler started with %d feeds, polling every %s", len(feeds), s.pollInterval)

	return nil
}

// Stop waits for running jobs and triggered imports, then closes the session
// so a poll that is still in flight cannot change it.
func (s *Scheduler) Stop() {
	log.Println("Stopping sync scheduler...")
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.jobsMu.Lock()
	s.stopped = true
	s.jobsMu.Unlock()
	s.imports.Wait()

	s.session.Close()
	log.Println("Sync scheduler stopped")
}

// ScheduleFeed adds or replaces a feed's import job.
func (s *Scheduler) ScheduleFeed(feed config.Feed) {
	if s.importer == nil {
		return
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if existingID, exists := s.jobs[feed.ID]; exists {
		s.cron.Remove(existingID)
		delete(s.jobs, feed.ID)
	}

	entryID, err := s.cron.AddFunc(everySpec(s.feedInterval), func() {
		s.importFeed(feed)
	})
	if err != nil {
		log.Printf("Failed to schedule feed %s: %v", feed.ID, err)
		return
	}

	s.jobs[feed.ID] = entryID
	s.feeds[feed.ID] = feed
	log.Printf("Scheduled feed %s every %s", feed.ID, s.feedInterval)
}

// UnscheduleFeed removes a feed's import job.
func (s *Scheduler) UnscheduleFeed(feedID string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	if entryID, exists := s.jobs[feedID]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, feedID)
		delete(s.feeds, feedID)
		log.Printf("Unscheduled feed %s", feedID)
	}
}

// TriggerImport runs a feed import now, outside the schedule. It reports
// whether the feed is known; a stopped scheduler knows no feeds.
func (s *Scheduler) TriggerImport(feedID string) bool {
	s.jobsMu.RLock()
	feed, ok := s.feeds[feedID]
	s.jobsMu.RUnlock()
	if !ok {
		return false
	}

	return s.goImport(func() { s.importFeed(feed) })
}

// goImport runs fn on a goroutine Stop waits for. It reports false once the
// scheduler is stopped.
func (s *Scheduler) goImport(fn func()) bool {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if s.stopped {
		return false
	}

	s.imports.Add(1)
	go func() {
		defer s.imports.Done()
		fn()
	}()
	return true
}

// ScheduledFeeds returns the ids of scheduled feeds, sorted.
func (s *Scheduler) ScheduledFeeds() []string {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NextRun returns the next scheduled import for a feed.
func (s *Scheduler) NextRun(feedID string) *time.Time {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	if entryID, exists := s.jobs[feedID]; exists {
		entry := s.cron.Entry(entryID)
		if !entry.Next.IsZero() {
			return &entry.Next
		}
	}
	return nil
}

// pollSession runs one session tick. A failed delta falls back to a full
// resync.
func (s *Scheduler) pollSession() {
	notifications, err := s.session.Tick(s.ctx)
	switch {
	case err == nil:
		if len(notifications) > 0 {
			log.Printf("Poll produced %d notifications", len(notifications))
		}
	case errors.Is(err, ErrPollInFlight):
		log.Println("Previous poll still running, skipping tick")
	case errors.Is(err, ErrSessionClosed):
	case errors.Is(err, ErrDeltaFetch):
		log.Printf("Delta fetch failed, resyncing: %v", err)
		if _, err := s.session.Resync(s.ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
			log.Printf("Failed to resync session: %v", err)
		}
	default:
		log.Printf("Failed to poll events: %v", err)
	}
}

func (s *Scheduler) refreshPlanner() {
	if s.planner == nil {
		return
	}

	err := s.planner.Refresh(s.ctx)
	switch {
	case err == nil, errors.Is(err, ErrPollInFlight):
	case errors.Is(err, ErrDeltaFetch):
		log.Printf("Planner delta failed, refetching: %v", err)
		s.planner.Invalidate()
		if err := s.planner.Refresh(s.ctx); err != nil {
			log.Printf("Failed to refetch planner: %v", err)
		}
	default:
		log.Printf("Failed to refresh planner: %v", err)
	}
}

func (s *Scheduler) importFeed(feed config.Feed) {
	log.Printf("Importing feed: %s", feed.ID)

	result, err := s.importer.ImportFeed(s.ctx, feed)
	if err != nil {
		log.Printf("Feed import failed for %s: %v", feed.ID, err)
		if s.notifier != nil {
			s.notifier.BroadcastFeedSyncError(feed.ID, err)
		}
		return
	}

	log.Printf("Feed import completed for %s: %d events, %d created, %d updated, %d removed",
		feed.ID, result.EventsFound, result.Created, result.Updated, result.Removed)

	if s.notifier != nil {
		s.notifier.BroadcastFeedSyncCompleted(*result)
	}

	// Pick the imported changes up without waiting for the next tick.
	s.pollSession()
}

// importAll is the startup import of every configured feed.
func (s *Scheduler) importAll(feeds []config.Feed) {
	results, err := s.importer.ImportAll(s.ctx, feeds)
	if err != nil {
		log.Printf("Initial feed import failed: %v", err)
	}

	for _, result := range results {
		log.Printf("Initial import of %s: %d events, %d created, %d updated, %d removed",
			result.FeedID, result.EventsFound, result.Created, result.Updated, result.Removed)
		if s.notifier != nil {
			s.notifier.BroadcastFeedSyncCompleted(*result)
		}
	}

	if len(results) > 0 {
		s.pollSession()
	}
}

func everySpec(interval time.Duration) string {
	if interval < time.Second {
		interval = time.Second
	}
	return "@every " + interval.String()
}
