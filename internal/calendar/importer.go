package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/meetassist/backend/internal/config"
	"github.com/meetassist/backend/internal/storage"
	"github.com/meetassist/backend/internal/storage/models"
)

// FeedFetcher is the part of FeedParser the importer needs. Fetch returns
// the events that overlap Window.
type FeedFetcher interface {
	Fetch(ctx context.Context, feed config.Feed) ([]models.Event, error)
	Window() (start, end time.Time)
}

// ImportService copies ICS feed events into the event store. Each feed owns
// the events whose source is its id.
type ImportService struct {
	fetcher FeedFetcher
	events  *storage.EventRepository
	now     func() time.Time
}

// NewImportService creates a new feed import service.
func NewImportService(fetcher FeedFetcher, events *storage.EventRepository) *ImportService {
	return &ImportService{
		fetcher: fetcher,
		events:  events,
		now:     time.Now,
	}
}

// ImportFeed fetches one feed, upserts new and changed events and tombstones
// the feed's events inside the fetch window that are gone. Events that ended
// before the window are kept. Unchanged events are not rewritten, so they do
// not show up in deltas.
func (s *ImportService) ImportFeed(ctx context.Context, feed config.Feed) (*models.FeedSyncResult, error) {
	result := &models.FeedSyncResult{
		FeedID:   feed.ID,
		SyncedAt: s.now().UTC(),
	}

	windowStart, _ := s.fetcher.Window()
	parsed, err := s.fetcher.Fetch(ctx, feed)
	if err != nil {
		return result, fmt.Errorf("importing feed %s: %w", feed.ID, err)
	}
	result.EventsFound = len(parsed)

	stored, err := s.events.ListBySource(ctx, feed.ID)
	if err != nil {
		return result, fmt.Errorf("listing feed %s events: %w", feed.ID, err)
	}
	existing := make(map[string]models.Event, len(stored))
	for _, e := range stored {
		existing[e.ID] = e
	}

	seen := make(map[string]bool, len(parsed))
	for _, e := range parsed {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		e.Source = feed.ID

		previous, found := existing[e.ID]
		if found {
			// Bot state is owned by the notetaker, not the feed.
			e.BotStatus = previous.BotStatus
			e.NotetakerEnabled = previous.NotetakerEnabled
			if sameFeedEvent(previous, e) {
				result.Unchanged++
				continue
			}
		}

		if err := s.events.Upsert(ctx, &e); err != nil {
			log.Printf("Error importing event %s: %v", e.ID, err)
			continue
		}
		if found {
			result.Updated++
		} else {
			result.Created++
		}
	}

	for id, e := range existing {
		if seen[id] || e.End().Before(windowStart) {
			continue
		}
		if err := s.events.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			log.Printf("Error removing event %s: %v", id, err)
			continue
		}
		result.Removed++
	}

	return result, nil
}

// ImportAll imports every feed and joins the errors.
func (s *ImportService) ImportAll(ctx context.Context, feeds []config.Feed) ([]*models.FeedSyncResult, error) {
	results := make([]*models.FeedSyncResult, 0, len(feeds))
	var errs []error
	for _, feed := range feeds {
		result, err := s.ImportFeed(ctx, feed)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

func sameFeedEvent(a, b models.Event) bool {
	return a.Title == b.Title &&
		a.StartTime.Equal(b.StartTime) &&
		sameTime(a.EndTime, b.EndTime) &&
		a.MeetingPlatform == b.MeetingPlatform &&
		models.StringValue(a.MeetingURL) == models.StringValue(b.MeetingURL) &&
		a.Status == b.Status &&
		models.StringValue(a.CreatorEmail) == models.StringValue(b.CreatorEmail) &&
		models.StringValue(a.CalendarTitle) == models.StringValue(b.CalendarTitle)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
