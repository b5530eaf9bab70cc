package calendar

import (
	"context"
	"time"

	"github.com/meetassist/backend/internal/storage"
	"github.com/meetassist/backend/internal/storage/models"
)

// Source supplies events to a Session.
type Source interface {
	// FetchSnapshot returns every live event and the cursor it is valid for.
	FetchSnapshot(ctx context.Context) (models.Snapshot, error)
	// FetchDelta returns what changed after since.
	FetchDelta(ctx context.Context, since time.Time) (models.Delta, error)
}

// PlannerSource supplies planner entries for a date range.
type PlannerSource interface {
	FetchPlanner(ctx context.Context, rng models.PlannerRange) (models.PlannerSnapshot, error)
	FetchPlannerDelta(ctx context.Context, rng models.PlannerRange, since time.Time) (models.PlannerDelta, error)
}

// RepositorySource reads events from the local store.
type RepositorySource struct {
	events *storage.EventRepository
}

// NewRepositorySource creates a source over the event repository.
func NewRepositorySource(events *storage.EventRepository) *RepositorySource {
	return &RepositorySource{events: events}
}

// FetchSnapshot implements Source.
func (s *RepositorySource) FetchSnapshot(ctx context.Context) (models.Snapshot, error) {
	return s.events.Snapshot(ctx)
}

// FetchDelta implements Source.
func (s *RepositorySource) FetchDelta(ctx context.Context, since time.Time) (models.Delta, error) {
	return s.events.Since(ctx, since)
}

// RepositoryPlannerSource reads planner entries from the local store.
type RepositoryPlannerSource struct {
	planner *storage.PlannerRepository
}

// NewRepositoryPlannerSource creates a planner source over the repository.
func NewRepositoryPlannerSource(planner *storage.PlannerRepository) *RepositoryPlannerSource {
	return &RepositoryPlannerSource{planner: planner}
}

// FetchPlanner implements PlannerSource.
func (s *RepositoryPlannerSource) FetchPlanner(ctx context.Context, rng models.PlannerRange) (models.PlannerSnapshot, error) {
	return s.planner.Snapshot(ctx, rng)
}

// FetchPlannerDelta implements PlannerSource.
func (s *RepositoryPlannerSource) FetchPlannerDelta(ctx context.Context, rng models.PlannerRange, since time.Time) (models.PlannerDelta, error) {
	return s.planner.Since(ctx, rng, since)
}
