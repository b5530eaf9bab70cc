package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/meetassist/backend/internal/storage/models"
)

const maxResponseBytes = 16 << 20

// HTTPSource fetches events and planner entries from another instance's
// REST API.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates a source for the API rooted at baseURL.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchSnapshot implements Source.
func (s *HTTPSource) FetchSnapshot(ctx context.Context) (models.Snapshot, error) {
	var payload models.SnapshotPayload
	if err := s.get(ctx, "/api/events", nil, &payload); err != nil {
		return models.Snapshot{}, err
	}
	return payload.Snapshot()
}

// FetchDelta implements Source.
func (s *HTTPSource) FetchDelta(ctx context.Context, since time.Time) (models.Delta, error) {
	query := url.Values{"updated_since": {models.FormatTime(since)}}

	var payload models.DeltaPayload
	if err := s.get(ctx, "/api/events", query, &payload); err != nil {
		return models.Delta{}, err
	}

	d, err := payload.Delta()
	if err != nil {
		return models.Delta{}, err
	}
	if d.ServerTimestamp.Before(since) {
		d.ServerTimestamp = since
	}
	return d, nil
}

// FetchPlanner implements PlannerSource.
func (s *HTTPSource) FetchPlanner(ctx context.Context, rng models.PlannerRange) (models.PlannerSnapshot, error) {
	query := url.Values{"from": {rng.From}, "to": {rng.To}}

	var snap models.PlannerSnapshot
	if err := s.get(ctx, "/api/planner", query, &snap); err != nil {
		return models.PlannerSnapshot{}, err
	}
	return snap, nil
}

// FetchPlannerDelta implements PlannerSource.
func (s *HTTPSource) FetchPlannerDelta(ctx context.Context, rng models.PlannerRange, since time.Time) (models.PlannerDelta, error) {
	query := url.Values{
		"from":          {rng.From},
		"to":            {rng.To},
		"updated_since": {models.FormatTime(since)},
	}

	var d models.PlannerDelta
	if err := s.get(ctx, "/api/planner", query, &d); err != nil {
		return models.PlannerDelta{}, err
	}
	return d, nil
}

func (s *HTTPSource) get(ctx context.Context, path string, query url.Values, out any) error {
	target := s.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
