package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"metersync/internal/reconcile/domain"
)

// StatisticsRepository is an in-memory statistics store for demo/testing.
// It honors the same append contract as the Postgres implementation: rows
// with an already-present timestamp are silently ignored.
type StatisticsRepository struct {
	mu   sync.RWMutex
	data map[string][]domain.CumulativePoint
}

// NewStatisticsRepository constructs a repository.
func NewStatisticsRepository() *StatisticsRepository {
	return &StatisticsRepository{
		data: make(map[string][]domain.CumulativePoint),
	}
}

// GetLastPoint returns the newest point of a series, or nil when none exists.
func (r *StatisticsRepository) GetLastPoint(ctx context.Context, series domain.SeriesID) (*domain.CumulativePoint, error) {
	_ = ctx
	if series.MeterID == "" {
		return nil, domain.ErrEmptyMeterID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	points := r.data[series.String()]
	if len(points) == 0 {
		return nil, nil
	}
	last := points[len(points)-1]
	return &last, nil
}

// AppendPoints stores new rows, ignoring already-present timestamps.
func (r *StatisticsRepository) AppendPoints(ctx context.Context, series domain.SeriesID, points []domain.CumulativePoint) error {
	_ = ctx
	if series.MeterID == "" {
		return domain.ErrEmptyMeterID
	}
	if len(points) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := series.String()
	existing := r.data[key]
	seen := make(map[time.Time]struct{}, len(existing))
	for _, p := range existing {
		seen[p.Start] = struct{}{}
	}
	for _, p := range points {
		if _, ok := seen[p.Start]; ok {
			continue
		}
		existing = append(existing, p)
		seen[p.Start] = struct{}{}
	}
	sort.Slice(existing, func(i, j int) bool { return existing[i].Start.Before(existing[j].Start) })
	r.data[key] = existing
	return nil
}

// ListPoints returns points of a series in [from, to), oldest first.
func (r *StatisticsRepository) ListPoints(ctx context.Context, series domain.SeriesID, from, to time.Time) ([]domain.CumulativePoint, error) {
	_ = ctx
	if series.MeterID == "" {
		return nil, domain.ErrEmptyMeterID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.CumulativePoint
	for _, p := range r.data[series.String()] {
		if p.Start.Before(from) || !p.Start.Before(to) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}
