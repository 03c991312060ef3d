package memory

import (
	"context"
	"testing"
	"time"

	"metersync/internal/reconcile/domain"
)

func TestAppendIgnoresDuplicateTimestamps(t *testing.T) {
	repo := NewStatisticsRepository()
	series := domain.EnergySeries("m1", "default")
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	first := []domain.CumulativePoint{
		{Start: base, Delta: 1, Sum: 1},
		{Start: base.Add(time.Hour), Delta: 2, Sum: 3},
	}
	if err := repo.AppendPoints(ctx, series, first); err != nil {
		t.Fatalf("AppendPoints: %v", err)
	}

	replay := []domain.CumulativePoint{
		{Start: base.Add(time.Hour), Delta: 99, Sum: 99},
		{Start: base.Add(2 * time.Hour), Delta: 3, Sum: 6},
	}
	if err := repo.AppendPoints(ctx, series, replay); err != nil {
		t.Fatalf("AppendPoints replay: %v", err)
	}

	points, err := repo.ListPoints(ctx, series, base, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ListPoints: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("got %d points, want 3", len(points))
	}
	if points[1].Sum != 3 {
		t.Fatalf("duplicate timestamp overwrote row: sum = %v, want original 3", points[1].Sum)
	}
}

func TestGetLastPoint(t *testing.T) {
	repo := NewStatisticsRepository()
	series := domain.EnergySeries("m1", "default")
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	last, err := repo.GetLastPoint(ctx, series)
	if err != nil {
		t.Fatalf("GetLastPoint: %v", err)
	}
	if last != nil {
		t.Fatalf("empty series returned %+v, want nil", last)
	}

	// Out of order on purpose; the repository keeps rows sorted.
	points := []domain.CumulativePoint{
		{Start: base.Add(2 * time.Hour), Delta: 3, Sum: 6},
		{Start: base, Delta: 1, Sum: 1},
	}
	if err := repo.AppendPoints(ctx, series, points); err != nil {
		t.Fatalf("AppendPoints: %v", err)
	}

	last, err = repo.GetLastPoint(ctx, series)
	if err != nil {
		t.Fatalf("GetLastPoint: %v", err)
	}
	if last == nil || !last.Start.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("last = %+v, want newest point", last)
	}
}

func TestSeriesAreIsolated(t *testing.T) {
	repo := NewStatisticsRepository()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	energy := domain.EnergySeries("m1", "peak")
	cost := domain.CostSeries("m1", "peak")
	if err := repo.AppendPoints(ctx, energy, []domain.CumulativePoint{{Start: base, Delta: 1, Sum: 1}}); err != nil {
		t.Fatalf("AppendPoints: %v", err)
	}

	last, err := repo.GetLastPoint(ctx, cost)
	if err != nil {
		t.Fatalf("GetLastPoint: %v", err)
	}
	if last != nil {
		t.Fatalf("cost series leaked energy rows: %+v", last)
	}
}

func TestEmptyMeterIDRejected(t *testing.T) {
	repo := NewStatisticsRepository()
	ctx := context.Background()
	bad := domain.SeriesID{Zone: "default", Kind: domain.KindEnergy}

	if _, err := repo.GetLastPoint(ctx, bad); err != domain.ErrEmptyMeterID {
		t.Fatalf("err = %v, want ErrEmptyMeterID", err)
	}
	if err := repo.AppendPoints(ctx, bad, []domain.CumulativePoint{{}}); err != domain.ErrEmptyMeterID {
		t.Fatalf("err = %v, want ErrEmptyMeterID", err)
	}
}
