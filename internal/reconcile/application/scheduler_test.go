package application

import (
	"context"
	"testing"
	"time"

	"metersync/internal/reconcile/domain"
)

func TestSchedulerTickRunsPassAndHealer(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: base}

	feed := &stubFeed{
		window: map[domain.ZoneKey][]domain.DeltaPoint{
			"default": {{Start: base.Add(-time.Hour), Value: 1.0, Zone: "default"}},
		},
	}
	store := newStubStore()
	cfg := testConfig("m1", ZoneConfig{Key: "default", Price: 1.0})

	healer, _, _ := newTestHealer(t, cfg, feed, store, clock, nil)
	pricing := &stubPricing{prices: map[domain.ZoneKey]float64{"default": 1.0}}
	status := NewStatusRegistry(clock)
	svc, err := NewService(cfg, feed, store, pricing, status, clock, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	scheduler, err := NewScheduler(cfg, svc, healer, clock, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	scheduler.Tick(context.Background())
	healer.Wait()

	// The regular pass writes the point; the healer then sees a fresh cursor
	// and stays quiet, so exactly one fetch happened.
	if feed.passes != 1 {
		t.Fatalf("feed fetched %d times, want 1", feed.passes)
	}
	if got := store.get(domain.EnergySeries("m1", "default")); len(got) != 1 {
		t.Fatalf("pass wrote %d points, want 1", len(got))
	}
}

func TestSchedulerTickHonorsCancelledContext(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	feed := &stubFeed{}
	store := newStubStore()
	cfg := testConfig("m1", ZoneConfig{Key: "default", Price: 1.0})

	healer, _, _ := newTestHealer(t, cfg, feed, store, clock, nil)
	pricing := &stubPricing{prices: map[domain.ZoneKey]float64{"default": 1.0}}
	svc, err := NewService(cfg, feed, store, pricing, NewStatusRegistry(clock), clock, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	scheduler, err := NewScheduler(cfg, svc, healer, clock, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	scheduler.Tick(ctx)
	healer.Wait()

	if feed.passes != 0 {
		t.Fatalf("feed fetched %d times with cancelled context, want 0", feed.passes)
	}
}
