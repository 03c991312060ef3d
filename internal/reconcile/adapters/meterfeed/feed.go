package meterfeed

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"metersync/internal/meterapi"
	"metersync/internal/reconcile/domain"
)

// MeterClient is the slice of the metering API the feed consumes.
type MeterClient interface {
	Login(ctx context.Context) error
	FetchHourlyDeltas(ctx context.Context, meterID string, day time.Time) (map[string][]float64, error)
	FetchTotals(ctx context.Context, meterID string) (map[string]float64, error)
}

// Feed normalizes raw hourly readings into sorted DeltaPoint streams per
// zone. One upstream call per calendar day, with a deliberate inter-call
// delay to respect upstream rate limits.
type Feed struct {
	client    MeterClient
	maxHourly float64
	callDelay time.Duration
	logger    *log.Logger
}

// Option configures the feed.
type Option func(*Feed)

// WithCallDelay overrides the delay between per-day fetches.
func WithCallDelay(d time.Duration) Option {
	return func(f *Feed) {
		if d >= 0 {
			f.callDelay = d
		}
	}
}

// NewFeed constructs a feed.
func NewFeed(client MeterClient, maxHourly float64, logger *log.Logger, opts ...Option) (*Feed, error) {
	if client == nil {
		return nil, errors.New("meterfeed: nil client")
	}
	if maxHourly <= 0 {
		return nil, errors.New("meterfeed: non-positive plausibility bound")
	}
	f := &Feed{
		client:    client,
		maxHourly: maxHourly,
		callDelay: 500 * time.Millisecond,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// FetchWindow returns chronologically sorted deltas per zone for [from, to).
//
// Transient per-day failures are isolated: the day is skipped and the window
// continues, so one bad day never blocks a backfill. An expired session is
// re-authenticated once; if authentication keeps failing the whole window is
// aborted so no series is mutated on a half-authenticated fetch.
func (f *Feed) FetchWindow(ctx context.Context, meterID string, from, to time.Time) (map[domain.ZoneKey][]domain.DeltaPoint, error) {
	if meterID == "" {
		return nil, errors.New("meterfeed: empty meter id")
	}
	if !to.After(from) {
		return nil, errors.New("meterfeed: empty window")
	}

	byZone := make(map[domain.ZoneKey][]domain.DeltaPoint)
	first := true
	for day := startOfDay(from); day.Before(to); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !first && f.callDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.callDelay):
			}
		}
		first = false

		zones, err := f.fetchDay(ctx, meterID, day)
		if err != nil {
			if errors.Is(err, meterapi.ErrAuth) || errors.Is(err, meterapi.ErrTokenExpired) {
				return nil, err
			}
			if f.logger != nil {
				f.logger.Printf("feed: skipping day %s for meter %s: %v", day.Format("2006-01-02"), meterID, err)
			}
			continue
		}

		for zone, values := range zones {
			for idx, value := range values {
				// Hour h covers (h, h+1]; the point is stamped at the end of
				// the hour, matching the upstream convention.
				start := day.Add(time.Duration(idx+1) * time.Hour)
				if !start.After(from) || start.After(to) {
					continue
				}
				if value < 0 || value > f.maxHourly {
					continue
				}
				key := domain.ZoneKey(zone)
				byZone[key] = append(byZone[key], domain.DeltaPoint{Start: start, Value: value, Zone: key})
			}
		}
	}

	for zone := range byZone {
		points := byZone[zone]
		sort.Slice(points, func(i, j int) bool { return points[i].Start.Before(points[j].Start) })
	}
	return byZone, nil
}

// FetchTotals returns the live per-zone meter readings, re-authenticating
// once on an expired session.
func (f *Feed) FetchTotals(ctx context.Context, meterID string) (map[domain.ZoneKey]float64, error) {
	raw, err := f.client.FetchTotals(ctx, meterID)
	if errors.Is(err, meterapi.ErrTokenExpired) {
		if err := f.client.Login(ctx); err != nil {
			return nil, err
		}
		raw, err = f.client.FetchTotals(ctx, meterID)
	}
	if err != nil {
		return nil, err
	}
	totals := make(map[domain.ZoneKey]float64, len(raw))
	for zone, total := range raw {
		totals[domain.ZoneKey(zone)] = total
	}
	return totals, nil
}

func (f *Feed) fetchDay(ctx context.Context, meterID string, day time.Time) (map[string][]float64, error) {
	zones, err := f.client.FetchHourlyDeltas(ctx, meterID, day)
	if !errors.Is(err, meterapi.ErrTokenExpired) {
		return zones, err
	}
	// One re-login, one retry. A second expiry is reported upward.
	if err := f.client.Login(ctx); err != nil {
		return nil, err
	}
	return f.client.FetchHourlyDeltas(ctx, meterID, day)
}

func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
