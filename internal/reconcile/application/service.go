package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"metersync/internal/observability/metrics"
	"metersync/internal/reconcile/domain"
)

// DeltaFeed supplies normalized hourly deltas and live totals from the
// remote metering service.
type DeltaFeed interface {
	FetchWindow(ctx context.Context, meterID string, from, to time.Time) (map[domain.ZoneKey][]domain.DeltaPoint, error)
	FetchTotals(ctx context.Context, meterID string) (map[domain.ZoneKey]float64, error)
}

// StatisticsStore persists and serves cumulative series rows.
type StatisticsStore interface {
	GetLastPoint(ctx context.Context, series domain.SeriesID) (*domain.CumulativePoint, error)
	AppendPoints(ctx context.Context, series domain.SeriesID, points []domain.CumulativePoint) error
}

// PriceProvider resolves the price multiplier for a zone. Looked up fresh
// on every pass, so price changes apply between passes.
type PriceProvider interface {
	Price(ctx context.Context, zone domain.ZoneKey) (float64, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ZoneResult is the outcome of reconciling one zone within a pass.
type ZoneResult struct {
	Written int
	Err     error
}

// PassResult reports per-zone outcomes of one reconciliation pass. Zones are
// isolated: a failing zone never blocks the others, and partial success is
// visible here rather than collapsed into a single error.
type PassResult struct {
	MeterID string
	Zones   map[domain.ZoneKey]ZoneResult
}

// Failed returns the zones that did not reconcile.
func (r PassResult) Failed() []domain.ZoneKey {
	var failed []domain.ZoneKey
	for zone, res := range r.Zones {
		if res.Err != nil {
			failed = append(failed, zone)
		}
	}
	return failed
}

// Service runs reconciliation passes: fetch deltas, resolve the anchor per
// zone, accumulate, derive cost and persist. It owns all per-meter mutable
// state (series locks, observed totals) so independent Service instances
// never interfere.
type Service struct {
	feed    DeltaFeed
	store   StatisticsStore
	pricing PriceProvider
	status  *StatusRegistry
	clock   Clock
	logger  *log.Logger

	cfg Config

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	totalsMu sync.Mutex
	observed map[string]float64
}

// NewService constructs a reconciliation service.
func NewService(cfg Config, feed DeltaFeed, store StatisticsStore, pricing PriceProvider, status *StatusRegistry, clock Clock, logger *log.Logger) (*Service, error) {
	if feed == nil {
		return nil, errors.New("reconcile service: nil feed")
	}
	if store == nil {
		return nil, errors.New("reconcile service: nil store")
	}
	if pricing == nil {
		return nil, errors.New("reconcile service: nil price provider")
	}
	if status == nil {
		return nil, errors.New("reconcile service: nil status registry")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{
		feed:     feed,
		store:    store,
		pricing:  pricing,
		status:   status,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		locks:    make(map[string]*sync.Mutex),
		observed: make(map[string]float64),
	}, nil
}

// RunPass reconciles one meter over [from, to). The fetch happens outside
// the per-series locks so a slow multi-day fetch never stalls other series;
// only the cursor-read/accumulate/persist step is serialized per series.
//
// An error is returned only when the whole pass could not run (fetch
// aborted). Per-zone failures are reported in the PassResult and the status
// registry.
func (s *Service) RunPass(ctx context.Context, meterID string, from, to time.Time) (PassResult, error) {
	start := s.clock.Now()
	result := PassResult{MeterID: meterID, Zones: make(map[domain.ZoneKey]ZoneResult)}

	zones := s.cfg.ZonesFor(meterID)
	if len(zones) == 0 {
		return result, errors.New("reconcile service: unknown meter " + meterID)
	}

	window, err := s.feed.FetchWindow(ctx, meterID, from, to)
	if err != nil {
		for _, zone := range zones {
			s.status.SetFailed(domain.EnergySeries(meterID, zone), err)
		}
		metrics.ObservePass(metrics.ResultError, s.clock.Now().Sub(start))
		return result, err
	}

	// Totals matter only for cold starts; a transient totals failure must
	// not block a warm continuation.
	totals, err := s.feed.FetchTotals(ctx, meterID)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("reconcile: totals unavailable for meter %s: %v", meterID, err)
		}
		totals = nil
	}

	anyErr := false
	for _, zone := range zones {
		written, zerr := s.reconcileZone(ctx, meterID, zone, window[zone], totals)
		result.Zones[zone] = ZoneResult{Written: written, Err: zerr}
		if zerr != nil {
			anyErr = true
			if s.logger != nil {
				s.logger.Printf("reconcile: meter=%s zone=%s failed: %v", meterID, zone, zerr)
			}
		}
	}

	passResult := metrics.ResultSuccess
	if anyErr {
		passResult = metrics.ResultPartial
		if len(result.Failed()) == len(zones) {
			passResult = metrics.ResultError
		}
	}
	metrics.ObservePass(passResult, s.clock.Now().Sub(start))
	return result, nil
}

func (s *Service) reconcileZone(ctx context.Context, meterID string, zone domain.ZoneKey, deltas []domain.DeltaPoint, totals map[domain.ZoneKey]float64) (int, error) {
	energySeries := domain.EnergySeries(meterID, zone)
	costSeries := domain.CostSeries(meterID, zone)

	lock := s.seriesLock(energySeries)
	lock.Lock()
	defer lock.Unlock()

	if !domain.SortedAscending(deltas) {
		s.status.SetFailed(energySeries, domain.ErrUnsortedDeltas)
		return 0, domain.ErrUnsortedDeltas
	}

	cursor, err := s.store.GetLastPoint(ctx, energySeries)
	if err != nil {
		s.status.SetFailed(energySeries, err)
		return 0, err
	}

	total := s.usableTotal(meterID, zone, totals)

	anchor := domain.ResolveAnchor(cursor, total, deltas)
	if anchor.Source == domain.SourceZero && len(deltas) > 0 && s.logger != nil {
		// Ambiguous cold start: no cursor and no usable total. Proceeding
		// from zero is correct but worth surfacing.
		s.logger.Printf("reconcile: meter=%s zone=%s anchoring at zero (no cursor, no usable total)", meterID, zone)
	}

	cutoff := time.Time{}
	if cursor != nil {
		cutoff = cursor.Start
	}

	points := domain.Accumulate(anchor, deltas, cutoff, s.cfg.MaxHourly)
	if len(points) == 0 {
		s.status.SetOK(energySeries, 0, time.Time{})
		return 0, nil
	}

	price, err := s.pricing.Price(ctx, zone)
	if err != nil {
		s.status.SetFailed(energySeries, err)
		return 0, err
	}
	costs := domain.DeriveCost(points, price)

	if err := s.store.AppendPoints(ctx, energySeries, points); err != nil {
		s.status.SetFailed(energySeries, err)
		return 0, err
	}
	if err := s.store.AppendPoints(ctx, costSeries, costPointsAsCumulative(costs)); err != nil {
		s.status.SetFailed(costSeries, err)
		return len(points), err
	}

	last := points[len(points)-1]
	s.status.SetOK(energySeries, len(points), last.Start)
	s.status.SetOK(costSeries, len(costs), last.Start)
	metrics.AddPointsWritten(string(domain.KindEnergy), len(points))
	metrics.AddPointsWritten(string(domain.KindCost), len(costs))

	if s.logger != nil {
		s.logger.Printf("reconcile: meter=%s zone=%s wrote %d points (anchor=%s, sum=%.3f)",
			meterID, zone, len(points), anchor.Source, last.Sum)
	}
	return len(points), nil
}

// usableTotal applies the glitch guard: a total that is non-positive, or
// that regresses below a previously observed plausible total for the same
// series, is treated as absent so a transient API failure can never
// masquerade as a meter reset.
func (s *Service) usableTotal(meterID string, zone domain.ZoneKey, totals map[domain.ZoneKey]float64) *float64 {
	if totals == nil {
		return nil
	}
	total, ok := totals[zone]
	if !ok {
		return nil
	}

	key := meterID + ":" + string(zone)
	s.totalsMu.Lock()
	defer s.totalsMu.Unlock()

	if total <= 0 {
		if s.logger != nil {
			s.logger.Printf("reconcile: ignoring non-positive total %.3f for %s", total, key)
		}
		return nil
	}
	if prev, seen := s.observed[key]; seen && total < prev {
		if s.logger != nil {
			s.logger.Printf("reconcile: ignoring regressed total %.3f for %s (previously %.3f)", total, key, prev)
		}
		return nil
	}
	s.observed[key] = total
	return &total
}

func (s *Service) seriesLock(series domain.SeriesID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	key := series.String()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func costPointsAsCumulative(costs []domain.CostPoint) []domain.CumulativePoint {
	out := make([]domain.CumulativePoint, 0, len(costs))
	for _, c := range costs {
		out = append(out, domain.CumulativePoint{Start: c.Start, Delta: c.CostDelta, Sum: c.CostSum})
	}
	return out
}
