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

// Notifier delivers reconciliation alerts to an external channel.
type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}

// Healer periodically compares each series' persisted cursor against now and
// schedules backfill passes for missing or stale history. Backfills are
// fire-and-forget but bounded to one outstanding attempt per meter by the
// circuit breaker.
type Healer struct {
	service  *Service
	store    StatisticsStore
	breaker  *Breaker
	status   *StatusRegistry
	notifier Notifier
	cfg      Config
	clock    Clock
	logger   *log.Logger

	wg sync.WaitGroup
}

// NewHealer constructs a healer.
func NewHealer(cfg Config, service *Service, store StatisticsStore, breaker *Breaker, status *StatusRegistry, notifier Notifier, clock Clock, logger *log.Logger) (*Healer, error) {
	if service == nil {
		return nil, errors.New("healer: nil service")
	}
	if store == nil {
		return nil, errors.New("healer: nil store")
	}
	if breaker == nil {
		return nil, errors.New("healer: nil breaker")
	}
	if status == nil {
		return nil, errors.New("healer: nil status registry")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Healer{
		service:  service,
		store:    store,
		breaker:  breaker,
		status:   status,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
	}, nil
}

// CheckOnce inspects every tracked series and schedules at most one backfill
// per meter. Safe to call from a ticker loop.
func (h *Healer) CheckOnce(ctx context.Context) {
	now := h.clock.Now()

	for _, meter := range h.cfg.Meters {
		from, reason, affected := h.inspectMeter(ctx, meter, now)
		if reason == "" {
			continue
		}

		if !h.breaker.Attempt(meter.ID) {
			for _, series := range affected {
				h.status.SetState(series, StateCooldown)
			}
			metrics.IncBreakerBlocked()
			if h.logger != nil {
				h.logger.Printf("healer: backfill for meter %s withheld (cooling down)", meter.ID)
			}
			continue
		}

		for _, series := range affected {
			h.status.SetState(series, StateBackfill)
		}
		metrics.IncBackfill(reason)
		if h.logger != nil {
			h.logger.Printf("healer: scheduling backfill for meter %s from %s (%s)", meter.ID, from.Format(time.RFC3339), reason)
		}

		h.wg.Add(1)
		go func(meterID string, from, to time.Time, affected []domain.SeriesID) {
			defer h.wg.Done()
			h.runBackfill(ctx, meterID, from, to, affected)
		}(meter.ID, from, now, affected)
	}
}

// Wait blocks until all in-flight backfills finish. Used on shutdown so an
// in-progress day unit can complete instead of leaving a half-written window.
func (h *Healer) Wait() {
	h.wg.Wait()
}

func (h *Healer) inspectMeter(ctx context.Context, meter MeterConfig, now time.Time) (time.Time, string, []domain.SeriesID) {
	var (
		from     time.Time
		reason   string
		affected []domain.SeriesID
	)

	for _, zone := range h.cfg.ZonesFor(meter.ID) {
		series := domain.EnergySeries(meter.ID, zone)
		cursor, err := h.store.GetLastPoint(ctx, series)
		if err != nil {
			if h.logger != nil {
				h.logger.Printf("healer: cursor read failed for %s: %v", series, err)
			}
			continue
		}

		if cursor == nil {
			candidate := now.Add(-h.cfg.Lookback)
			if from.IsZero() || candidate.Before(from) {
				from = candidate
			}
			reason = metrics.BackfillReasonNoCursor
			affected = append(affected, series)
			continue
		}

		age := now.Sub(cursor.Start)
		metrics.SetCursorAge(series.String(), age)
		if age <= h.cfg.StaleThreshold {
			continue
		}
		if from.IsZero() || cursor.Start.Before(from) {
			from = cursor.Start
		}
		if reason == "" {
			reason = metrics.BackfillReasonStale
		}
		affected = append(affected, series)
	}
	return from, reason, affected
}

func (h *Healer) runBackfill(ctx context.Context, meterID string, from, to time.Time, affected []domain.SeriesID) {
	result, err := h.service.RunPass(ctx, meterID, from, to)
	for _, series := range affected {
		h.status.SetState(series, StateCooldown)
	}

	if err != nil {
		if h.logger != nil {
			h.logger.Printf("healer: backfill for meter %s failed: %v", meterID, err)
		}
		h.notify(ctx, "backfill failed", "meter "+meterID+": "+err.Error())
		return
	}
	if failed := result.Failed(); len(failed) > 0 {
		msg := "meter " + meterID + ", zones:"
		for _, zone := range failed {
			msg += " " + string(zone)
		}
		h.notify(ctx, "backfill partially failed", msg)
		return
	}
	if h.logger != nil {
		h.logger.Printf("healer: backfill for meter %s complete", meterID)
	}
}

func (h *Healer) notify(ctx context.Context, subject, message string) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Notify(ctx, subject, message); err != nil && h.logger != nil {
		h.logger.Printf("healer: notify failed: %v", err)
	}
}
