package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "metersync_"

	resultSuccess = "success"
	resultPartial = "partial"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	passTotal   *prometheus.CounterVec
	passLatency *prometheus.HistogramVec

	pointsWritten *prometheus.CounterVec

	backfillsTotal *prometheus.CounterVec
	breakerBlocked prometheus.Counter

	cursorAge *prometheus.GaugeVec
)

// Init registers reconciliation metrics.
func Init() {
	registerOnce.Do(func() {
		passTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "passes_total",
				Help: "Total reconciliation passes by result",
			},
			[]string{"result"},
		)
		passLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pass_latency_seconds",
				Help:    "Reconciliation pass latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		pointsWritten = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "points_written_total",
				Help: "Total cumulative points written by series kind",
			},
			[]string{"kind"},
		)

		backfillsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "backfills_total",
				Help: "Total backfill passes scheduled by reason",
			},
			[]string{"reason"},
		)
		breakerBlocked = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "breaker_blocked_total",
				Help: "Total backfill attempts blocked by the circuit breaker",
			},
		)

		cursorAge = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "cursor_age_seconds",
				Help: "Age of the persisted cursor per series",
			},
			[]string{"series"},
		)

		prometheus.MustRegister(
			passTotal,
			passLatency,
			pointsWritten,
			backfillsTotal,
			breakerBlocked,
			cursorAge,
		)
	})
}

// ObservePass records a pass result and duration.
func ObservePass(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if passTotal != nil {
		passTotal.WithLabelValues(result).Inc()
	}
	if passLatency != nil {
		passLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddPointsWritten increments written point counters.
func AddPointsWritten(kind string, count int) {
	if count <= 0 {
		return
	}
	if pointsWritten != nil {
		pointsWritten.WithLabelValues(kind).Add(float64(count))
	}
}

// IncBackfill increments scheduled backfill counters.
func IncBackfill(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if backfillsTotal != nil {
		backfillsTotal.WithLabelValues(reason).Inc()
	}
}

// IncBreakerBlocked increments the breaker block counter.
func IncBreakerBlocked() {
	if breakerBlocked != nil {
		breakerBlocked.Inc()
	}
}

// SetCursorAge sets the cursor age gauge for a series.
func SetCursorAge(series string, age time.Duration) {
	if age < 0 {
		age = 0
	}
	if cursorAge != nil {
		cursorAge.WithLabelValues(series).Set(age.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultPartial = resultPartial
	ResultError   = resultError

	BackfillReasonNoCursor = "no_cursor"
	BackfillReasonStale    = "stale_cursor"
	BackfillReasonManual   = "manual"
)
