package application

import (
	"sort"
	"sync"
	"time"

	"metersync/internal/reconcile/domain"
)

// SeriesState is the reconciliation health of one series.
type SeriesState string

const (
	StateOK       SeriesState = "ok"
	StateFailed   SeriesState = "failed"
	StateBackfill SeriesState = "backfill_scheduled"
	StateCooldown SeriesState = "cooling_down"
)

// SeriesStatus is the last known reconciliation outcome for one series.
// Failures stay visible here instead of being swallowed into a generic OK,
// so the host application can alert on them.
type SeriesStatus struct {
	Series        string      `json:"series"`
	State         SeriesState `json:"state"`
	LastRun       time.Time   `json:"last_run"`
	LastPointAt   time.Time   `json:"last_point_at,omitempty"`
	PointsWritten int         `json:"points_written"`
	LastError     string      `json:"last_error,omitempty"`
}

// StatusRegistry tracks per-series reconciliation status.
type StatusRegistry struct {
	mu     sync.RWMutex
	status map[string]SeriesStatus
	clock  Clock
}

// NewStatusRegistry constructs a registry.
func NewStatusRegistry(clock Clock) *StatusRegistry {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StatusRegistry{
		status: make(map[string]SeriesStatus),
		clock:  clock,
	}
}

// SetOK records a successful pass for a series.
func (r *StatusRegistry) SetOK(series domain.SeriesID, written int, lastPointAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := series.String()
	current := r.status[key]
	if lastPointAt.IsZero() {
		lastPointAt = current.LastPointAt
	}
	r.status[key] = SeriesStatus{
		Series:        key,
		State:         StateOK,
		LastRun:       r.clock.Now(),
		LastPointAt:   lastPointAt,
		PointsWritten: written,
	}
}

// SetFailed records a failed pass for a series.
func (r *StatusRegistry) SetFailed(series domain.SeriesID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := series.String()
	current := r.status[key]
	r.status[key] = SeriesStatus{
		Series:      key,
		State:       StateFailed,
		LastRun:     r.clock.Now(),
		LastPointAt: current.LastPointAt,
		LastError:   err.Error(),
	}
}

// SetState overrides the state of a series without touching the outcome
// fields. Used by the self-healer for its scheduling states.
func (r *StatusRegistry) SetState(series domain.SeriesID, state SeriesState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := series.String()
	current := r.status[key]
	current.Series = key
	current.State = state
	r.status[key] = current
}

// Snapshot returns all statuses sorted by series key.
func (r *StatusRegistry) Snapshot() []SeriesStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]SeriesStatus, 0, len(r.status))
	for _, s := range r.status {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Series < result[j].Series })
	return result
}
