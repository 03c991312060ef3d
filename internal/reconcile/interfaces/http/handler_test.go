package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"metersync/internal/export"
	"metersync/internal/reconcile/application"
	"metersync/internal/reconcile/domain"
	"metersync/internal/reconcile/infrastructure/memory"
)

type staticFeed struct {
	window map[domain.ZoneKey][]domain.DeltaPoint
}

func (f *staticFeed) FetchWindow(ctx context.Context, meterID string, from, to time.Time) (map[domain.ZoneKey][]domain.DeltaPoint, error) {
	return f.window, nil
}

func (f *staticFeed) FetchTotals(ctx context.Context, meterID string) (map[domain.ZoneKey]float64, error) {
	return nil, nil
}

type fixedPricing struct{}

func (fixedPricing) Price(ctx context.Context, zone domain.ZoneKey) (float64, error) {
	return 1.0, nil
}

func newTestHandler(t *testing.T, store *memory.StatisticsRepository) (*Handler, *application.StatusRegistry) {
	t.Helper()
	cfg := application.Config{
		Meters: []application.MeterConfig{{
			ID:    "m1",
			Zones: []application.ZoneConfig{{Key: "default", Price: 1.0}},
		}},
		MaxHourly:      100,
		StaleThreshold: 3 * time.Hour,
		Cooldown:       4 * time.Hour,
		Lookback:       30 * 24 * time.Hour,
		PollInterval:   time.Hour,
		PollWindow:     48 * time.Hour,
	}
	status := application.NewStatusRegistry(nil)
	service, err := application.NewService(cfg, &staticFeed{}, store, fixedPricing{}, status, nil, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	reports, err := export.NewReportService(store)
	if err != nil {
		t.Fatalf("NewReportService: %v", err)
	}
	handler, err := NewHandler(service, application.NewBreaker(4*time.Hour, nil), status, reports, nil)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return handler, status
}

func TestStatusEndpoint(t *testing.T) {
	handler, status := newTestHandler(t, memory.NewStatisticsRepository())
	status.SetOK(domain.EnergySeries("m1", "default"), 3, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snapshot []application.SeriesStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].State != application.StateOK {
		t.Fatalf("snapshot = %+v", snapshot)
	}
}

func TestBackfillEndpointSchedulesAndThrottles(t *testing.T) {
	handler, _ := newTestHandler(t, memory.NewStatisticsRepository())

	body := `{"meter_id":"m1","days":7}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/backfill", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}

	// Immediate retry hits the cooldown.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/backfill", strings.NewReader(body)))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

func TestBackfillEndpointValidation(t *testing.T) {
	handler, _ := newTestHandler(t, memory.NewStatisticsRepository())

	cases := []string{
		`{"days":7}`,
		`{"meter_id":"m1"}`,
		`{"meter_id":"m1","from":"bogus","to":"2025-06-01T00:00:00Z"}`,
		`{"meter_id":"m1","from":"2025-06-02T00:00:00Z","to":"2025-06-01T00:00:00Z"}`,
	}
	for _, body := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/backfill", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestReportEndpointFormats(t *testing.T) {
	store := memory.NewStatisticsRepository()
	base := time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)
	if err := store.AppendPoints(context.Background(), domain.EnergySeries("m1", "default"), []domain.CumulativePoint{{Start: base, Delta: 2, Sum: 10}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	handler, _ := newTestHandler(t, store)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/reports/m1?month=2025-06", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("json report status = %d", rec.Code)
	}
	var report export.MonthlyReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.TotalEnergy != 2 {
		t.Fatalf("total energy = %v, want 2", report.TotalEnergy)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/reports/m1?month=2025-06&format=pdf", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("pdf status = %d, content-type = %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/reports/m1?month=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid month status = %d, want 400", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	handler, _ := newTestHandler(t, memory.NewStatisticsRepository())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/reconciliation/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
