package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"metersync/internal/export"
	"metersync/internal/observability/metrics"
	"metersync/internal/reconcile/application"
	"metersync/internal/reconcile/domain"
)

const timeLayout = time.RFC3339

// Handler provides the reconciliation APIs.
type Handler struct {
	service *application.Service
	breaker *application.Breaker
	status  *application.StatusRegistry
	reports *export.ReportService
	clock   application.Clock
}

// NewHandler constructs a handler.
func NewHandler(service *application.Service, breaker *application.Breaker, status *application.StatusRegistry, reports *export.ReportService, clock application.Clock) (*Handler, error) {
	if service == nil || breaker == nil || status == nil || reports == nil {
		return nil, errors.New("reconcile handler: nil dependency")
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Handler{service: service, breaker: breaker, status: status, reports: reports, clock: clock}, nil
}

// ServeHTTP routes reconciliation endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/reconciliation/status" && r.Method == http.MethodGet:
		h.handleStatus(w, r)
		return
	case r.URL.Path == "/api/v1/reconciliation/backfill" && r.Method == http.MethodPost:
		h.handleBackfill(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/reconciliation/reports/") && r.Method == http.MethodGet:
		h.handleReport(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.status.Snapshot())
}

func (h *Handler) handleBackfill(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MeterID string `json:"meter_id"`
		From    string `json:"from"`
		To      string `json:"to"`
		Days    int    `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.MeterID == "" {
		http.Error(w, "meter_id required", http.StatusBadRequest)
		return
	}

	now := h.clock.Now()
	var from, to time.Time
	switch {
	case req.From != "" && req.To != "":
		var err error
		if from, err = time.Parse(timeLayout, req.From); err != nil {
			http.Error(w, "from must be RFC3339", http.StatusBadRequest)
			return
		}
		if to, err = time.Parse(timeLayout, req.To); err != nil {
			http.Error(w, "to must be RFC3339", http.StatusBadRequest)
			return
		}
	case req.Days > 0:
		from = now.AddDate(0, 0, -req.Days)
		to = now
	default:
		http.Error(w, "from/to or days required", http.StatusBadRequest)
		return
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	if !h.breaker.Attempt(req.MeterID) {
		http.Error(w, "meter is cooling down", http.StatusTooManyRequests)
		return
	}
	metrics.IncBackfill(metrics.BackfillReasonManual)

	// The pass outlives the request; failures land in the status registry.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		_, _ = h.service.RunPass(ctx, req.MeterID, from.UTC(), to.UTC())
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"meter_id": req.MeterID,
		"from":     from.UTC().Format(timeLayout),
		"to":       to.UTC().Format(timeLayout),
		"status":   "scheduled",
	})
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	meterID := strings.TrimPrefix(r.URL.Path, "/api/v1/reconciliation/reports/")
	if meterID == "" || strings.Contains(meterID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	zone := domain.ZoneKey(r.URL.Query().Get("zone"))
	if zone == "" {
		zone = domain.ZoneDefault
	}
	month, err := parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.reports.BuildMonthlyReport(r.Context(), meterID, zone, month)
	if err != nil {
		http.Error(w, "report build error", http.StatusInternalServerError)
		return
	}

	name := meterID + "-" + string(zone) + "-" + month.Format("2006-01")
	switch r.URL.Query().Get("format") {
	case "pdf":
		data, err := export.BuildReportPDF(report)
		if err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.pdf"`)
		_, _ = w.Write(data)
	case "xlsx":
		data, err := export.BuildReportXLSX(report)
		if err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.xlsx"`)
		_, _ = w.Write(data)
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}

func parseMonth(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("month required")
	}
	t, err := time.Parse("2006-01", value)
	if err != nil {
		return time.Time{}, errors.New("month must be YYYY-MM")
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
}
