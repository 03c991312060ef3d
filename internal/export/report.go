package export

import (
	"context"
	"errors"
	"sort"
	"time"

	"metersync/internal/reconcile/domain"
)

// PointLister is the read side of the statistics store used for reports.
type PointLister interface {
	ListPoints(ctx context.Context, series domain.SeriesID, from, to time.Time) ([]domain.CumulativePoint, error)
}

// DayRow is one day of a monthly report.
type DayRow struct {
	Day       time.Time
	EnergyKWh float64
	Cost      float64
	EnergySum float64
	CostSum   float64
}

// MonthlyReport summarizes one meter zone over a calendar month.
type MonthlyReport struct {
	MeterID     string
	Zone        domain.ZoneKey
	Month       time.Time
	TotalEnergy float64
	TotalCost   float64
	Days        []DayRow
	GeneratedAt time.Time
}

// ReportService builds monthly reports from persisted series.
type ReportService struct {
	store PointLister
}

// NewReportService constructs a report service.
func NewReportService(store PointLister) (*ReportService, error) {
	if store == nil {
		return nil, errors.New("export: nil store")
	}
	return &ReportService{store: store}, nil
}

// BuildMonthlyReport aggregates the persisted energy and cost series of one
// meter zone into per-day rows for the month containing the given time.
func (s *ReportService) BuildMonthlyReport(ctx context.Context, meterID string, zone domain.ZoneKey, month time.Time) (*MonthlyReport, error) {
	if meterID == "" {
		return nil, domain.ErrEmptyMeterID
	}

	m := month.UTC()
	from := time.Date(m.Year(), m.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	energy, err := s.store.ListPoints(ctx, domain.EnergySeries(meterID, zone), from, to)
	if err != nil {
		return nil, err
	}
	cost, err := s.store.ListPoints(ctx, domain.CostSeries(meterID, zone), from, to)
	if err != nil {
		return nil, err
	}

	byDay := make(map[time.Time]*DayRow)
	for _, p := range energy {
		day := startOfDay(p.Start)
		row, ok := byDay[day]
		if !ok {
			row = &DayRow{Day: day}
			byDay[day] = row
		}
		row.EnergyKWh += p.Delta
		row.EnergySum = p.Sum
	}
	for _, p := range cost {
		day := startOfDay(p.Start)
		row, ok := byDay[day]
		if !ok {
			row = &DayRow{Day: day}
			byDay[day] = row
		}
		row.Cost += p.Delta
		row.CostSum = p.Sum
	}

	report := &MonthlyReport{
		MeterID:     meterID,
		Zone:        zone,
		Month:       from,
		GeneratedAt: time.Now().UTC(),
	}
	for _, row := range byDay {
		report.Days = append(report.Days, *row)
		report.TotalEnergy += row.EnergyKWh
		report.TotalCost += row.Cost
	}
	sort.Slice(report.Days, func(i, j int) bool { return report.Days[i].Day.Before(report.Days[j].Day) })
	return report, nil
}

// A point stamped at the end of an hour belongs to the hour it covers, so
// midnight rows count toward the previous day.
func startOfDay(t time.Time) time.Time {
	u := t.UTC().Add(-time.Nanosecond)
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
