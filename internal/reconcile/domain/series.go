package domain

import (
	"fmt"
	"time"
)

// ZoneKey identifies a tariff zone within a meter. Single-zone tariffs use
// ZoneDefault; two-zone tariffs typically use "peak" and "offpeak".
type ZoneKey string

// ZoneDefault is the zone key for single-zone tariffs.
const ZoneDefault ZoneKey = "default"

// SeriesKind distinguishes the energy series from its derived cost series.
type SeriesKind string

const (
	KindEnergy SeriesKind = "energy"
	KindCost   SeriesKind = "cost"
)

// IsValid reports whether the kind is a known series kind.
func (k SeriesKind) IsValid() bool {
	return k == KindEnergy || k == KindCost
}

// SeriesID identifies one persisted cumulative series.
type SeriesID struct {
	MeterID string
	Zone    ZoneKey
	Kind    SeriesKind
}

// EnergySeries builds the energy series id for a meter + zone.
func EnergySeries(meterID string, zone ZoneKey) SeriesID {
	return SeriesID{MeterID: meterID, Zone: zone, Kind: KindEnergy}
}

// CostSeries builds the cost series id for a meter + zone.
func CostSeries(meterID string, zone ZoneKey) SeriesID {
	return SeriesID{MeterID: meterID, Zone: zone, Kind: KindCost}
}

// String renders a stable storage key, e.g. "30132815:peak:energy".
func (s SeriesID) String() string {
	return fmt.Sprintf("%s:%s:%s", s.MeterID, s.Zone, s.Kind)
}

// DeltaPoint is one hour's energy increment for one zone, produced by the
// feed and consumed once by the accumulator.
type DeltaPoint struct {
	Start time.Time
	Value float64
	Zone  ZoneKey
}

// CumulativePoint is one persisted statistics row. For any two points of the
// same series ordered by Start, Sum is non-decreasing.
type CumulativePoint struct {
	Start time.Time
	Delta float64
	Sum   float64
}

// CostPoint mirrors a CumulativePoint on the cost series. CostSum is always
// the matching energy Sum multiplied by the zone price at emission time.
type CostPoint struct {
	Start     time.Time
	CostDelta float64
	CostSum   float64
}
