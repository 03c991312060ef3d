package domain

import "time"

// Accumulate walks sorted deltas forward from the anchor sum and emits one
// CumulativePoint per accepted delta.
//
// Deduplication is timestamp-only: points at or before cutoff are skipped, so
// re-fetching an overlapping window is idempotent. A zero cutoff means no
// cursor exists and nothing is filtered. Deltas outside [0, maxHourly] leave
// the running sum unchanged and emit nothing.
//
// The output, concatenated after the already-persisted sequence, is
// non-decreasing in Sum and strictly increasing in Start. Empty filtered
// input returns nil, which is a no-op for the caller, not an error.
func Accumulate(anchor Anchor, sorted []DeltaPoint, cutoff time.Time, maxHourly float64) []CumulativePoint {
	sum := anchor.Sum

	var out []CumulativePoint
	for _, d := range sorted {
		if !cutoff.IsZero() && !d.Start.After(cutoff) {
			continue
		}
		if d.Value < 0 || d.Value > maxHourly {
			continue
		}
		sum += d.Value
		out = append(out, CumulativePoint{Start: d.Start, Delta: d.Value, Sum: sum})
	}
	return out
}

// SortedAscending reports whether the deltas are in ascending timestamp
// order with no duplicate timestamps.
func SortedAscending(deltas []DeltaPoint) bool {
	for i := 1; i < len(deltas); i++ {
		if !deltas[i].Start.After(deltas[i-1].Start) {
			return false
		}
	}
	return true
}
