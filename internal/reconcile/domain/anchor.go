package domain

// AnchorSource tells which rule produced an anchor. The three branches are
// kept structurally distinct so a cold-start anchor can never be confused
// with a fallback taken on an unexpected failure.
type AnchorSource string

const (
	SourcePersistedCursor    AnchorSource = "persisted_cursor"
	SourceAuthoritativeTotal AnchorSource = "authoritative_total"
	SourceZero               AnchorSource = "zero"
)

// Anchor is the starting cumulative sum for one reconciliation pass. It is
// computed fresh per pass and never persisted.
type Anchor struct {
	Sum    float64
	Source AnchorSource
}

// ResolveAnchor decides the starting sum for a pass.
//
// Priority:
//  1. A persisted cursor always wins. Once a series exists, fluctuations of
//     the authoritative total can never shift already-persisted history.
//  2. With no cursor, a usable authoritative total seeds the anchor so that
//     the last point produced by this pass lands exactly on the total.
//  3. Otherwise the series starts from zero.
//
// The caller is responsible for withholding glitched totals (zero or
// regressed readings) by passing a nil total.
func ResolveAnchor(cursor *CumulativePoint, total *float64, candidates []DeltaPoint) Anchor {
	if cursor != nil {
		return Anchor{Sum: cursor.Sum, Source: SourcePersistedCursor}
	}

	if total != nil && *total > 0 {
		var pending float64
		for _, d := range candidates {
			pending += d.Value
		}
		return Anchor{Sum: *total - pending, Source: SourceAuthoritativeTotal}
	}

	return Anchor{Sum: 0, Source: SourceZero}
}
