package domain

// DeriveCost builds the cost series strictly as energy × price.
//
// The cost sum is multiplied from the energy sum rather than accumulated on
// its own, so the two series cannot drift apart through floating-point
// accumulation or missed points, and the cost series needs no anchor of its
// own.
func DeriveCost(points []CumulativePoint, price float64) []CostPoint {
	if len(points) == 0 {
		return nil
	}
	out := make([]CostPoint, 0, len(points))
	for _, p := range points {
		out = append(out, CostPoint{
			Start:     p.Start,
			CostDelta: p.Delta * price,
			CostSum:   p.Sum * price,
		})
	}
	return out
}
