package normalize

import "math"

// Magnitude thresholds of the unit heuristics. These guess the unit from the
// size of the number; they are not a unit inference and will misjudge
// companies whose true values sit near a threshold.
const (
	// Absolute amounts above this are taken as raw currency units.
	RawUnitThreshold = 1_000_000
	// Market caps below this are taken as trillions.
	MarketCapTrillionsBelow = 100
	// Market caps above this are taken as billions.
	MarketCapBillionsAbove = 1_000_000
)

// NormalizeUnit rescales an extracted value into millions of currency units
// according to the metric's unit class. Thresholds are exclusive: a value
// exactly on a boundary passes through unchanged.
func NormalizeUnit(unit UnitClass, v float64) float64 {
	switch unit {
	case UnitPassthrough:
		return v
	case UnitMarketCap:
		switch {
		case v < MarketCapTrillionsBelow:
			return v * 1_000_000
		case v > MarketCapBillionsAbove:
			return v * 1_000
		default:
			return v
		}
	default:
		if math.Abs(v) > RawUnitThreshold {
			return v / 1_000_000
		}
		return v
	}
}
