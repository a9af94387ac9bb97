package money

import "math"

// Round2 rounds to 2 decimal places, half away from zero. Every money value
// in the pipeline (normalized prices, shares, totals) goes through this so
// rounding behaves the same everywhere.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SameAmount reports whether two amounts are equal to the cent.
func SameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
