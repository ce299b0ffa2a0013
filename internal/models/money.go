package models

import "math"

// Round2 rounds a monetary amount to two decimal places. All totals stored
// on orders and items go through this.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
