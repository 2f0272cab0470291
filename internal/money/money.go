// Package money holds cent-precision helpers for float64 amounts.
package money

import "math"

// Round2 rounds an amount to cent precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
