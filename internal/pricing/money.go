package pricing

import "math"

// Round2 rounds a monetary amount to two decimal places, half up. Every
// derived field in the price cascade is rounded through this helper so
// line and header sums agree to the cent with the stored precision.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
