package payment

import "math"

// ToMinorUnits converts a decimal amount to integer cents, rounding half away
// from zero.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func FromMinorUnits(v int64) float64 {
	return float64(v) / 100
}
