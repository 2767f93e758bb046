package types

import "fmt"

// Percent is a fixed-point utilization value in basis points of 10000
// (two implied decimal digits), the resolution counter deltas give us.
// 3750 means 37.50%.
type Percent int

// Unavailable marks a signal whose source could not be read this round.
const Unavailable Percent = -1

// Full is 100% in basis points.
const Full Percent = 10000

// Available reports whether the value carries a real reading.
func (p Percent) Available() bool { return p >= 0 }

// String renders the value as integer-and-hundredths ("37.50"), or "na"
// when unavailable. Log consumers parse this layout; keep it stable.
func (p Percent) String() string {
	if p < 0 {
		return "na"
	}
	return fmt.Sprintf("%d.%02d", p/100, p%100)
}

// Float returns the value as a plain percentage (0..100), or -1 when
// unavailable.
func (p Percent) Float() float64 {
	if p < 0 {
		return -1
	}
	return float64(p) / 100
}
