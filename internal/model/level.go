package model

import "math"

// XPPerLevelUnit is the divisor in the level curve: level = floor(sqrt(xp/100)) + 1.
const XPPerLevelUnit = 100

// LevelForXP computes the level for a cumulative XP total.
//
//	xp=0   → 1
//	xp=99  → 1
//	xp=100 → 2
//	xp=400 → 3
//	xp=900 → 4
//
// floor(sqrt(xp/100)) equals the integer square root of floor(xp/100), so we
// stay in integer arithmetic and only use math.Sqrt as a first guess.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 1
	}
	units := xp / XPPerLevelUnit
	return isqrt(units) + 1
}

// isqrt returns floor(sqrt(n)) for n >= 0.
func isqrt(n int) int {
	r := int(math.Sqrt(float64(n)))
	// Correct float rounding at the edges of perfect squares.
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}
