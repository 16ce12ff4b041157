// Package utils contains small helpers shared by the binaries.
package utils

import "math"

// DegToRad converts degrees to radians.
func DegToRad(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// WrapRad maps an accumulated heading into (-π, π].
func WrapRad(ang float64) float64 {
	ang = math.Mod(ang, 2*math.Pi)
	switch {
	case ang > math.Pi:
		ang -= 2 * math.Pi
	case ang <= -math.Pi:
		ang += 2 * math.Pi
	}
	return ang
}

// AngleDiffRad returns the smallest rotation from a to b, in (-π, π].
func AngleDiffRad(a, b float64) float64 {
	return WrapRad(b - a)
}
