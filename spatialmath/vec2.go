// Package spatialmath defines the planar vector helpers used by odometry and the motion primitives.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/samber/lo"
)

// zeroNudge replaces exactly-zero goal coordinates so later magnitude and angle
// formulas never divide by zero.
const zeroNudge = 0.001

// NudgeZero returns p with every coordinate that is exactly zero replaced by 0.001.
func NudgeZero(p r2.Point) r2.Point {
	if p.X == 0 {
		p.X = zeroNudge
	}
	if p.Y == 0 {
		p.Y = zeroNudge
	}
	return p
}

// MagCross returns the magnitude of the cross product of a and b.
func MagCross(a, b r2.Point) float64 {
	return math.Abs(a.Cross(b))
}

// CrossSign returns the sign of a×b: 1 when b is counter-clockwise of a, -1 when it is
// clockwise of a and 0 when they are parallel.
func CrossSign(a, b r2.Point) int {
	c := a.Cross(b)
	switch {
	case c > 0:
		return 1
	case c < 0:
		return -1
	default:
		return 0
	}
}

// IsLeftOf reports whether v points strictly counter-clockwise of ref.
// Parallel and anti-parallel vectors are neither left nor right.
func IsLeftOf(v, ref r2.Point) bool {
	return CrossSign(ref, v) > 0
}

// IsRightOf reports whether v points strictly clockwise of ref.
func IsRightOf(v, ref r2.Point) bool {
	return CrossSign(ref, v) < 0
}

// Rotate90 rotates p by a quarter turn: counter-clockwise for dir > 0, clockwise for dir < 0.
// A zero dir returns p unchanged.
func Rotate90(p r2.Point, dir int) r2.Point {
	switch {
	case dir > 0:
		return p.Ortho()
	case dir < 0:
		return r2.Point{X: p.Y, Y: -p.X}
	default:
		return p
	}
}

// PolarToRect converts a magnitude and angle in radians to a point.
func PolarToRect(mag, angle float64) r2.Point {
	return r2.Point{X: mag * math.Cos(angle), Y: mag * math.Sin(angle)}
}

// Heading returns the unit vector pointing along the given heading in radians.
func Heading(angle float64) r2.Point {
	return PolarToRect(1, angle)
}

// AngleBetween returns the unsigned angle in [0, π] between a and b. The cosine is
// clamped to [-1, 1]; a zero-length input yields 0.
func AngleBetween(a, b r2.Point) float64 {
	mags := a.Norm() * b.Norm()
	if mags == 0 {
		return 0
	}
	return math.Acos(lo.Clamp(a.Dot(b)/mags, -1.0, 1.0))
}
