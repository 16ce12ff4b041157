package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestNudgeZero(t *testing.T) {
	test.That(t, NudgeZero(r2.Point{}), test.ShouldResemble, r2.Point{X: 0.001, Y: 0.001})
	test.That(t, NudgeZero(r2.Point{X: 3, Y: 0}), test.ShouldResemble, r2.Point{X: 3, Y: 0.001})
	test.That(t, NudgeZero(r2.Point{X: -2, Y: 5}), test.ShouldResemble, r2.Point{X: -2, Y: 5})
}

func TestCrossSign(t *testing.T) {
	east := r2.Point{X: 1, Y: 0}
	north := r2.Point{X: 0, Y: 1}

	test.That(t, CrossSign(east, north), test.ShouldEqual, 1)
	test.That(t, CrossSign(north, east), test.ShouldEqual, -1)
	test.That(t, CrossSign(east, r2.Point{X: -4, Y: 0}), test.ShouldEqual, 0)

	test.That(t, IsLeftOf(north, east), test.ShouldBeTrue)
	test.That(t, IsRightOf(north, east), test.ShouldBeFalse)
	test.That(t, IsRightOf(east, north), test.ShouldBeTrue)

	t.Run("parallel is neither side", func(t *testing.T) {
		back := r2.Point{X: -1, Y: 0}
		test.That(t, IsLeftOf(back, east), test.ShouldBeFalse)
		test.That(t, IsRightOf(back, east), test.ShouldBeFalse)
	})

	test.That(t, MagCross(north, east), test.ShouldEqual, 1.0)
}

func TestRotate90(t *testing.T) {
	p := r2.Point{X: 2, Y: 1}
	test.That(t, Rotate90(p, 1), test.ShouldResemble, r2.Point{X: -1, Y: 2})
	test.That(t, Rotate90(p, -1), test.ShouldResemble, r2.Point{X: 1, Y: -2})
	test.That(t, Rotate90(p, 0), test.ShouldResemble, p)
	test.That(t, Rotate90(Rotate90(p, 1), -1), test.ShouldResemble, p)
}

func TestAngleBetween(t *testing.T) {
	test.That(t, AngleBetween(r2.Point{X: 1}, r2.Point{Y: 3}), test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, AngleBetween(r2.Point{X: 1}, r2.Point{X: -1}), test.ShouldAlmostEqual, math.Pi)
	test.That(t, AngleBetween(r2.Point{X: 1, Y: 1}, r2.Point{X: 2, Y: 2}), test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, AngleBetween(r2.Point{}, r2.Point{X: 1}), test.ShouldEqual, 0.0)

	p := PolarToRect(2, math.Pi/3)
	test.That(t, p.X, test.ShouldAlmostEqual, 1.0)
	test.That(t, p.Y, test.ShouldAlmostEqual, math.Sqrt(3))
	test.That(t, Heading(0).Norm(), test.ShouldAlmostEqual, 1.0)
}
