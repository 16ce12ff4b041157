package motion

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/samber/lo"

	"github.com/drivecore/drivecore/components/drivetrain"
	"github.com/drivecore/drivecore/control"
	"github.com/drivecore/drivecore/spatialmath"
)

const (
	// arcPowerLimit bounds the drive and curve contributions, and is the fixed power in follow mode.
	arcPowerLimit = 7500
	// arcOutputLimit bounds each side before the curve correction is added.
	arcOutputLimit = arcPowerLimit + 1000
	// arcDoneDist is the remaining arc length (inches) that counts as arrived.
	arcDoneDist = 2
	// curveSharpness scales how quickly the inner/outer power split fades with radius.
	curveSharpness = 7.0
)

// Arc drives along a circular arc between two points. Arcs spanning more than
// about 7π/4 are not supported.
type Arc struct {
	pose   PoseSource
	motors drivetrain.Motors
	drive  *control.PID
	turn   *control.PID
	curve  *control.PID
	clock  clock.Clock

	start, target, center r2.Point
	radius                float64
	dir                   int
	bias                  int
	follow                bool
	wait                  time.Duration

	settle  settleTimer
	prevPos r2.Point
	hasPrev bool
}

// NewArc returns an arc drive using the drive and curve controllers.
func NewArc(pose PoseSource, motors drivetrain.Motors, ctrl *Controllers, clk clock.Clock) *Arc {
	return &Arc{
		pose:   pose,
		motors: motors,
		drive:  ctrl.Drive,
		turn:   ctrl.Turn,
		curve:  ctrl.Curve,
		clock:  clk,
		dir:    1,
		settle: settleTimer{clock: clk},
	}
}

// Init sets an arc of the given radius from start to target. rotationDir is 1 for
// counter-clockwise travel around the center and -1 for clockwise. When the radius is
// shorter than half the chord the center falls on the chord's midpoint.
func (a *Arc) Init(start, target r2.Point, radius float64, rotationDir int, wait time.Duration) {
	a.start = spatialmath.NudgeZero(start)
	a.target = spatialmath.NudgeZero(target)
	a.radius = radius
	a.dir = rotationSign(rotationDir)
	a.wait = wait
	a.bias = 0
	a.follow = false

	delta := a.target.Sub(a.start)
	mid := a.start.Add(a.target).Mul(0.5)
	altAngle := math.Atan2(delta.Y, delta.X) + math.Pi/2*float64(a.dir)
	halfChord := delta.Norm() / 2
	altMag := math.Sqrt(math.Max(radius*radius-halfChord*halfChord, 0))
	a.center = mid.Add(spatialmath.PolarToRect(altMag, altAngle))

	a.drive.ResetSettle()
	a.turn.ResetSettle()
	a.curve.ResetSettle()
	a.settle.reset()
	a.hasPrev = false
}

// InitFollow is Init in follow mode: the arc is driven at constant power and the
// remaining distance only decides completion.
func (a *Arc) InitFollow(start, target r2.Point, radius float64, rotationDir int, wait time.Duration) {
	a.Init(start, target, radius, rotationDir, wait)
	a.follow = true
}

// SetBias adds a constant power split toward the outside of the arc. Init clears it.
func (a *Arc) SetBias(bias int) {
	a.bias = bias
}

// ArcPos returns the arc length remaining from the current position to the target,
// measured in the direction of travel.
func (a *Arc) ArcPos() float64 {
	return a.arcPos(a.pose.Pose().Point())
}

func (a *Arc) arcPos(p r2.Point) float64 {
	pos := p.Sub(a.center)
	tgt := a.target.Sub(a.center)
	st := a.start.Sub(a.center)
	angle := spatialmath.AngleBetween(pos, tgt)
	if angle > math.Pi/2 {
		if (a.dir == 1 && spatialmath.IsLeftOf(st, pos)) || (a.dir == -1 && spatialmath.IsRightOf(st, pos)) {
			angle = 2*math.Pi - angle
		}
	}
	return angle * pos.Norm()
}

// curveFactor is the inner/outer power ratio for a radius, in [0.001, 1].
// Tight arcs get a large split; wide arcs approach straight driving.
func curveFactor(radius float64) float64 {
	return lo.Clamp(2/(1+math.Exp(-radius/curveSharpness))-1, 0.001, 1)
}

// Update runs one control tick.
func (a *Arc) Update(ctx context.Context) (bool, error) {
	pose := a.pose.Pose()
	pos := pose.Point()
	arcPos := a.arcPos(pos)

	tangent := spatialmath.Rotate90(a.center.Sub(pos), -a.dir)
	errAngle, driveDir := headingError(spatialmath.Heading(pose.Heading), tangent)

	// the remaining distance goes negative once the target is behind us
	rVec := pos.Sub(a.center)
	tgt := a.target.Sub(a.center)
	if (a.dir == 1 && spatialmath.IsRightOf(tgt, rVec)) || (a.dir == -1 && spatialmath.IsLeftOf(tgt, rVec)) {
		arcPos = -arcPos
	}
	if math.Abs(arcPos) > rVec.Norm()*math.Pi {
		arcPos = -arcPos
	}

	drivePwr := -a.drive.Update(0, arcPos)
	if a.follow {
		drivePwr = arcPowerLimit
	}
	turnPwr := lo.Clamp(int(a.curve.Update(0, errAngle)), -arcPowerLimit, arcPowerLimit)

	curveFac := curveFactor(a.radius)
	dl := lo.Clamp(drivePwr*float64(driveDir), -arcPowerLimit, arcPowerLimit)
	dr := dl
	if a.dir*driveDir == -1 {
		dl /= curveFac
		dr *= curveFac
	} else {
		dl *= curveFac
		dr /= curveFac
	}
	bias := float64(a.dir * driveDir * a.bias)
	dl -= bias
	dr += bias

	left := lo.Clamp(int(dl), -arcOutputLimit, arcOutputLimit) - turnPwr
	right := lo.Clamp(int(dr), -arcOutputLimit, arcOutputLimit) + turnPwr
	if err := drivetrain.SetPower(ctx, a.motors, left, right); err != nil {
		return false, err
	}

	a.settle.update(math.Abs(arcPos) < arcDoneDist && !movedSince(pos, a.prevPos, a.hasPrev))
	a.prevPos, a.hasPrev = pos, true
	return a.settle.done(a.wait), nil
}

// Center returns the center of the arc.
func (a *Arc) Center() r2.Point {
	return a.center
}

// Radius returns the requested radius.
func (a *Arc) Radius() float64 {
	return a.radius
}

// Target returns the end of the arc.
func (a *Arc) Target() r2.Point {
	return a.target
}

// RotationDir returns 1 for counter-clockwise arcs and -1 for clockwise ones.
func (a *Arc) RotationDir() int {
	return a.dir
}

// Following reports whether the arc was started with InitFollow.
func (a *Arc) Following() bool {
	return a.follow
}

// Snapshot reads the voltages and captures the state of the arc and its controllers.
func (a *Arc) Snapshot(ctx context.Context, v drivetrain.Voltages) (Snapshot, error) {
	lv, err := v.LeftVoltage(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	rv, err := v.RightVoltage(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	pose := a.pose.Pose()
	return Snapshot{
		Time:         a.clock.Now(),
		LeftVoltage:  lv,
		RightVoltage: rv,
		DriveSensed:  a.drive.Sensed(),
		DriveTarget:  a.drive.Target(),
		CurveSensed:  a.curve.Sensed(),
		CurveTarget:  a.curve.Target(),
		Radius:       pose.Point().Sub(a.center).Norm(),
		TargetRadius: a.radius,
		Pose:         pose,
		TargetPoint:  a.target,
	}, nil
}
