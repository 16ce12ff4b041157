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

// pursuitGain controls how sharply the line drive steers back onto the line.
const pursuitGain = 0.2

// LineDrive drives to a target while converging onto the line through start and target.
type LineDrive struct {
	pose   PoseSource
	motors drivetrain.Motors
	drive  *control.PID
	turn   *control.PID

	start, target, delta r2.Point
	wait                 time.Duration

	settle  settleTimer
	prevPos r2.Point
	hasPrev bool
}

// NewLineDrive returns a line drive using the drive and turn controllers.
func NewLineDrive(pose PoseSource, motors drivetrain.Motors, ctrl *Controllers, clk clock.Clock) *LineDrive {
	return &LineDrive{
		pose:   pose,
		motors: motors,
		drive:  ctrl.Drive,
		turn:   ctrl.Turn,
		settle: settleTimer{clock: clk},
	}
}

// Init sets the line to follow.
func (d *LineDrive) Init(start, target r2.Point, wait time.Duration) {
	d.start = spatialmath.NudgeZero(start)
	d.target = spatialmath.NudgeZero(target)
	d.delta = d.target.Sub(d.start)
	d.wait = wait
	d.drive.ResetSettle()
	d.turn.ResetSettle()
	d.settle.reset()
	d.hasPrev = false
}

// pursuitAngle returns the offset from the line direction the robot should head at.
// It is 0 on the line ahead of the target and approaches ±π/2 far from the line.
func (d *LineDrive) pursuitAngle(toTarget r2.Point) float64 {
	a := math.Pi/2 - math.Atan2(pursuitGain*toTarget.Dot(d.delta), spatialmath.MagCross(toTarget, d.delta))
	if spatialmath.IsLeftOf(d.delta, toTarget) {
		a = -a
	}
	return a
}

// Update runs one control tick.
func (d *LineDrive) Update(ctx context.Context) (bool, error) {
	pose := d.pose.Pose()
	pos := pose.Point()
	toTarget := d.target.Sub(pos)

	lineHeading := math.Atan2(d.delta.Y, d.delta.X)
	want := spatialmath.Heading(lineHeading + d.pursuitAngle(toTarget))
	aErr, dir := headingError(spatialmath.Heading(pose.Heading), want)

	sensed := toTarget.Norm() * math.Cos(aErr)
	turnPwr := lo.Clamp(int(d.turn.Update(0, aErr)), -drivetrain.DrivePowerLimit, drivetrain.DrivePowerLimit)
	drivePwr := lo.Clamp(int(d.drive.Update(0, sensed)), -drivetrain.DrivePowerLimit, drivetrain.DrivePowerLimit)

	if err := drivetrain.SetPower(ctx, d.motors, -drivePwr*dir-turnPwr, -drivePwr*dir+turnPwr); err != nil {
		return false, err
	}

	d.settle.update(math.Abs(sensed) < pointDoneDist && !movedSince(pos, d.prevPos, d.hasPrev))
	d.prevPos, d.hasPrev = pos, true
	return d.settle.done(d.wait), nil
}

// Start returns the start of the line.
func (d *LineDrive) Start() r2.Point {
	return d.start
}

// Target returns the end of the line.
func (d *LineDrive) Target() r2.Point {
	return d.target
}
