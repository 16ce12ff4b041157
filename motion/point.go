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
	// nearArrival is the forward distance (inches) below which heading corrections stop.
	nearArrival = 4
	// pointDoneDist is the forward distance (inches) that counts as arrived.
	pointDoneDist = 1
)

// PointDrive drives to a point, forwards or backwards, whichever needs less rotation.
type PointDrive struct {
	pose   PoseSource
	motors drivetrain.Motors
	drive  *control.PID
	turn   *control.PID

	target   r2.Point
	wait     time.Duration
	driveDir int

	settle  settleTimer
	prevPos r2.Point
	hasPrev bool
}

// NewPointDrive returns a point drive using the drive and turn controllers.
func NewPointDrive(pose PoseSource, motors drivetrain.Motors, ctrl *Controllers, clk clock.Clock) *PointDrive {
	return &PointDrive{
		pose:     pose,
		motors:   motors,
		drive:    ctrl.Drive,
		turn:     ctrl.Turn,
		driveDir: 1,
		settle:   settleTimer{clock: clk},
	}
}

// Init sets a new target. The target must stay put for wait before Update reports done.
func (d *PointDrive) Init(target r2.Point, wait time.Duration) {
	d.target = spatialmath.NudgeZero(target)
	d.wait = wait
	d.driveDir = 1
	d.drive.ResetSettle()
	d.turn.ResetSettle()
	d.settle.reset()
	d.hasPrev = false
}

// Update runs one control tick.
func (d *PointDrive) Update(ctx context.Context) (bool, error) {
	pose := d.pose.Pose()
	pos := pose.Point()
	toTarget := d.target.Sub(pos)

	aErr, dir := headingError(spatialmath.Heading(pose.Heading), toTarget)
	d.driveDir = dir

	sensed := toTarget.Norm() * math.Cos(aErr)
	if math.Abs(sensed) < nearArrival {
		aErr = 0
	}
	turnPwr := lo.Clamp(int(d.turn.Update(0, aErr)), -drivetrain.DrivePowerLimit, drivetrain.DrivePowerLimit)
	drivePwr := lo.Clamp(int(d.drive.Update(0, sensed)), -drivetrain.DrivePowerLimit, drivetrain.DrivePowerLimit)

	if err := drivetrain.SetPower(ctx, d.motors, -drivePwr*dir-turnPwr, -drivePwr*dir+turnPwr); err != nil {
		return false, err
	}

	d.settle.update(math.Abs(sensed) < pointDoneDist && !movedSince(pos, d.prevPos, d.hasPrev))
	d.prevPos, d.hasPrev = pos, true
	return d.settle.done(d.wait), nil
}

// Target returns the goal, after zero coordinates were nudged.
func (d *PointDrive) Target() r2.Point {
	return d.target
}

// DriveDir returns 1 when the last tick drove forwards and -1 when it drove backwards.
func (d *PointDrive) DriveDir() int {
	return d.driveDir
}
