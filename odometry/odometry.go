// Package odometry estimates the robot's planar pose by integrating wheel encoder deltas.
package odometry

import (
	"context"
	"math"
	"sync"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/drivecore/drivecore/components/drivetrain"
)

// DefaultInitialHeading has the robot facing +y.
const DefaultInitialHeading = math.Pi / 2

// Pose is a position in inches plus a heading in radians. Heading accumulates and is never wrapped.
type Pose struct {
	X, Y    float64
	Heading float64
}

// Point returns the position part of the pose.
func (p Pose) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// Odometry is a differential-drive dead-reckoning integrator.
type Odometry struct {
	mu     sync.Mutex
	enc    drivetrain.Encoders
	logger golog.Logger

	trackWidth   float64
	ticksPerInch float64

	pose                  Pose
	prevLeft, prevRight   float64
	xAxisDir, rotationDir float64
}

// New returns an estimator at the origin with the default heading. trackWidth is the
// track parameter L, so a rotation of dR-dL inches turns the robot by (dR-dL)/(2L).
func New(enc drivetrain.Encoders, trackWidth, ticksPerInch float64, logger golog.Logger) (*Odometry, error) {
	if enc == nil {
		return nil, errors.New("odometry requires encoders")
	}
	if trackWidth <= 0 {
		return nil, errors.Errorf("track width must be positive, got %v", trackWidth)
	}
	if ticksPerInch <= 0 {
		return nil, errors.Errorf("ticks per inch must be positive, got %v", ticksPerInch)
	}
	return &Odometry{
		enc:          enc,
		logger:       logger,
		trackWidth:   trackWidth,
		ticksPerInch: ticksPerInch,
		pose:         Pose{Heading: DefaultInitialHeading},
		xAxisDir:     1,
		rotationDir:  1,
	}, nil
}

// Update reads both encoders and integrates the motion since the previous update
// using the midpoint heading. On a read error the pose is left untouched.
func (o *Odometry) Update(ctx context.Context) error {
	left, right, err := drivetrain.Ticks(ctx, o.enc)
	if err != nil {
		return errors.Wrap(err, "odometry update")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	dl := (left - o.prevLeft) / o.ticksPerInch
	dr := (right - o.prevRight) / o.ticksPerInch
	o.prevLeft, o.prevRight = left, right

	dc := (dl + dr) / 2
	dh := o.rotationDir * (dr - dl) / (2 * o.trackWidth)
	mid := o.pose.Heading + dh/2
	o.pose.X += o.xAxisDir * dc * math.Cos(mid)
	o.pose.Y += dc * math.Sin(mid)
	o.pose.Heading += dh
	return nil
}

// Rebase takes the current encoder readings as the new baseline without moving the pose.
func (o *Odometry) Rebase(ctx context.Context) error {
	left, right, err := drivetrain.Ticks(ctx, o.enc)
	if err != nil {
		return errors.Wrap(err, "odometry rebase")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prevLeft, o.prevRight = left, right
	return nil
}

// Pose returns the current estimate.
func (o *Odometry) Pose() Pose {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pose
}

// Position returns the current position estimate.
func (o *Odometry) Position() r2.Point {
	return o.Pose().Point()
}

// Heading returns the current heading estimate in radians.
func (o *Odometry) Heading() float64 {
	return o.Pose().Heading
}

// SetPose overwrites the estimate.
func (o *Odometry) SetPose(x, y, heading float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pose = Pose{X: x, Y: y, Heading: heading}
	if o.logger != nil {
		o.logger.Debugw("pose set", "x", x, "y", y, "heading", heading)
	}
}

// SetXAxisDir mirrors the x axis when n is negative.
func (o *Odometry) SetXAxisDir(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.xAxisDir = sign(n)
}

// SetRotationDir reverses the sense of rotation when n is negative.
func (o *Odometry) SetRotationDir(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rotationDir = sign(n)
}

func sign(n int) float64 {
	if n < 0 {
		return -1
	}
	return 1
}
