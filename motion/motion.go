// Package motion contains the closed-loop motion primitives of a differential-drive robot.
//
// Each primitive is an owned controller object. Init sets a new goal and clears every
// settle timer the primitive depends on; Update is called once per control tick, after
// odometry has been updated, and reports whether the goal has been held for the
// requested wait. Primitives are not safe for concurrent use; a Runner serializes ticks.
package motion

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/drivecore/drivecore/control"
	"github.com/drivecore/drivecore/odometry"
	"github.com/drivecore/drivecore/spatialmath"
)

const (
	// stationaryDist is how far (inches) the robot may move in one tick and still count as stopped.
	stationaryDist = 0.01
	// stationaryAngle is the heading change (radians) per tick below which a turn counts as stopped.
	stationaryAngle = 0.001
)

// PoseSource provides the current pose estimate.
type PoseSource interface {
	Pose() odometry.Pose
}

// A Primitive is a motion controller ticked once per control cycle.
type Primitive interface {
	// Update computes and sends one set of motor commands and reports whether
	// the goal has been reached. Errors come only from hardware I/O.
	Update(ctx context.Context) (bool, error)
}

// Gains holds one PID configuration per controlled axis.
type Gains struct {
	Drive control.PIDConfig `json:"drive"`
	Turn  control.PIDConfig `json:"turn"`
	Curve control.PIDConfig `json:"curve"`
	Left  control.PIDConfig `json:"left"`
	Right control.PIDConfig `json:"right"`
}

// DefaultGains returns gains tuned against the simulated drivetrain.
func DefaultGains() Gains {
	drive := control.DefaultPIDConfig()
	drive.Kp = 800

	turn := control.DefaultPIDConfig()
	turn.Kp = 5000
	turn.DoneZone = 0.1

	curve := control.DefaultPIDConfig()
	curve.Kp = 8000
	curve.DoneZone = 0.1

	wheel := control.DefaultPIDConfig()
	wheel.Kp = 30

	return Gains{Drive: drive, Turn: turn, Curve: curve, Left: wheel, Right: wheel}
}

// Validate ensures every axis has a usable configuration.
func (g Gains) Validate() error {
	for name, cfg := range map[string]control.PIDConfig{
		"drive": g.Drive, "turn": g.Turn, "curve": g.Curve, "left": g.Left, "right": g.Right,
	} {
		if err := cfg.Validate(); err != nil {
			return errors.Wrapf(err, "%s gains", name)
		}
	}
	return nil
}

// Controllers is the set of long-lived PIDs shared by the primitives.
type Controllers struct {
	Drive *control.PID
	Turn  *control.PID
	Curve *control.PID
	Left  *control.PID
	Right *control.PID
}

// NewControllers builds one PID per axis.
func NewControllers(g Gains, clk clock.Clock) (*Controllers, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Controllers{
		Drive: control.NewPID(g.Drive, clk),
		Turn:  control.NewPID(g.Turn, clk),
		Curve: control.NewPID(g.Curve, clk),
		Left:  control.NewPID(g.Left, clk),
		Right: control.NewPID(g.Right, clk),
	}, nil
}

// settleTimer tracks how long a completion condition has held without interruption.
type settleTimer struct {
	clock   clock.Clock
	settled bool
	since   time.Time
}

func (s *settleTimer) reset() {
	s.settled = false
	s.since = time.Time{}
}

// update records whether the condition holds on this tick.
func (s *settleTimer) update(inside bool) {
	if !inside {
		s.reset()
		return
	}
	if !s.settled {
		s.settled = true
		s.since = s.clock.Now()
	}
}

func (s *settleTimer) done(wait time.Duration) bool {
	return s.settled && s.clock.Since(s.since) >= wait
}

// headingError returns the signed angle between the robot's orientation and want,
// and the direction (1 forward, -1 backward) that needs the smaller rotation.
// A negative error means want lies counter-clockwise of the end of the robot being driven.
func headingError(orient, want r2.Point) (float64, int) {
	a := spatialmath.AngleBetween(orient, want)
	dir := 1
	if a > math.Pi/2 {
		dir = -1
		a = math.Pi - a
	}
	switch {
	case spatialmath.IsLeftOf(want, orient):
		a *= -float64(dir)
	case spatialmath.IsRightOf(want, orient):
		a *= float64(dir)
	}
	return a, dir
}

// movedSince reports whether pos is farther than stationaryDist from the previous tick's position.
// Without a previous position the robot is assumed to be moving.
func movedSince(pos, prev r2.Point, hasPrev bool) bool {
	return !hasPrev || pos.Sub(prev).Norm() >= stationaryDist
}

func rotationSign(n int) int {
	if n < 0 {
		return -1
	}
	return 1
}
