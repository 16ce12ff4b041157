package motion

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	"github.com/drivecore/drivecore/components/drivetrain"
	"github.com/drivecore/drivecore/control"
)

const (
	// DefaultTurnLimit bounds turn-in-place and sweep power unless changed with SetLimit.
	DefaultTurnLimit = drivetrain.MaxPower
	// turnDoneAngle is how close (radians) a turn must be to count as arrived.
	turnDoneAngle = 0.1
)

func turnLimit(limit int) int {
	return lo.Clamp(int(math.Abs(float64(limit))), 0, drivetrain.MaxPower)
}

// Turn rotates in place to an absolute heading.
type Turn struct {
	pose   PoseSource
	motors drivetrain.Motors
	pid    *control.PID
	limit  int

	angle float64
	wait  time.Duration

	settle      settleTimer
	prevHeading float64
	hasPrev     bool
}

// NewTurn returns a turn using the turn controller.
func NewTurn(pose PoseSource, motors drivetrain.Motors, ctrl *Controllers, clk clock.Clock) *Turn {
	return &Turn{
		pose:   pose,
		motors: motors,
		pid:    ctrl.Turn,
		limit:  DefaultTurnLimit,
		settle: settleTimer{clock: clk},
	}
}

// SetLimit bounds the power magnitude sent to each side.
func (t *Turn) SetLimit(limit int) {
	t.limit = turnLimit(limit)
}

// Limit returns the power bound.
func (t *Turn) Limit() int {
	return t.limit
}

// Init sets the heading to turn to, in radians. Headings are not wrapped: 2π is a full turn from 0.
func (t *Turn) Init(angle float64, wait time.Duration) {
	t.angle = angle
	t.wait = wait
	t.pid.ResetSettle()
	t.settle.reset()
	t.hasPrev = false
}

// Update runs one control tick.
func (t *Turn) Update(ctx context.Context) (bool, error) {
	heading := t.pose.Pose().Heading
	pwr := lo.Clamp(int(t.pid.Update(t.angle, heading)), -t.limit, t.limit)
	if err := drivetrain.SetPower(ctx, t.motors, -pwr, pwr); err != nil {
		return false, err
	}

	still := t.hasPrev && math.Abs(heading-t.prevHeading) < stationaryAngle
	t.settle.update(math.Abs(heading-t.angle) < turnDoneAngle && still)
	t.prevHeading, t.hasPrev = heading, true
	return t.settle.done(t.wait), nil
}

// Target returns the heading being turned to.
func (t *Turn) Target() float64 {
	return t.angle
}

// TurnSweep drives each wheel to an absolute encoder position, which sweeps the robot
// around a point set by the ratio of the two distances.
type TurnSweep struct {
	enc          drivetrain.Encoders
	motors       drivetrain.Motors
	left, right  *control.PID
	ticksPerInch float64
	limit        int

	leftTarget, rightTarget float64
	wait                    time.Duration
}

// NewTurnSweep returns a sweep using the per-wheel controllers.
func NewTurnSweep(enc drivetrain.Encoders, motors drivetrain.Motors, ctrl *Controllers, ticksPerInch float64) *TurnSweep {
	return &TurnSweep{
		enc:          enc,
		motors:       motors,
		left:         ctrl.Left,
		right:        ctrl.Right,
		ticksPerInch: ticksPerInch,
		limit:        DefaultTurnLimit,
	}
}

// SetLimit bounds the power magnitude sent to each side.
func (s *TurnSweep) SetLimit(limit int) {
	s.limit = turnLimit(limit)
}

// Init sets the wheel positions, in inches of encoder travel since power on.
func (s *TurnSweep) Init(leftInches, rightInches float64, wait time.Duration) {
	s.leftTarget = leftInches * s.ticksPerInch
	s.rightTarget = rightInches * s.ticksPerInch
	s.wait = wait
	s.left.ResetSettle()
	s.right.ResetSettle()
}

// Update runs one control tick. It is done once both wheel controllers have
// been inside their done zone for the wait.
func (s *TurnSweep) Update(ctx context.Context) (bool, error) {
	l, r, err := drivetrain.Ticks(ctx, s.enc)
	if err != nil {
		return false, err
	}
	lp := lo.Clamp(int(s.left.Update(s.leftTarget, l)), -s.limit, s.limit)
	rp := lo.Clamp(int(s.right.Update(s.rightTarget, r)), -s.limit, s.limit)
	if err := drivetrain.SetPower(ctx, s.motors, lp, rp); err != nil {
		return false, err
	}
	return s.left.SettledFor(s.wait) && s.right.SettledFor(s.wait), nil
}

// Targets returns the wheel targets in ticks.
func (s *TurnSweep) Targets() (left, right float64) {
	return s.leftTarget, s.rightTarget
}
