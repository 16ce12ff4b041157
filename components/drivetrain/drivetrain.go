// Package drivetrain defines the hardware a differential-drive robot exposes to the
// motion controllers: wheel encoders, motor power outputs and motor voltages.
package drivetrain

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/drivecore/drivecore/control"
)

const (
	// DrivePowerLimit is the largest magnitude the translation controllers command.
	DrivePowerLimit = 8000
	// MaxPower is the largest magnitude a motor accepts.
	MaxPower = 12000
)

// Encoders reports cumulative wheel encoder ticks.
type Encoders interface {
	// LeftTicks returns the ticks counted by the left wheel since power on.
	LeftTicks(ctx context.Context) (float64, error)
	// RightTicks returns the ticks counted by the right wheel since power on.
	RightTicks(ctx context.Context) (float64, error)
}

// Motors accepts signed power commands in [-MaxPower, MaxPower].
type Motors interface {
	SetLeftPower(ctx context.Context, power int) error
	SetRightPower(ctx context.Context, power int) error
}

// Voltages reports the voltage currently applied to each side.
type Voltages interface {
	LeftVoltage(ctx context.Context) (float64, error)
	RightVoltage(ctx context.Context) (float64, error)
}

// A Drivetrain is the full set of hardware a motion primitive talks to.
type Drivetrain interface {
	Encoders
	Motors
	Voltages
}

// SetPower commands both sides, attempting the right side even if the left fails.
func SetPower(ctx context.Context, m Motors, left, right int) error {
	left = lo.Clamp(left, -MaxPower, MaxPower)
	right = lo.Clamp(right, -MaxPower, MaxPower)
	return multierr.Combine(
		errors.Wrap(m.SetLeftPower(ctx, left), "left motor"),
		errors.Wrap(m.SetRightPower(ctx, right), "right motor"),
	)
}

// Stop commands zero power on both sides.
func Stop(ctx context.Context, m Motors) error {
	return SetPower(ctx, m, 0, 0)
}

// Ticks reads both encoders, left first.
func Ticks(ctx context.Context, e Encoders) (left, right float64, err error) {
	left, err = e.LeftTicks(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading left encoder")
	}
	right, err = e.RightTicks(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading right encoder")
	}
	return left, right, nil
}

// slewed passes power through a rate limiter per side before reaching the motors.
type slewed struct {
	Motors
	left, right *control.Slew
}

// NewSlewed wraps m so every command is rate limited by the given limiters.
// A nil limiter leaves that side unlimited.
func NewSlewed(m Motors, left, right *control.Slew) Motors {
	return &slewed{Motors: m, left: left, right: right}
}

func (s *slewed) SetLeftPower(ctx context.Context, power int) error {
	if s.left != nil {
		power = int(s.left.Update(float64(power)))
	}
	return s.Motors.SetLeftPower(ctx, power)
}

func (s *slewed) SetRightPower(ctx context.Context, power int) error {
	if s.right != nil {
		power = int(s.right.Update(float64(power)))
	}
	return s.Motors.SetRightPower(ctx, power)
}
