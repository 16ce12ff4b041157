// Package fake implements a simulated differential drivetrain.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/drivecore/drivecore/components/drivetrain"
)

// Config describes the simulated robot.
type Config struct {
	TicksPerInch float64
	// TrackWidth is the track parameter: heading changes by (dR-dL)/(2*TrackWidth).
	TrackWidth float64
	// MaxSpeed is the wheel speed in inches per second at full power.
	MaxSpeed float64
	// MaxVoltage is the voltage reported at full power. Defaults to 12.
	MaxVoltage float64
}

// Validate ensures the simulated geometry is usable.
func (cfg Config) Validate() error {
	if cfg.TicksPerInch <= 0 {
		return errors.Errorf("ticks per inch must be positive, got %v", cfg.TicksPerInch)
	}
	if cfg.TrackWidth <= 0 {
		return errors.Errorf("track width must be positive, got %v", cfg.TrackWidth)
	}
	if cfg.MaxSpeed <= 0 {
		return errors.Errorf("max speed must be positive, got %v", cfg.MaxSpeed)
	}
	return nil
}

// Drivetrain integrates the commanded wheel powers into encoder ticks and a true pose.
// Power maps linearly to wheel speed; there is no slip or inertia.
type Drivetrain struct {
	mu  sync.Mutex
	cfg Config

	leftPower, rightPower int
	leftTicks, rightTicks float64
	x, y, heading         float64

	readErr, writeErr error
}

var _ = drivetrain.Drivetrain(&Drivetrain{})

// New returns a stationary drivetrain at the origin facing +y.
func New(cfg Config) (*Drivetrain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxVoltage == 0 {
		cfg.MaxVoltage = 12
	}
	return &Drivetrain{cfg: cfg, heading: math.Pi / 2}, nil
}

// LeftTicks returns the left encoder count.
func (d *Drivetrain) LeftTicks(ctx context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return 0, d.readErr
	}
	return d.leftTicks, nil
}

// RightTicks returns the right encoder count.
func (d *Drivetrain) RightTicks(ctx context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return 0, d.readErr
	}
	return d.rightTicks, nil
}

// SetLeftPower sets the left motor power.
func (d *Drivetrain) SetLeftPower(ctx context.Context, power int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	d.leftPower = lo.Clamp(power, -drivetrain.MaxPower, drivetrain.MaxPower)
	return nil
}

// SetRightPower sets the right motor power.
func (d *Drivetrain) SetRightPower(ctx context.Context, power int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.writeErr != nil {
		return d.writeErr
	}
	d.rightPower = lo.Clamp(power, -drivetrain.MaxPower, drivetrain.MaxPower)
	return nil
}

// LeftVoltage returns the voltage the left motor would see at the current power.
func (d *Drivetrain) LeftVoltage(ctx context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voltage(d.leftPower), nil
}

// RightVoltage returns the voltage the right motor would see at the current power.
func (d *Drivetrain) RightVoltage(ctx context.Context) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voltage(d.rightPower), nil
}

func (d *Drivetrain) voltage(power int) float64 {
	return float64(power) / drivetrain.MaxPower * d.cfg.MaxVoltage
}

// Advance moves the robot for dt at the current powers.
func (d *Drivetrain) Advance(dt time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	secs := dt.Seconds()
	dl := float64(d.leftPower) / drivetrain.MaxPower * d.cfg.MaxSpeed * secs
	dr := float64(d.rightPower) / drivetrain.MaxPower * d.cfg.MaxSpeed * secs
	d.leftTicks += dl * d.cfg.TicksPerInch
	d.rightTicks += dr * d.cfg.TicksPerInch

	dc := (dl + dr) / 2
	dh := (dr - dl) / (2 * d.cfg.TrackWidth)
	mid := d.heading + dh/2
	d.x += dc * math.Cos(mid)
	d.y += dc * math.Sin(mid)
	d.heading += dh
}

// Powers returns the last commanded left and right powers.
func (d *Drivetrain) Powers() (left, right int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.leftPower, d.rightPower
}

// Pose returns the true simulated pose.
func (d *Drivetrain) Pose() (x, y, heading float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.x, d.y, d.heading
}

// SetPose places the robot without touching the encoder counts.
func (d *Drivetrain) SetPose(x, y, heading float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.x, d.y, d.heading = x, y, heading
}

// SetReadError makes every encoder read fail with err until cleared with nil.
func (d *Drivetrain) SetReadError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readErr = err
}

// SetWriteError makes every power command fail with err until cleared with nil.
func (d *Drivetrain) SetWriteError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeErr = err
}
