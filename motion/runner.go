package motion

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/drivecore/drivecore/components/drivetrain"
	"github.com/drivecore/drivecore/operation"
)

// MaxFrequency is the fastest supported control rate in Hz.
const MaxFrequency = 200.0

// An Updater refreshes state that every tick depends on, such as odometry.
type Updater interface {
	Update(ctx context.Context) error
}

// Runner ticks one primitive at a fixed rate, updating odometry before every tick.
type Runner struct {
	odom   Updater
	motors drivetrain.Motors
	clock  clock.Clock
	period time.Duration
	logger golog.Logger

	opMgr *operation.Manager
	ticks atomic.Int64
}

// NewRunner returns a runner ticking at frequency Hz, in (0, MaxFrequency].
func NewRunner(odom Updater, motors drivetrain.Motors, frequency float64, clk clock.Clock, logger golog.Logger) (*Runner, error) {
	if !(frequency > 0 && frequency <= MaxFrequency) {
		return nil, errors.Errorf("control frequency must be in (0, %v] Hz, got %v", MaxFrequency, frequency)
	}
	return &Runner{
		odom:   odom,
		motors: motors,
		clock:  clk,
		period: time.Duration(float64(time.Second) / frequency),
		logger: logger,
		opMgr:  operation.NewManager(clk),
	}, nil
}

// Period returns the time between ticks.
func (r *Runner) Period() time.Duration {
	return r.period
}

// Step runs a single control cycle: odometry first, then the primitive.
func (r *Runner) Step(ctx context.Context, p Primitive) (bool, error) {
	if err := r.odom.Update(ctx); err != nil {
		return false, err
	}
	r.ticks.Inc()
	return p.Update(ctx)
}

// Run ticks p until it reports done. Starting another Run cancels this one, leaving the
// motors to the new run. If the context ends or a tick fails, the motors are stopped and
// the error is returned.
func (r *Runner) Run(ctx context.Context, p Primitive) error {
	name := fmt.Sprintf("%T", p)
	start := r.ticks.Load()
	first := true
	err := r.opMgr.WaitForSuccess(ctx, name, r.period, func(ctx context.Context) (bool, error) {
		if first {
			first = false
			if op := operation.Get(ctx); op != nil {
				r.logger.Debugw("motion started", "op", op.ID.String(), "primitive", name)
			}
		}
		return r.Step(ctx, p)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			// cancelled by the manager, not the caller: a newer run or Stop owns the motors
			return err
		}
		// ctx may already be done; stopping must still reach the motors
		return multierr.Combine(err, drivetrain.Stop(context.Background(), r.motors))
	}
	r.logger.Debugw("motion done", "primitive", name, "ticks", r.ticks.Load()-start)
	return nil
}

// Stop cancels any running motion and stops the motors.
func (r *Runner) Stop(ctx context.Context) error {
	r.opMgr.CancelRunning(ctx)
	return drivetrain.Stop(ctx, r.motors)
}

// Running reports whether a Run is in progress.
func (r *Runner) Running() bool {
	return r.opMgr.OpRunning()
}

// Ticks returns the number of control cycles executed.
func (r *Runner) Ticks() int64 {
	return r.ticks.Load()
}
