package motion

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"

	"github.com/drivecore/drivecore/components/drivetrain"
)

type countingUpdater struct {
	calls atomic.Int64
	err   error
}

func (u *countingUpdater) Update(ctx context.Context) error {
	u.calls.Inc()
	return u.err
}

// fixedPrimitive reports done on its doneAt'th update, or never when doneAt is 0.
type fixedPrimitive struct {
	calls  atomic.Int64
	doneAt int64
	err    error
}

func (p *fixedPrimitive) Update(ctx context.Context) (bool, error) {
	n := p.calls.Inc()
	if p.err != nil {
		return false, p.err
	}
	return p.doneAt != 0 && n >= p.doneAt, nil
}

// poweringPrimitive sends one command and is done.
type poweringPrimitive struct {
	motors      drivetrain.Motors
	left, right int
	calls       atomic.Int64
}

func (p *poweringPrimitive) Update(ctx context.Context) (bool, error) {
	p.calls.Inc()
	return true, drivetrain.SetPower(ctx, p.motors, p.left, p.right)
}

func TestNewRunner(t *testing.T) {
	logger := golog.NewTestLogger(t)
	for _, freq := range []float64{0, -5, 200.5, math.NaN(), math.Inf(1)} {
		_, err := NewRunner(&countingUpdater{}, &recordingMotors{}, freq, clock.New(), logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "control frequency")
	}
	r, err := NewRunner(&countingUpdater{}, &recordingMotors{}, 100, clock.New(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.Period(), test.ShouldEqual, 10*time.Millisecond)
}

func TestRunnerStep(t *testing.T) {
	ctx := context.Background()
	odom := &countingUpdater{}
	r, err := NewRunner(odom, &recordingMotors{}, 50, clock.NewMock(), golog.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	p := &fixedPrimitive{doneAt: 2}
	done, err := r.Step(ctx, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeFalse)
	done, err = r.Step(ctx, p)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, done, test.ShouldBeTrue)
	test.That(t, odom.calls.Load(), test.ShouldEqual, int64(2))
	test.That(t, r.Ticks(), test.ShouldEqual, int64(2))

	odom.err = errors.New("encoder unplugged")
	_, err = r.Step(ctx, p)
	test.That(t, err, test.ShouldEqual, odom.err)
	test.That(t, p.calls.Load(), test.ShouldEqual, int64(2))
	test.That(t, r.Ticks(), test.ShouldEqual, int64(2))
}

func TestRunnerRun(t *testing.T) {
	ctx := context.Background()
	logger := golog.NewTestLogger(t)

	t.Run("until done", func(t *testing.T) {
		motors := &recordingMotors{}
		r, err := NewRunner(&countingUpdater{}, motors, MaxFrequency, clock.New(), logger)
		test.That(t, err, test.ShouldBeNil)
		p := &fixedPrimitive{doneAt: 5}
		test.That(t, r.Run(ctx, p), test.ShouldBeNil)
		test.That(t, r.Ticks(), test.ShouldEqual, int64(5))
		test.That(t, r.Running(), test.ShouldBeFalse)
	})

	t.Run("primitive error stops motors", func(t *testing.T) {
		motors := &recordingMotors{}
		r, err := NewRunner(&countingUpdater{}, motors, MaxFrequency, clock.New(), logger)
		test.That(t, err, test.ShouldBeNil)
		boom := errors.New("motor controller fault")
		err = r.Run(ctx, &fixedPrimitive{err: boom})
		test.That(t, errors.Is(err, boom), test.ShouldBeTrue)
		test.That(t, motors.last(), test.ShouldResemble, powers{0, 0})
	})

	t.Run("cancellation stops motors", func(t *testing.T) {
		motors := &recordingMotors{}
		r, err := NewRunner(&countingUpdater{}, motors, MaxFrequency, clock.New(), logger)
		test.That(t, err, test.ShouldBeNil)

		cancelCtx, cancel := context.WithCancel(ctx)
		p := &fixedPrimitive{}
		var wg sync.WaitGroup
		var runErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			runErr = r.Run(cancelCtx, p)
		}()
		for p.calls.Load() < 3 {
			time.Sleep(time.Millisecond)
		}
		cancel()
		wg.Wait()
		test.That(t, errors.Is(runErr, context.Canceled), test.ShouldBeTrue)
		test.That(t, motors.last(), test.ShouldResemble, powers{0, 0})
	})

	t.Run("a new run pre-empts the old one", func(t *testing.T) {
		motors := &recordingMotors{}
		r, err := NewRunner(&countingUpdater{}, motors, MaxFrequency, clock.New(), logger)
		test.That(t, err, test.ShouldBeNil)

		var wg sync.WaitGroup
		var firstErr error
		wg.Add(1)
		go func() {
			defer wg.Done()
			firstErr = r.Run(context.Background(), &fixedPrimitive{})
		}()
		for !r.Running() {
			time.Sleep(time.Millisecond)
		}
		second := &poweringPrimitive{motors: motors, left: 300, right: -200}
		test.That(t, r.Run(ctx, second), test.ShouldBeNil)
		wg.Wait()
		test.That(t, errors.Is(firstErr, context.Canceled), test.ShouldBeTrue)
		test.That(t, second.calls.Load(), test.ShouldEqual, int64(1))
		// the pre-empted run must not zero the new run's command
		test.That(t, motors.last(), test.ShouldResemble, powers{300, -200})
	})

	t.Run("stop", func(t *testing.T) {
		motors := &recordingMotors{}
		r, err := NewRunner(&countingUpdater{}, motors, MaxFrequency, clock.New(), logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, r.Stop(ctx), test.ShouldBeNil)
		test.That(t, motors.last(), test.ShouldResemble, powers{0, 0})
	})
}
