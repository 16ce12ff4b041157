package drivetrain_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"

	"github.com/drivecore/drivecore/components/drivetrain"
	"github.com/drivecore/drivecore/components/drivetrain/fake"
	"github.com/drivecore/drivecore/control"
)

type recordingMotors struct {
	left, right       []int
	leftErr, rightErr error
}

func (m *recordingMotors) SetLeftPower(ctx context.Context, power int) error {
	m.left = append(m.left, power)
	return m.leftErr
}

func (m *recordingMotors) SetRightPower(ctx context.Context, power int) error {
	m.right = append(m.right, power)
	return m.rightErr
}

func TestSetPower(t *testing.T) {
	ctx := context.Background()
	m := &recordingMotors{}

	test.That(t, drivetrain.SetPower(ctx, m, 500, -20000), test.ShouldBeNil)
	test.That(t, m.left, test.ShouldResemble, []int{500})
	test.That(t, m.right, test.ShouldResemble, []int{-drivetrain.MaxPower})

	test.That(t, drivetrain.Stop(ctx, m), test.ShouldBeNil)
	test.That(t, m.left[1], test.ShouldEqual, 0)
	test.That(t, m.right[1], test.ShouldEqual, 0)

	t.Run("both sides are attempted", func(t *testing.T) {
		m := &recordingMotors{leftErr: errors.New("stalled"), rightErr: errors.New("unplugged")}
		err := drivetrain.SetPower(ctx, m, 1, 1)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, multierr.Errors(err), test.ShouldHaveLength, 2)
		test.That(t, err.Error(), test.ShouldContainSubstring, "left motor: stalled")
		test.That(t, err.Error(), test.ShouldContainSubstring, "right motor: unplugged")
		test.That(t, m.right, test.ShouldResemble, []int{1})
	})
}

func TestTicks(t *testing.T) {
	ctx := context.Background()
	d, err := fake.New(fake.Config{TicksPerInch: 10, TrackWidth: 5, MaxSpeed: 40})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, drivetrain.SetPower(ctx, d, drivetrain.MaxPower, drivetrain.MaxPower/2), test.ShouldBeNil)
	d.Advance(time.Second)
	left, right, err := drivetrain.Ticks(ctx, d)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, left, test.ShouldAlmostEqual, 400.0)
	test.That(t, right, test.ShouldAlmostEqual, 200.0)

	d.SetReadError(errors.New("bus fault"))
	_, _, err = drivetrain.Ticks(ctx, d)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldEqual, "reading left encoder: bus fault")
}

func TestSlewed(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	m := &recordingMotors{}
	s := drivetrain.NewSlewed(m, control.NewSlew(100, mock), nil)

	mock.Add(10 * time.Millisecond)
	test.That(t, s.SetLeftPower(ctx, 8000), test.ShouldBeNil)
	test.That(t, s.SetRightPower(ctx, 8000), test.ShouldBeNil)
	test.That(t, m.left, test.ShouldResemble, []int{1000})
	test.That(t, m.right, test.ShouldResemble, []int{8000})

	mock.Add(10 * time.Millisecond)
	test.That(t, s.SetLeftPower(ctx, 8000), test.ShouldBeNil)
	test.That(t, m.left[1], test.ShouldEqual, 2000)
}
