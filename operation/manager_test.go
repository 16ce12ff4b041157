package operation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func TestManager(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	m := NewManager(mock)

	test.That(t, Get(ctx), test.ShouldBeNil)
	test.That(t, m.OpRunning(), test.ShouldBeFalse)

	t.Run("operation carries id and start", func(t *testing.T) {
		ctx1, done := m.New(ctx, "turn")
		op := Get(ctx1)
		test.That(t, op, test.ShouldNotBeNil)
		test.That(t, op.Name, test.ShouldEqual, "turn")
		test.That(t, op.ID.String(), test.ShouldNotBeEmpty)
		test.That(t, op.Started, test.ShouldEqual, mock.Now())
		test.That(t, m.Current(), test.ShouldEqual, op)
		done()
		test.That(t, m.OpRunning(), test.ShouldBeFalse)
		test.That(t, ctx1.Err(), test.ShouldNotBeNil)
	})

	t.Run("nested operation does not cancel parent", func(t *testing.T) {
		ctx1, close1 := m.New(ctx, "outer")
		defer close1()
		ctx2, close2 := m.New(ctx1, "inner")
		defer close2()
		test.That(t, ctx1.Err(), test.ShouldBeNil)
		test.That(t, Get(ctx2).Name, test.ShouldEqual, "outer")

		m.CancelRunning(ctx2)
		test.That(t, ctx1.Err(), test.ShouldBeNil)
	})

	t.Run("new operation cancels the old one", func(t *testing.T) {
		ctx1, close1 := m.New(ctx, "first")
		defer close1()
		ctx2, close2 := m.New(ctx, "second")
		defer close2()
		test.That(t, ctx1.Err(), test.ShouldNotBeNil)
		test.That(t, ctx2.Err(), test.ShouldBeNil)
		test.That(t, m.Current().Name, test.ShouldEqual, "second")

		close1()
		test.That(t, m.Current().Name, test.ShouldEqual, "second")

		m.CancelRunning(ctx)
		test.That(t, ctx2.Err(), test.ShouldNotBeNil)
		test.That(t, m.OpRunning(), test.ShouldBeFalse)
	})
}

func TestWaitForSuccess(t *testing.T) {
	ctx := context.Background()
	m := NewManager(clock.New())

	t.Run("polls until true", func(t *testing.T) {
		count := int64(0)
		err := m.WaitForSuccess(ctx, "count", time.Millisecond, func(ctx context.Context) (bool, error) {
			return atomic.AddInt64(&count, 1) == 5, nil
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, count, test.ShouldEqual, int64(5))
	})

	t.Run("returns test error", func(t *testing.T) {
		boom := errors.New("boom")
		err := m.WaitForSuccess(ctx, "fail", time.Millisecond, func(ctx context.Context) (bool, error) {
			return false, boom
		})
		test.That(t, err, test.ShouldEqual, boom)
	})

	t.Run("cancelling on different context works", func(t *testing.T) {
		var res error
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			res = m.WaitForSuccess(context.Background(), "forever", time.Millisecond, func(ctx context.Context) (bool, error) {
				return false, nil
			})
		}()

		for !m.OpRunning() {
			time.Sleep(time.Millisecond)
		}
		test.That(t, m.WaitForSuccess(ctx, "now", time.Millisecond, func(ctx context.Context) (bool, error) {
			return true, nil
		}), test.ShouldBeNil)

		wg.Wait()
		test.That(t, errors.Is(res, context.Canceled), test.ShouldBeTrue)
	})
}
