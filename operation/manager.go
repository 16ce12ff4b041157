// Package operation tracks the single motion a drivetrain is executing.
package operation

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.viam.com/utils"
)

// Operation is a running motion.
type Operation struct {
	ID      uuid.UUID
	Name    string
	Started time.Time

	cancel context.CancelFunc
}

type opKey byte

const opKeySingle = opKey(iota)

// Get returns the operation carried by ctx, or nil.
func Get(ctx context.Context) *Operation {
	op, ok := ctx.Value(opKeySingle).(*Operation)
	if !ok {
		return nil
	}
	return op
}

// Manager ensures only one operation is happening at a time.
// An operation can be nested, so if there is already an operation in progress,
// it can have sub-operations without an issue.
type Manager struct {
	mu      sync.Mutex
	clock   clock.Clock
	current *Operation
}

// NewManager returns a manager timing operations with clk.
func NewManager(clk clock.Clock) *Manager {
	return &Manager{clock: clk}
}

// CancelRunning cancels the current operation unless ctx belongs to it.
func (m *Manager) CancelRunning(ctx context.Context) {
	if Get(ctx) != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelInLock(ctx)
}

// OpRunning returns if there is a current operation.
func (m *Manager) OpRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Current returns the running operation, or nil.
func (m *Manager) Current() *Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// New creates a new operation, cancels the previous one, and returns a new context and
// the function to call when done.
func (m *Manager) New(ctx context.Context, name string) (context.Context, func()) {
	if Get(ctx) != nil {
		return ctx, func() {}
	}

	m.mu.Lock()
	m.cancelInLock(ctx)

	op := &Operation{ID: uuid.New(), Name: name, Started: m.clock.Now()}
	ctx = context.WithValue(ctx, opKeySingle, op)
	ctx, op.cancel = context.WithCancel(ctx)
	m.current = op
	m.mu.Unlock()

	return ctx, func() {
		op.cancel()
		m.mu.Lock()
		if op == m.current {
			m.current = nil
		}
		m.mu.Unlock()
	}
}

// WaitForSuccess runs a new operation that calls testFunc every pollTime until it
// returns true or an error, or the operation is cancelled.
func (m *Manager) WaitForSuccess(
	ctx context.Context,
	name string,
	pollTime time.Duration,
	testFunc func(ctx context.Context) (bool, error),
) error {
	ctx, finish := m.New(ctx, name)
	defer finish()

	ticker := m.clock.Ticker(pollTime)
	defer ticker.Stop()
	for {
		res, err := testFunc(ctx)
		if err != nil {
			return err
		}
		if res {
			return nil
		}

		if !utils.SelectContextOrWaitChan(ctx, ticker.C) {
			return ctx.Err()
		}
	}
}

func (m *Manager) cancelInLock(ctx context.Context) {
	op := m.current
	if op == nil || Get(ctx) == op {
		return
	}
	op.cancel()
	m.current = nil
}
