// Package control implements the feedback primitives shared by every actuated axis:
// a PID controller with anti-windup and a slew-rate limiter.
package control

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	// staleAfter is the longest gap between two updates that is still integrated.
	// Anything longer (including the first call) counts as a zero-length step.
	staleAfter = 1000 * time.Millisecond
	// derivativePeriod rate-limits the derivative so encoder noise is not amplified.
	derivativePeriod = 15
	// clampDerivative is the derivative magnitude above which the integral is bounded.
	clampDerivative = 10
	nearZero        = 0.001

	defaultDoneZone    = 10
	defaultMaxIntegral = 9999999
)

// PIDConfig holds the tunables of a PID controller.
type PIDConfig struct {
	Kp float64 `json:"kp"`
	Ki float64 `json:"ki"`
	Kd float64 `json:"kd"`
	// DoneZone is the error band considered "at target" for settling.
	DoneZone float64 `json:"done_zone"`
	// DInactiveZone zeroes the derivative while |err| is below it.
	DInactiveZone float64 `json:"d_inactive_zone"`
	// IActiveZone only lets the integral accumulate while |err| is within it.
	IActiveZone float64 `json:"i_active_zone"`
	MaxIntegral float64 `json:"max_integral"`
	Unwind      float64 `json:"unwind"`
}

// DefaultPIDConfig returns a config with zero gains and the default done zone and integral bound.
func DefaultPIDConfig() PIDConfig {
	return PIDConfig{
		DoneZone:    defaultDoneZone,
		MaxIntegral: defaultMaxIntegral,
	}
}

// Validate ensures the gains and zones are usable.
func (cfg PIDConfig) Validate() error {
	for name, v := range map[string]float64{
		"kp": cfg.Kp, "ki": cfg.Ki, "kd": cfg.Kd,
		"done_zone": cfg.DoneZone, "d_inactive_zone": cfg.DInactiveZone,
		"i_active_zone": cfg.IActiveZone, "max_integral": cfg.MaxIntegral, "unwind": cfg.Unwind,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("pid %s must be finite, got %v", name, v)
		}
	}
	if cfg.DoneZone < 0 {
		return errors.Errorf("pid done_zone must not be negative, got %v", cfg.DoneZone)
	}
	if cfg.MaxIntegral < 0 {
		return errors.Errorf("pid max_integral must not be negative, got %v", cfg.MaxIntegral)
	}
	return nil
}

// PID is a proportional-integral-derivative controller. Every call to Update advances its
// internal timing state using the injected clock.
type PID struct {
	mu    sync.Mutex
	cfg   PIDConfig
	clock clock.Clock

	target     float64
	sensed     float64
	prevSensed float64
	prevErr    float64
	errTot     float64
	deriv      float64
	output     float64

	prevTime      time.Time
	prevDerivTime time.Time

	settled      bool
	settledSince time.Time
}

// NewPID returns a PID using cfg and clk.
func NewPID(cfg PIDConfig, clk clock.Clock) *PID {
	return &PID{cfg: cfg, clock: clk}
}

// Update feeds a new target and sensed value through the controller and returns P+I+D.
func (p *PID) Update(target, sensed float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	dt := elapsedMillis(now, p.prevTime)
	p.prevTime = now
	p.target = target
	p.sensed = sensed

	// PROPORTIONAL
	err := target - sensed
	prop := err * p.cfg.Kp

	// DERIVATIVE
	d := p.deriv
	derivDt := now.Sub(p.prevDerivTime)
	switch {
	case p.prevDerivTime.IsZero() || derivDt > staleAfter:
		p.prevSensed = sensed
		p.prevDerivTime = now
	case derivDt.Milliseconds() >= derivativePeriod:
		d = (p.prevSensed - sensed) * p.cfg.Kd / float64(derivDt.Milliseconds())
		p.deriv = d
		p.prevSensed = sensed
		p.prevDerivTime = now
	}
	if math.Abs(err) < p.cfg.DInactiveZone {
		d = 0
	}

	// INTEGRAL
	p.errTot += err * float64(dt)
	if math.Abs(err) > p.cfg.IActiveZone {
		p.errTot = 0
	}
	if math.Abs(d) > clampDerivative && p.cfg.Ki != 0 {
		maxErrTot := math.Abs(p.cfg.MaxIntegral / p.cfg.Ki)
		p.errTot = lo.Clamp(p.errTot, -maxErrTot, maxErrTot)
	}
	if (err > 0 && p.errTot < 0) || (err < 0 && p.errTot > 0) || math.Abs(err) < nearZero {
		if math.Abs(err)-p.cfg.Unwind > -nearZero {
			p.errTot = 0
		}
	}
	// TODO: confirm with the gain tuners whether a nonzero unwind was ever meant to reach here.
	if math.Abs(p.cfg.Unwind) < nearZero && math.Abs(err) < nearZero {
		p.errTot = 0
	}
	integral := p.errTot * p.cfg.Ki

	// SETTLE
	if math.Abs(err) <= p.cfg.DoneZone {
		if !p.settled {
			p.settled = true
			p.settledSince = now
		}
	} else {
		p.settled = false
	}

	p.prevErr = err
	p.output = prop + integral + d
	return p.output
}

// elapsedMillis returns whole milliseconds between prev and now, or 0 when prev is unset,
// in the future, or older than staleAfter.
func elapsedMillis(now, prev time.Time) int64 {
	if prev.IsZero() {
		return 0
	}
	dt := now.Sub(prev)
	if dt < 0 || dt > staleAfter {
		return 0
	}
	return dt.Milliseconds()
}

// ResetSettle forgets any settle time so completion checks cannot fire on a stale goal.
func (p *PID) ResetSettle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = false
	p.settledSince = time.Time{}
}

// Settled returns when the error last entered the done zone and whether it is still inside.
func (p *PID) Settled() (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settledSince, p.settled
}

// SettledFor reports whether the error has stayed inside the done zone for at least wait.
func (p *PID) SettledFor(wait time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled && p.clock.Since(p.settledSince) >= wait
}

// Reset clears all runtime state, keeping the config.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

func (p *PID) reset() {
	p.target, p.sensed, p.prevSensed = 0, 0, 0
	p.prevErr, p.errTot, p.deriv, p.output = 0, 0, 0, 0
	p.prevTime, p.prevDerivTime = time.Time{}, time.Time{}
	p.settled, p.settledSince = false, time.Time{}
}

// UpdateConfig swaps the tunables and resets the runtime state.
func (p *PID) UpdateConfig(cfg PIDConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg = cfg
	p.reset()
	return nil
}

// Config returns the tunables in use.
func (p *PID) Config() PIDConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Target returns the target of the most recent update.
func (p *PID) Target() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// Sensed returns the sensed value of the most recent update.
func (p *PID) Sensed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sensed
}

// Error returns the error of the most recent update.
func (p *PID) Error() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prevErr
}

// Integral returns the accumulated error (before the ki gain).
func (p *PID) Integral() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errTot
}

// Output returns the most recent controller output.
func (p *PID) Output() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}
