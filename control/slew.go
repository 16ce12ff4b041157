package control

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultSlewRate is the default output change allowed per millisecond.
const DefaultSlewRate = 100.0

// Slew bounds how fast an output may change per millisecond.
type Slew struct {
	mu       sync.Mutex
	clock    clock.Clock
	rate     float64
	output   float64
	prevTime time.Time
}

// NewSlew returns a limiter starting at zero output. The timing baseline starts now.
func NewSlew(rate float64, clk clock.Clock) *Slew {
	return &Slew{clock: clk, rate: rate, prevTime: clk.Now()}
}

// Update moves the output toward in by at most rate*dt and returns it.
func (s *Slew) Update(in float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	dt := elapsedMillis(now, s.prevTime)
	s.prevTime = now
	if dt == 0 {
		return s.output
	}

	maxStep := s.rate * float64(dt)
	outputRate := (in - s.output) / float64(dt)
	switch {
	case math.Abs(outputRate) < s.rate:
		s.output = in
	case outputRate > 0:
		s.output += maxStep
	default:
		s.output -= maxStep
	}
	return s.output
}

// Output returns the current limited output.
func (s *Slew) Output() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// Rate returns the allowed change per millisecond.
func (s *Slew) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Reset sets the output directly, bypassing the rate limit.
func (s *Slew) Reset(output float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.output = output
	s.prevTime = s.clock.Now()
}
