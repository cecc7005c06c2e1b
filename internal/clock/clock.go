// Package clock is the single source of time for the engine. Round
// boundaries, claim windows and the entry cutoff are all decided against
// a Clock so that every node agrees on the same instant.
package clock

import (
	stderrors "errors"
	"sync"
	"time"
)

// ErrUnavailable is returned when no trustworthy reading can be produced
var ErrUnavailable = stderrors.New("clock unavailable")

// Clock returns the current authoritative time in UTC
type Clock interface {
	Now() (time.Time, error)
}

// DefaultMaxRegression is how far the wall clock may step backwards before
// System refuses to answer.
const DefaultMaxRegression = 2 * time.Second

// System reads the host clock. A backwards step larger than MaxRegression
// makes the clock fail closed until the wall clock catches up again.
type System struct {
	MaxRegression time.Duration

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewSystem creates a system clock with the given regression tolerance
func NewSystem(maxRegression time.Duration) *System {
	if maxRegression <= 0 {
		maxRegression = DefaultMaxRegression
	}
	return &System{MaxRegression: maxRegression, now: time.Now}
}

// Now returns the current UTC time
func (s *System) Now() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if !s.last.IsZero() && s.last.Sub(now) > s.MaxRegression {
		return time.Time{}, ErrUnavailable
	}
	if now.After(s.last) {
		s.last = now
	}
	return now, nil
}

// Manual is a settable clock for tests and simulations
type Manual struct {
	mu          sync.Mutex
	now         time.Time
	unavailable bool
}

// NewManual creates a manual clock starting at t
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

// Now returns the configured time
func (m *Manual) Now() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return time.Time{}, ErrUnavailable
	}
	return m.now, nil
}

// Set moves the clock to t
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}

// Advance moves the clock forward by d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// SetUnavailable toggles failure mode
func (m *Manual) SetUnavailable(down bool) {
	m.mu.Lock()
	m.unavailable = down
	m.mu.Unlock()
}

var (
	_ Clock = (*System)(nil)
	_ Clock = (*Manual)(nil)
)
