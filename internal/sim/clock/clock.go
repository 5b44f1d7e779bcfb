// Package clock holds the time and randomness capabilities the simulation and
// the anti-cheat path depend on, so both can be driven deterministically in tests.
package clock

import (
	"math/rand/v2"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Real reads the wall clock. Values carry a monotonic reading, so differences
// between two Now() results are immune to wall-clock steps.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fake is deterministic and test-friendly.
type Fake struct {
	mu sync.Mutex
	t  time.Time
}

func NewFake(start time.Time) *Fake {
	return &Fake{t: start}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Fake) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Rand yields uniform draws in [0,1).
type Rand interface {
	Float64() float64
}

// Default draws from the process-wide math/rand/v2 source.
type Default struct{}

func (Default) Float64() float64 { return rand.Float64() }

// Sequence replays scripted draws, wrapping around when exhausted.
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// Push appends draws to the end of the script.
func (s *Sequence) Push(values ...float64) {
	s.mu.Lock()
	s.values = append(s.values, values...)
	s.mu.Unlock()
}
