package clock

import "time"

// Clock abstracts time.Now so scheduling decisions stay testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

// Fixed is a Clock pinned to a point in time. Tests advance it explicitly.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }

// NewFixed pins a clock to t.
func NewFixed(t time.Time) *Fixed { return &Fixed{T: t} }
