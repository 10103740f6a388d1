// Package clock abstracts wall-clock access so rate-limit windows and
// expiries are deterministic in tests.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System is the real clock.
type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }

// Fixed always reports the same instant. Test use only.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed clock forward.
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }
