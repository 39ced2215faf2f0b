package domain

import "time"

// Clock provides the current time. Token expiry checks take a Clock so tests
// can pin "now" instead of minting tokens relative to the wall clock.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}

// Until returns the duration from the clock's current time until t.
// Negative when t is already in the past.
func Until(c Clock, t time.Time) time.Duration {
	return t.Sub(c.Now())
}

var _ Clock = RealClock{}
