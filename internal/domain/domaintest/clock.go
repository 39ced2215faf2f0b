// Package domaintest provides test doubles for the domain package.
package domaintest

import (
	"sync/atomic"
	"time"

	"github.com/pyresume/dashclient/internal/domain"
)

// FakeClock is a domain.Clock that only moves when a test moves it.
type FakeClock struct {
	nanos atomic.Int64
}

func NewFakeClock(start time.Time) *FakeClock {
	c := &FakeClock{}
	c.nanos.Store(start.UnixNano())
	return c
}

func (c *FakeClock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

func (c *FakeClock) Advance(d time.Duration) {
	c.nanos.Add(int64(d))
}

// PassExpiry moves the clock one second past exp, so a token expiring at
// exp reads as expired.
func (c *FakeClock) PassExpiry(exp time.Time) {
	c.nanos.Store(exp.Add(time.Second).UnixNano())
}

var _ domain.Clock = (*FakeClock)(nil)
