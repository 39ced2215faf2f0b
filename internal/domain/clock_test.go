package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pyresume/dashclient/internal/domain"
	"github.com/pyresume/dashclient/internal/domain/domaintest"
)

func TestRealClock(t *testing.T) {
	clock := domain.RealClock{}
	before := time.Now()
	got := clock.Now()
	after := time.Now()

	assert.False(t, got.Before(before), "clock.Now() should not be before reference time")
	assert.False(t, got.After(after), "clock.Now() should not be after reference time")
}

func TestFakeClock(t *testing.T) {
	fixedTime := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	t.Run("returns fixed time", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		assert.True(t, clock.Now().Equal(fixedTime))
	})

	t.Run("advance moves time forward", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		clock.Advance(time.Hour)

		assert.True(t, clock.Now().Equal(fixedTime.Add(time.Hour)))
	})

	t.Run("pass expiry lands after the expiry", func(t *testing.T) {
		clock := domaintest.NewFakeClock(fixedTime)
		exp := fixedTime.Add(15 * time.Minute)
		clock.PassExpiry(exp)

		assert.True(t, clock.Now().After(exp))
		assert.Equal(t, -time.Second, domain.Until(clock, exp))
	})
}

func TestUntil(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	clock := domaintest.NewFakeClock(now)

	assert.Equal(t, 5*time.Minute, domain.Until(clock, now.Add(5*time.Minute)))
	assert.Equal(t, -time.Minute, domain.Until(clock, now.Add(-time.Minute)))
}
