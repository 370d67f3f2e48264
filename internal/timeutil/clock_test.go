package timeutil

import (
	"testing"
	"time"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	now := c.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("RealClock.Now() = %v, outside [%v, %v]", now, before, after)
	}
}

func TestRealClockSince(t *testing.T) {
	c := RealClock{}
	start := time.Now().Add(-time.Second)
	if got := c.Since(start); got < time.Second {
		t.Errorf("Since returned %v, want at least 1s", got)
	}
}

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(90 * time.Second)
	if got := c.Since(start); got != 90*time.Second {
		t.Errorf("Since = %v, want 90s", got)
	}
}

func TestMockClockSet(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	target := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c.Set(target)

	if !c.Now().Equal(target) {
		t.Errorf("Now() = %v, want %v", c.Now(), target)
	}
}
