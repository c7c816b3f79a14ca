package clock

import (
	"math"
	"testing"
)

func TestAdvanceAccumulatesBlockTime(t *testing.T) {
	var c Clock
	for i := 0; i < 100; i++ {
		c.Advance(441, 44100)
	}
	if got := c.Now(); math.Abs(got-1.0) > 1e-12 {
		t.Fatalf("now = %v, want 1.0", got)
	}
}

func TestAdvanceIgnoresEmptyBlocks(t *testing.T) {
	var c Clock
	c.Advance(0, 48000)
	c.Advance(64, 0)
	c.Advance(-5, 48000)
	if got := c.Now(); got != 0 {
		t.Fatalf("now = %v, want 0", got)
	}
}

func TestResetZeroes(t *testing.T) {
	var c Clock
	c.Advance(48000, 48000)
	c.Reset()
	if got := c.Now(); got != 0 {
		t.Fatalf("now after reset = %v, want 0", got)
	}
	c.Advance(24000, 48000)
	if got := c.Now(); got != 0.5 {
		t.Fatalf("now = %v, want 0.5", got)
	}
}
