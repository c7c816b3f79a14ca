// Package clock accumulates instrument time at block granularity.
package clock

// Clock is a monotonic seconds counter. It only moves when a whole block
// has been rendered; samples inside a block derive their time from Now plus
// their offset.
type Clock struct {
	now float64
}

// Advance adds blockSize/sampleRate seconds.
func (c *Clock) Advance(blockSize int, sampleRate float64) {
	if blockSize <= 0 || sampleRate <= 0 {
		return
	}
	c.now += float64(blockSize) / sampleRate
}

// Now returns the time at the start of the next block.
func (c *Clock) Now() float64 { return c.now }

// Reset zeroes the clock. Called when the sample rate changes.
func (c *Clock) Reset() { c.now = 0 }
