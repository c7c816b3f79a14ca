package voice

import "math"

// DefaultDeclick is the settling time of the amplitude smoother in seconds.
const DefaultDeclick = 0.005

// snap is the distance at which the smoother jumps onto its target.
const snap = 1e-6

// Declick is a one-pole smoother for the voice amplitude. It settles to
// -60 dB of a step within its configured time.
type Declick struct {
	coef    float64
	current float64
}

// SetTime configures the settling time. A non-positive time disables
// smoothing.
func (d *Declick) SetTime(seconds, sampleRate float64) {
	if seconds <= 0 || sampleRate <= 0 || math.IsNaN(seconds) {
		d.coef = 0
		return
	}
	d.coef = math.Exp(-6.908 / (sampleRate * seconds))
}

// Coefficient returns the per-sample feedback coefficient.
func (d *Declick) Coefficient() float64 { return d.coef }

// Next moves one sample towards target and returns the smoothed value.
func (d *Declick) Next(target float64) float64 {
	d.current = target + d.coef*(d.current-target)
	if math.Abs(d.current-target) < snap {
		d.current = target
	}
	return d.current
}

// Value returns the last smoothed value.
func (d *Declick) Value() float64 { return d.current }

// Reset sets the smoother to v.
func (d *Declick) Reset(v float64) { d.current = v }
