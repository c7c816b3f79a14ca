// Package osc renders the four basic waveforms as pure functions of
// absolute time.
package osc

import (
	"math"

	"github.com/cbegin/savoy-go/internal/note"
)

// Shape selects the waveform.
type Shape int

const (
	Saw Shape = iota
	Square
	Triangle
	Sine
)

func (s Shape) String() string {
	switch s {
	case Saw:
		return "saw"
	case Square:
		return "square"
	case Triangle:
		return "triangle"
	case Sine:
		return "sine"
	default:
		return "unknown"
	}
}

// Select maps a control value to a shape. [0,1) is split into four equal
// ranges in the order saw, square, triangle, sine. 1.0, values outside
// [0,1] and NaN select Sine.
func Select(control float64) Shape {
	switch {
	case control >= 0 && control < 0.25:
		return Saw
	case control >= 0.25 && control < 0.5:
		return Square
	case control >= 0.5 && control < 0.75:
		return Triangle
	default:
		return Sine
	}
}

// Frequency returns the frequency in Hz of pitch.
func Frequency(pitch note.Pitch) float64 {
	return pitch.Frequency()
}

// Phase returns the position within the current period of a tone at freq
// Hz, in [0,1).
func Phase(freq, t float64) float64 {
	if freq <= 0 {
		return 0
	}
	p := math.Mod(t, 1/freq) * freq
	if p < 0 {
		p += 1
	}
	if p >= 1 {
		p = 0
	}
	return p
}

// Render returns the value of shape at pitch at absolute time t seconds.
func Render(shape Shape, pitch note.Pitch, t float64) float64 {
	return RenderPhase(shape, Phase(pitch.Frequency(), t))
}

// RenderPhase returns the value of shape at phase p in [0,1).
func RenderPhase(shape Shape, p float64) float64 {
	switch shape {
	case Saw:
		return 2*p - 1
	case Square:
		s := math.Sin(2 * math.Pi * p)
		switch {
		case s > 0:
			return 1
		case s < 0:
			return -1
		default:
			return 0
		}
	case Triangle:
		switch {
		case p < 0.25:
			return 4 * p
		case p < 0.75:
			return 2 - 4*p
		default:
			return 4*p - 4
		}
	default:
		return math.Sin(2 * math.Pi * p)
	}
}
