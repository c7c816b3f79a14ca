// Package note holds the pitch/velocity model and the monophonic note tracker.
package note

import "math"

// Pitch is a MIDI note number in [0,127].
type Pitch uint8

// Velocity is a MIDI velocity in [0,127].
type Velocity uint8

const (
	// A4 is the reference pitch for 440 Hz.
	A4 Pitch = 69
	// MaxPitch is the highest MIDI note number.
	MaxPitch Pitch = 127
	// MaxVelocity is the highest MIDI velocity.
	MaxVelocity Velocity = 127
)

var freqTable [int(MaxPitch) + 1]float64

func init() {
	for p := range freqTable {
		freqTable[p] = pitchToFreq(p)
	}
}

func pitchToFreq(p int) float64 {
	return 440 * math.Pow(2, float64(p-int(A4))/12)
}

// Frequency returns 440·2^((p-69)/12) Hz.
func (p Pitch) Frequency() float64 {
	if p > MaxPitch {
		return pitchToFreq(int(p))
	}
	return freqTable[p]
}

// Gain returns the linear amplitude v/127.
func (v Velocity) Gain() float64 {
	return float64(v) / float64(MaxVelocity)
}

// Note is the currently sounding tone. Onset is clock time in seconds.
type Note struct {
	Pitch    Pitch
	Velocity Velocity
	Onset    float64
}
