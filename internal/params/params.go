// Package params holds the instrument's five automatable controls in
// lock-free cells and maps their normalized knob positions to voice
// settings.
package params

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cbegin/savoy-go/internal/envelope"
	"github.com/cbegin/savoy-go/internal/osc"
)

// Index identifies a parameter.
type Index uint8

// Parameter order is part of the host contract.
const (
	Oscillator Index = iota
	Attack
	Decay
	Sustain
	Release

	Count = 5
)

var names = [Count]string{"Oscillator", "Attack", "Decay", "Sustain", "Release"}

// Defaults are the knob positions of a freshly created bank.
var Defaults = Values{0, 0, 1, 1, 0.2}

// Name returns the display name of i, or "unknown".
func (i Index) Name() string {
	if int(i) >= Count {
		return "unknown"
	}
	return names[i]
}

func (i Index) String() string { return i.Name() }

// Values is a snapshot of all knob positions, indexed by Index.
type Values [Count]float32

// Bank stores one float32 per parameter as atomic bits. Get and Set are
// wait-free and may be called from any goroutine.
type Bank struct {
	cells [Count]atomic.Uint32
}

// NewBank returns a bank holding v.
func NewBank(v Values) *Bank {
	b := &Bank{}
	for i, x := range v {
		b.cells[i].Store(math.Float32bits(x))
	}
	return b
}

// Get returns the stored value of i, or 0 for an unknown index.
func (b *Bank) Get(i Index) float32 {
	if int(i) >= Count {
		return 0
	}
	return math.Float32frombits(b.cells[i].Load())
}

// Set stores v unchanged. Unknown indices are ignored.
func (b *Bank) Set(i Index, v float32) {
	if int(i) >= Count {
		return
	}
	b.cells[i].Store(math.Float32bits(v))
}

// Snapshot reads every cell once.
func (b *Bank) Snapshot() Values {
	var v Values
	for i := range v {
		v[i] = math.Float32frombits(b.cells[i].Load())
	}
	return v
}

// Curve is the shape of a time mapping.
type Curve int

const (
	Linear Curve = iota
	Exponential
)

func (c Curve) String() string {
	switch c {
	case Linear:
		return "linear"
	case Exponential:
		return "exponential"
	default:
		return "unknown"
	}
}

// ErrInvalidTimeRange reports an unusable TimeRange.
var ErrInvalidTimeRange = errors.New("params: invalid time range")

// TimeRange maps a knob position in [0,1] to seconds for the attack, decay
// and release controls.
type TimeRange struct {
	Curve Curve
	Min   float64
	Max   float64
}

// DefaultTimeRange maps the knob position directly to seconds.
var DefaultTimeRange = TimeRange{Curve: Linear, Min: 0, Max: 1}

// Validate reports whether r can be used.
func (r TimeRange) Validate() error {
	switch {
	case math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0):
		return fmt.Errorf("%w: non-finite bounds %v..%v", ErrInvalidTimeRange, r.Min, r.Max)
	case r.Min < 0 || r.Max < r.Min:
		return fmt.Errorf("%w: bounds %v..%v", ErrInvalidTimeRange, r.Min, r.Max)
	case r.Curve == Exponential && r.Min <= 0:
		return fmt.Errorf("%w: exponential curve needs min > 0, got %v", ErrInvalidTimeRange, r.Min)
	case r.Curve != Linear && r.Curve != Exponential:
		return fmt.Errorf("%w: curve %d", ErrInvalidTimeRange, int(r.Curve))
	}
	return nil
}

// Seconds maps knob position v to a duration. v is clamped to [0,1] and
// NaN counts as 0.
func (r TimeRange) Seconds(v float32) float64 {
	x := unit(v)
	if r.Curve == Exponential {
		return r.Min * math.Pow(r.Max/r.Min, x)
	}
	return r.Min + x*(r.Max-r.Min)
}

func unit(v float32) float64 {
	x := float64(v)
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Envelope maps the ADSR knobs to envelope timings.
func (v Values) Envelope(r TimeRange) envelope.Params {
	return envelope.Params{
		Attack:  r.Seconds(v[Attack]),
		Decay:   r.Seconds(v[Decay]),
		Sustain: unit(v[Sustain]),
		Release: r.Seconds(v[Release]),
	}
}

// Shape maps the oscillator knob to a waveform. Out-of-range positions
// select the sine fallback.
func (v Values) Shape() osc.Shape {
	return osc.Select(float64(v[Oscillator]))
}
