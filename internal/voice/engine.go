// Package voice renders the single monophonic voice: the note tracker and
// envelope drive the oscillator, and the result is written to a
// caller-supplied block.
package voice

import (
	"math"

	"github.com/cbegin/savoy-go/internal/clock"
	"github.com/cbegin/savoy-go/internal/envelope"
	"github.com/cbegin/savoy-go/internal/note"
	"github.com/cbegin/savoy-go/internal/osc"
)

// Params are the per-block settings read from the parameter bank.
type Params struct {
	Envelope envelope.Params
	Shape    osc.Shape
}

// Engine owns the clock, note tracker, envelope and declick state. It is
// driven by one goroutine and never allocates while rendering.
type Engine struct {
	clock   clock.Clock
	tracker note.Tracker
	env     envelope.Generator
	declick Declick

	sampleRate  float64
	dt          float64
	declickTime float64

	// tone is the last sounding note. It keeps playing through the release
	// after the tracker has emptied.
	tone note.Note

	// Waveform jumps from a stolen note or a shape change are blended out
	// of the output: fade is the remaining offset from the old signal and
	// decays with the declick coefficient.
	shape   osc.Shape
	fade    float64
	fadeArm bool
	prev    float64
}

// New returns an idle engine. sampleRate must be positive; the caller
// validates it.
func New(sampleRate float64) *Engine {
	e := &Engine{declickTime: DefaultDeclick}
	e.setRate(sampleRate)
	return e
}

func (e *Engine) setRate(rate float64) {
	e.sampleRate = rate
	e.dt = 1 / rate
	e.declick.SetTime(e.declickTime, rate)
}

// SampleRate returns the current rate in Hz.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// SetSampleRate restarts the clock at zero and recomputes rate dependent
// constants. Envelope and note timing are shifted so playback continues
// without a jump.
func (e *Engine) SetSampleRate(rate float64) {
	now := e.clock.Now()
	e.env.Rebase(now)
	e.tracker.Rebase(now)
	e.tone.Onset -= now
	e.clock.Reset()
	e.setRate(rate)
}

// SetDeclick sets the amplitude smoothing time in seconds. Zero disables it.
func (e *Engine) SetDeclick(seconds float64) {
	e.declickTime = seconds
	e.declick.SetTime(seconds, e.sampleRate)
}

// NoteOn starts pitch at the current clock time, replacing any sounding
// note, and retriggers the envelope from its current level.
func (e *Engine) NoteOn(pitch note.Pitch, velocity note.Velocity) {
	now := e.clock.Now()
	if e.Active() {
		e.fadeArm = true
	}
	e.tracker.NoteOn(pitch, velocity, now)
	e.tone, _ = e.tracker.Current()
	e.env.Trigger(now)
}

// NoteOff releases pitch if it is the sounding note and reports whether it
// was. Stale note-offs change nothing.
func (e *Engine) NoteOff(pitch note.Pitch) bool {
	now := e.clock.Now()
	if !e.tracker.NoteOff(pitch, now) {
		return false
	}
	e.env.Release(now)
	return true
}

// Process renders len(dst) mono samples and advances the clock by the
// block length.
func (e *Engine) Process(dst []float32, p Params) {
	if len(dst) == 0 {
		return
	}
	e.env.SetParams(p.Envelope)
	if p.Shape != e.shape {
		if e.Active() && e.prev != 0 {
			e.fadeArm = true
		}
		e.shape = p.Shape
	}
	if cur, ok := e.tracker.Current(); ok {
		e.tone = cur
	}
	start := e.clock.Now()
	gain := e.tone.Velocity.Gain()
	coef := e.declick.Coefficient()
	for i := range dst {
		if !e.Active() {
			clear(dst[i:])
			e.prev = 0
			break
		}
		t := start + float64(i)*e.dt
		level := e.declick.Next(e.env.Next(t) * gain)
		raw := 0.0
		if level != 0 {
			raw = osc.Render(p.Shape, e.tone.Pitch, t) * level
		}
		switch {
		case e.fadeArm:
			e.fade = coef * (e.prev - raw)
			e.fadeArm = false
		case e.fade != 0:
			e.fade *= coef
		}
		if math.Abs(e.fade) < snap {
			e.fade = 0
		}
		out := raw + e.fade
		dst[i] = float32(out)
		e.prev = out
	}
	e.clock.Advance(len(dst), e.sampleRate)
}

// Active reports whether the voice can produce sound: a note is held, the
// envelope is running, or the amplitude or a crossfade has not yet settled.
func (e *Engine) Active() bool {
	_, sounding := e.tracker.Current()
	return sounding || e.env.Active() || e.declick.Value() != 0 || e.fade != 0
}

// Now returns the clock time of the next block.
func (e *Engine) Now() float64 { return e.clock.Now() }

// Level returns the most recent envelope level.
func (e *Engine) Level() float64 { return e.env.Value() }

// Stage returns the envelope stage.
func (e *Engine) Stage() envelope.Stage { return e.env.Stage() }

// Current returns the sounding note, if any.
func (e *Engine) Current() (note.Note, bool) { return e.tracker.Current() }

// Reset silences the voice immediately and restarts the clock.
func (e *Engine) Reset() {
	e.tracker.Reset()
	e.env.Reset()
	e.declick.Reset(0)
	e.clock.Reset()
	e.tone = note.Note{}
	e.fade, e.fadeArm, e.prev = 0, false, 0
}
