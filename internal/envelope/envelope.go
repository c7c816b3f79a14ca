// Package envelope implements the ADSR amplitude envelope of the voice.
//
// The generator is evaluated against absolute clock time rather than by
// per-sample increments: every call to Next receives the time of the sample
// being rendered and derives the level from the time elapsed since the
// current stage began.
package envelope

import "math"

// Epsilon is the shortest stage duration that is ramped. Anything at or
// below it (including zero, negative and NaN durations) is instantaneous.
const Epsilon = 1e-6

// Stage is the current envelope stage.
type Stage int

const (
	StageIdle Stage = iota
	StageAttack
	StageDecay
	StageSustain
	StageRelease
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAttack:
		return "attack"
	case StageDecay:
		return "decay"
	case StageSustain:
		return "sustain"
	case StageRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Params are the stage timings in seconds and the sustain level in [0,1].
type Params struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// Clamped returns p with NaN and negative durations set to zero and the
// sustain level limited to [0,1].
func (p Params) Clamped() Params {
	return Params{
		Attack:  clampDuration(p.Attack),
		Decay:   clampDuration(p.Decay),
		Sustain: clampLevel(p.Sustain),
		Release: clampDuration(p.Release),
	}
}

func clampDuration(d float64) float64 {
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return d
}

func clampLevel(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func instant(d float64) bool { return d <= Epsilon }

// Generator is the envelope state machine. The zero value is idle with
// all-instant timings and zero sustain.
type Generator struct {
	params     Params
	stage      Stage
	value      float64
	stageStart float64
	// startValue is the level captured when the stage was entered: the
	// re-trigger level for Attack and the release level for Release.
	startValue float64
}

// New returns an idle generator using p.
func New(p Params) *Generator {
	g := &Generator{}
	g.SetParams(p)
	return g
}

// SetParams replaces the timings. Takes effect from the next Next call.
func (g *Generator) SetParams(p Params) {
	g.params = p.Clamped()
}

// Params returns the clamped timings in use.
func (g *Generator) Params() Params { return g.params }

// Trigger starts the attack stage at now from the current level.
func (g *Generator) Trigger(now float64) {
	g.enter(StageAttack, now)
}

// Release starts the release stage at now from the current level. An idle
// generator stays idle.
func (g *Generator) Release(now float64) {
	if g.stage == StageIdle {
		return
	}
	g.enter(StageRelease, now)
}

func (g *Generator) enter(s Stage, at float64) {
	g.stage = s
	g.stageStart = at
	g.startValue = g.value
}

// Next evaluates the envelope at clock time now and returns the level.
func (g *Generator) Next(now float64) float64 {
	// Zero-length stages fall through to the next one within the same call,
	// so at most one pass per stage is needed.
	for i := 0; i < 4; i++ {
		if !g.step(now) {
			break
		}
	}
	return g.value
}

// step evaluates the current stage and reports whether it moved on to
// another stage that must be evaluated at the same instant.
func (g *Generator) step(now float64) bool {
	elapsed := now - g.stageStart
	if elapsed < 0 {
		elapsed = 0
	}
	p := g.params
	switch g.stage {
	case StageIdle:
		g.value = 0
		return false

	case StageAttack:
		if instant(p.Attack) || elapsed >= p.Attack {
			g.value = 1
			g.enter(StageDecay, g.boundary(p.Attack, now))
			return true
		}
		v0 := g.startValue
		g.value = v0 + (1-v0)*elapsed/p.Attack
		if g.value >= 1 {
			g.value = 1
			g.enter(StageDecay, g.boundary(p.Attack, now))
			return true
		}
		return false

	case StageDecay:
		if instant(p.Decay) || elapsed >= p.Decay {
			g.value = p.Sustain
			g.enter(StageSustain, g.boundary(p.Decay, now))
			return true
		}
		g.value = 1 - (elapsed/p.Decay)*(1-p.Sustain)
		return false

	case StageSustain:
		g.value = p.Sustain
		return false

	case StageRelease:
		if instant(p.Release) || elapsed >= p.Release {
			g.value = 0
			g.enter(StageIdle, now)
			return false
		}
		g.value = g.startValue * (1 - elapsed/p.Release)
		if g.value <= 0 {
			g.value = 0
			g.enter(StageIdle, now)
		}
		return false
	}
	return false
}

// boundary is the exact time the current stage of length d ended, so the
// next stage keeps sub-sample timing. It never lies in the future.
func (g *Generator) boundary(d, now float64) float64 {
	if instant(d) {
		return math.Min(g.stageStart, now)
	}
	return math.Min(g.stageStart+d, now)
}

// Value returns the level computed by the last Next call.
func (g *Generator) Value() float64 { return g.value }

// Stage returns the current stage.
func (g *Generator) Stage() Stage { return g.stage }

// Active reports whether the envelope is producing a level.
func (g *Generator) Active() bool { return g.stage != StageIdle }

// Rebase shifts stage timing by -offset so elapsed time is preserved when
// the clock restarts from zero.
func (g *Generator) Rebase(offset float64) {
	g.stageStart -= offset
}

// Reset returns the generator to idle at level zero.
func (g *Generator) Reset() {
	g.stage = StageIdle
	g.value = 0
	g.stageStart = 0
	g.startValue = 0
}
