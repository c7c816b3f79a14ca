// Package sequencer plays a compiled Score into an instrument, delivering
// each note event at the exact sample frame it is scheduled for.
package sequencer

import (
	"math"

	"github.com/cbegin/savoy-go/internal/midi"
)

// Instrument is the voice the sequencer drives. Process renders
// interleaved stereo frames.
type Instrument interface {
	Process(dst []float32)
	NoteOn(pitch, velocity uint8)
	NoteOff(pitch uint8)
	// Active reports whether the voice is still sounding, including its
	// release tail. Used to detect when playback has fully ended.
	Active() bool
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

func (k EventKind) String() string {
	switch k {
	case EventLoopCompleted:
		return "loop-completed"
	case EventPlaybackEnded:
		return "playback-ended"
	default:
		return "unknown"
	}
}

// DefaultReleaseTail is the silence rendered after the voice goes quiet
// before the end of the score is reported.
const DefaultReleaseTail = 0.1

type Options struct {
	Loop        bool
	OnEvent     func(EventKind)
	ReleaseTail float64 // seconds; 0 uses DefaultReleaseTail, negative disables
}

type Sequencer struct {
	score      *Score
	inst       Instrument
	sampleRate int
	frames     []int64 // event frame per score event
	endFrame   int64

	frame int64
	next  int

	loop      bool
	onEvent   func(EventKind)
	tail      int64
	tailLeft  int64
	tailArmed bool
	finished  bool
}

func New(score *Score, inst Instrument, sampleRate int) *Sequencer {
	return NewWithOptions(score, inst, sampleRate, Options{})
}

func NewWithOptions(score *Score, inst Instrument, sampleRate int, opts Options) *Sequencer {
	if score == nil {
		score = &Score{}
	}
	s := &Sequencer{
		score:      score,
		inst:       inst,
		sampleRate: sampleRate,
		frames:     make([]int64, len(score.Events)),
		endFrame:   toFrame(score.Duration, sampleRate),
		loop:       opts.Loop,
		onEvent:    opts.OnEvent,
	}
	for i, ev := range score.Events {
		s.frames[i] = toFrame(ev.Time, sampleRate)
	}
	tail := opts.ReleaseTail
	switch {
	case tail == 0:
		tail = DefaultReleaseTail
	case tail < 0:
		tail = 0
	}
	s.tail = toFrame(tail, sampleRate)
	return s
}

func toFrame(seconds float64, sampleRate int) int64 {
	return int64(math.Round(seconds * float64(sampleRate)))
}

// Process renders len(dst)/2 stereo frames, splitting the block at every
// scheduled event.
func (s *Sequencer) Process(dst []float32) {
	frames := int64(len(dst) / 2)
	var pos int64
	for pos < frames {
		s.dispatch()
		n := frames - pos
		if s.next < len(s.frames) {
			if until := s.frames[s.next] - s.frame; until < n {
				n = until
			}
		} else if until := s.endFrame - s.frame; until > 0 && until < n {
			n = until
		}
		s.inst.Process(dst[pos*2 : (pos+n)*2])
		s.frame += n
		pos += n
		s.checkEnd(n)
	}
}

func (s *Sequencer) dispatch() {
	for s.next < len(s.frames) && s.frames[s.next] <= s.frame {
		ev := s.score.Events[s.next]
		if ev.Kind == midi.NoteOn && ev.Velocity > 0 {
			s.inst.NoteOn(ev.Note, ev.Velocity)
		} else {
			s.inst.NoteOff(ev.Note)
		}
		s.next++
	}
}

// checkEnd runs after n frames were rendered.
func (s *Sequencer) checkEnd(n int64) {
	if s.finished || s.next < len(s.frames) || s.frame < s.endFrame {
		return
	}
	if s.inst.Active() {
		s.tailArmed = false
		return
	}
	if !s.tailArmed {
		s.tailArmed = true
		s.tailLeft = s.tail
	}
	s.tailLeft -= n
	if s.tailLeft > 0 {
		return
	}
	s.tailArmed = false
	if s.loop {
		s.frame = 0
		s.next = 0
		s.emit(EventLoopCompleted)
		return
	}
	s.finished = true
	s.emit(EventPlaybackEnded)
}

func (s *Sequencer) emit(kind EventKind) {
	if s.onEvent != nil {
		s.onEvent(kind)
	}
}

// Finished reports whether a non-looping score has played to the end of
// its release tail.
func (s *Sequencer) Finished() bool { return s.finished }

// Position returns the playback position in frames within the current pass.
func (s *Sequencer) Position() int64 { return s.frame }
