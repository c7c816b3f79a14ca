package sequencer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode"

	"github.com/cbegin/savoy-go/internal/midi"
)

// ErrSyntax is wrapped by every score parse error.
var ErrSyntax = errors.New("score syntax error")

const (
	defaultOctave   = 4
	defaultVelocity = 100
	defaultLength   = 0.25
)

// Event is a note event scheduled at Time seconds from the start of the
// score.
type Event struct {
	Time float64
	midi.Event
}

// Score is a compiled monophonic note list, sorted by time.
type Score struct {
	Events   []Event
	Duration float64
}

// ordering of events that share a time: a plain note-off releases before
// the next note-on, an overlapped note-off arrives after it.
const (
	orderOff = iota
	orderOn
	orderOverlapOff
)

type scheduled struct {
	Event
	order int
	seq   int
}

type parseState struct {
	time     float64
	octave   int
	velocity int
	length   float64
	events   []scheduled
	// pending is the note-off of an overlapped note, waiting for the next
	// note to decide whether it is needed.
	pending *scheduled
}

var noteOffsets = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// Parse compiles score text.
//
// Tokens are separated by whitespace and '#' starts a comment. A note is a
// name with optional accidentals and octave ("c4", "f#3", "bb5") or "n"
// followed by a MIDI number ("n69"), then optionally ":velocity",
// "/seconds" and a trailing "~" that overlaps the note with the next one.
// An explicit octave becomes the default for later notes. "r" or
// "r/seconds" is a rest, "l<seconds>" sets the default length and
// "v<velocity>" the default velocity.
func Parse(src string) (*Score, error) {
	st := parseState{octave: defaultOctave, velocity: defaultVelocity, length: defaultLength}
	i := 0
	for i < len(src) {
		ch := lower(src[i])
		switch {
		case isSpace(ch):
			i++
			continue
		case ch == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case ch == 'n' && i+1 < len(src) && isDigit(src[i+1]):
			nn, next, err := parseInt(src, i+1)
			if err != nil {
				return nil, err
			}
			if nn > 127 {
				return nil, fmt.Errorf("%w: note number %d out of range at %d", ErrSyntax, nn, i)
			}
			next, err = st.note(src, i, next, nn)
			if err != nil {
				return nil, err
			}
			i = next
		case isNote(ch):
			nn, next, err := st.noteName(src, i)
			if err != nil {
				return nil, err
			}
			next, err = st.note(src, i, next, nn)
			if err != nil {
				return nil, err
			}
			i = next
		case ch == 'r':
			length, next, err := st.optionalLength(src, i+1)
			if err != nil {
				return nil, err
			}
			st.flushPending(-1)
			st.time += length
			i = next
		case ch == 'l':
			length, next, err := parseSeconds(src, i+1)
			if err != nil {
				return nil, err
			}
			st.length = length
			i = next
		case ch == 'v':
			vel, next, err := parseVelocity(src, i+1)
			if err != nil {
				return nil, err
			}
			st.velocity = vel
			i = next
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, src[i], i)
		}
		// a token must end at whitespace, a comment or the end of input
		if i < len(src) && !isSpace(lower(src[i])) && src[i] != '#' {
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, src[i], i)
		}
	}
	st.flushPending(-1)
	return st.score(), nil
}

// noteName parses a note letter with accidentals and optional octave.
func (st *parseState) noteName(s string, at int) (int, int, error) {
	base := noteOffsets[lower(s[at])]
	i, shift := at+1, 0
accidentals:
	for i < len(s) {
		switch lower(s[i]) {
		case '#', '+':
			shift++
			i++
		case 'b', '-':
			shift--
			i++
		default:
			break accidentals
		}
	}
	if i < len(s) && isDigit(s[i]) {
		oct, next, err := parseInt(s, i)
		if err != nil {
			return 0, at, err
		}
		st.octave = oct
		i = next
	}
	nn := (st.octave+1)*12 + base + shift
	if nn < 0 || nn > 127 {
		return 0, at, fmt.Errorf("%w: note %q out of range at %d", ErrSyntax, s[at:i], at)
	}
	return nn, i, nil
}

// note parses the velocity, length and overlap suffixes of a note starting
// at start whose name ends at i, and schedules it.
func (st *parseState) note(s string, start, i, nn int) (int, error) {
	vel := st.velocity
	if i < len(s) && s[i] == ':' {
		v, next, err := parseVelocity(s, i+1)
		if err != nil {
			return start, err
		}
		vel, i = v, next
	}
	length, i, err := st.optionalLength(s, i)
	if err != nil {
		return start, err
	}
	overlap := false
	if i < len(s) && s[i] == '~' {
		overlap = true
		i++
	}

	st.flushPending(nn)
	on := scheduled{Event: Event{Time: st.time, Event: midi.On(uint8(nn), uint8(vel))}, order: orderOn}
	off := scheduled{Event: Event{Time: st.time + length, Event: midi.Off(uint8(nn))}, order: orderOff}
	st.push(on)
	if overlap {
		off.order = orderOverlapOff
		st.pending = &off
	} else {
		st.push(off)
	}
	st.time += length
	return i, nil
}

// flushPending emits the held overlapped note-off unless the following note
// has the same pitch, in which case the retrigger takes over.
func (st *parseState) flushPending(nextNote int) {
	if st.pending == nil {
		return
	}
	if int(st.pending.Note) != nextNote {
		st.push(*st.pending)
	}
	st.pending = nil
}

func (st *parseState) push(ev scheduled) {
	ev.seq = len(st.events)
	st.events = append(st.events, ev)
}

func (st *parseState) optionalLength(s string, at int) (float64, int, error) {
	if at < len(s) && s[at] == '/' {
		return parseSeconds(s, at+1)
	}
	return st.length, at, nil
}

func (st *parseState) score() *Score {
	sort.SliceStable(st.events, func(a, b int) bool {
		ea, eb := st.events[a], st.events[b]
		if ea.Time != eb.Time {
			return ea.Time < eb.Time
		}
		if ea.order != eb.order {
			return ea.order < eb.order
		}
		return ea.seq < eb.seq
	})
	sc := &Score{Events: make([]Event, len(st.events)), Duration: st.time}
	for i, ev := range st.events {
		sc.Events[i] = ev.Event
		sc.Duration = math.Max(sc.Duration, ev.Time)
	}
	return sc
}

func parseInt(s string, at int) (int, int, error) {
	i := at
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == at {
		return 0, at, fmt.Errorf("%w: expected number at %d", ErrSyntax, at)
	}
	n, err := strconv.Atoi(s[at:i])
	if err != nil {
		return 0, at, fmt.Errorf("%w: %v at %d", ErrSyntax, err, at)
	}
	return n, i, nil
}

func parseVelocity(s string, at int) (int, int, error) {
	v, next, err := parseInt(s, at)
	if err != nil {
		return 0, at, err
	}
	if v > 127 {
		return 0, at, fmt.Errorf("%w: velocity %d out of range at %d", ErrSyntax, v, at)
	}
	return v, next, nil
}

func parseSeconds(s string, at int) (float64, int, error) {
	i := at
	for i < len(s) && (isDigit(s[i]) || s[i] == '.') {
		i++
	}
	if i == at {
		return 0, at, fmt.Errorf("%w: expected seconds at %d", ErrSyntax, at)
	}
	v, err := strconv.ParseFloat(s[at:i], 64)
	if err != nil {
		return 0, at, fmt.Errorf("%w: bad length %q at %d", ErrSyntax, s[at:i], at)
	}
	if v <= 0 {
		return 0, at, fmt.Errorf("%w: length must be positive at %d", ErrSyntax, at)
	}
	return v, i, nil
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

func isNote(b byte) bool {
	_, ok := noteOffsets[b]
	return ok
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isSpace(b byte) bool { return unicode.IsSpace(rune(b)) }
