// Package midi carries decoded note events from MIDI devices, keyboards and
// the sequencer to the render thread.
package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Kind is the type of a note event.
type Kind uint8

const (
	NoteOn Kind = iota + 1
	NoteOff
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note-on"
	case NoteOff:
		return "note-off"
	default:
		return "unknown"
	}
}

// Omni accepts events on every channel.
const Omni = -1

// Event is a decoded note-on or note-off.
type Event struct {
	Kind     Kind
	Channel  uint8
	Note     uint8
	Velocity uint8
}

// On returns a note-on event on channel 0.
func On(note, velocity uint8) Event {
	return Event{Kind: NoteOn, Note: note, Velocity: velocity}
}

// Off returns a note-off event on channel 0.
func Off(note uint8) Event {
	return Event{Kind: NoteOff, Note: note}
}

func (e Event) String() string {
	return fmt.Sprintf("%s ch=%d note=%d vel=%d", e.Kind, e.Channel, e.Note, e.Velocity)
}

// Accepts reports whether e passes a channel filter, which is either Omni
// or a channel number 0..15.
func (e Event) Accepts(channel int) bool {
	return channel == Omni || int(e.Channel) == channel
}

// Decode converts a raw MIDI message into an Event. Anything other than a
// note-on or note-off reports false. A note-on with velocity 0 decodes as a
// note-off.
func Decode(msg gomidi.Message) (Event, bool) {
	var ch, key, vel uint8
	if msg.GetNoteStart(&ch, &key, &vel) {
		return Event{Kind: NoteOn, Channel: ch, Note: key, Velocity: vel}, true
	}
	if msg.GetNoteEnd(&ch, &key) {
		return Event{Kind: NoteOff, Channel: ch, Note: key}, true
	}
	return Event{}, false
}

// Message encodes e back into a raw MIDI message.
func (e Event) Message() gomidi.Message {
	if e.Kind == NoteOn {
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
	}
	return gomidi.NoteOff(e.Channel, e.Note)
}
