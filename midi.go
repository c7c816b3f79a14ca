package savoy

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	intmidi "github.com/cbegin/savoy-go/internal/midi"
)

// DecodeMIDI converts a raw MIDI message into a note Event. Messages other
// than note-on and note-off report false.
func DecodeMIDI(msg gomidi.Message) (Event, bool) {
	return intmidi.Decode(msg)
}

// NoteOnEvent returns a note-on Event on channel 0.
func NoteOnEvent(pitch, velocity uint8) Event { return intmidi.On(pitch, velocity) }

// NoteOffEvent returns a note-off Event on channel 0.
func NoteOffEvent(pitch uint8) Event { return intmidi.Off(pitch) }
