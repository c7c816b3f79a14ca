package main

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/cbegin/savoy-go"
)

// keyRow lays one octave over the home row, black keys on the row above.
const keyRow = "awsedftgyhujk"

const keyVelocity = 100

// keyboard turns terminal key presses into notes. Terminals report no key
// releases, so each press replaces the previous note and space releases it.
type keyboard struct {
	octave int
	held   int
}

func newKeyboard() *keyboard {
	return &keyboard{octave: 4, held: -1}
}

type keyAction struct {
	on, off int // pitches, -1 for none
	quit    bool
}

func (k *keyboard) press(b byte) keyAction {
	act := keyAction{on: -1, off: -1}
	switch b {
	case 'q', 3: // q or Ctrl-C
		act.off = k.held
		act.quit = true
		k.held = -1
		return act
	case ' ':
		act.off = k.held
		k.held = -1
		return act
	case 'z':
		k.octave = max(k.octave-1, -1)
		return act
	case 'x':
		k.octave = min(k.octave+1, 9)
		return act
	}
	for i := 0; i < len(keyRow); i++ {
		if keyRow[i] != b {
			continue
		}
		pitch := (k.octave+1)*12 + i
		if pitch > 127 {
			return act
		}
		if k.held >= 0 && k.held != pitch {
			act.off = k.held
		}
		act.on = pitch
		k.held = pitch
		return act
	}
	return act
}

func runKeys(pl *savoy.Player) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("-keys needs an interactive terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	fmt.Print("keys: a w s e d f t g y h u j k play, z/x octave, space release, q quit\r\n")
	kb := newKeyboard()
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		act := kb.press(buf[0])
		if act.off >= 0 {
			pl.NoteOff(uint8(act.off))
		}
		if act.on >= 0 && !pl.NoteOn(uint8(act.on), keyVelocity) {
			logger.Warn("note dropped", "pitch", act.on)
		}
		if act.quit {
			return nil
		}
	}
}
