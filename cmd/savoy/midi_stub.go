//go:build !rtmidi

package main

import (
	"errors"

	"github.com/cbegin/savoy-go"
)

func listenMIDI(port string, pl *savoy.Player) (func(), error) {
	return nil, errors.New("MIDI input needs a build with -tags rtmidi")
}
