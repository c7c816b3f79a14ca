//go:build rtmidi

package main

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cbegin/savoy-go"
)

// listenMIDI forwards note messages from the first input whose name
// contains port to pl.
func listenMIDI(port string, pl *savoy.Player) (func(), error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("open rtmidi driver: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("list MIDI inputs: %w", err)
	}
	var found drivers.In
	for _, in := range ins {
		logger.Debug("MIDI input", "device", in.String())
		if strings.Contains(strings.ToLower(in.String()), strings.ToLower(port)) {
			found = in
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("MIDI input %q not found", port)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("open MIDI port %q: %w", found.String(), err)
	}
	name := found.String()
	stop, err := midi.ListenTo(found, func(msg midi.Message, timestampms int32) {
		ev, ok := savoy.DecodeMIDI(msg)
		if !ok {
			return
		}
		if !pl.Post(ev) {
			logger.Warn("MIDI event dropped", "event", ev.String())
		}
	}, midi.HandleError(func(listenErr error) {
		logger.Warn("MIDI listener error", "device", name, "err", listenErr)
	}))
	if err != nil {
		found.Close()
		drv.Close()
		return nil, fmt.Errorf("listen on %q: %w", name, err)
	}
	logger.Info("MIDI input connected", "device", name)
	return func() {
		stop()
		_ = found.Close()
		drv.Close()
		logger.Info("MIDI input closed", "device", name)
	}, nil
}
