package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/cbegin/savoy-go"
)

const defaultScore = "l0.25 c4 e g c5/0.5 r/0.1 g4 e c/0.5"

var logger = slog.Default()

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		backend    = flag.String("backend", "ebiten", "audio backend: ebiten|oto|portaudio")
		scorePath  = flag.String("file", "", "path to a score file")
		scoreText  = flag.String("score", "", "inline score")
		outPath    = flag.String("out", "", "render the score to this WAV file instead of playing it")
		seconds    = flag.Float64("seconds", 0, "length of -out renders (0 = score length plus release)")
		loop       = flag.Bool("loop", false, "loop playback; use with -loops to count then stop")
		loops      = flag.Int("loops", 3, "when -loop, stop after N loops (0 = loop forever)")
		oscillator = flag.Float64("osc", 0, "oscillator knob: <0.25 saw, <0.5 square, <0.75 triangle, else sine")
		attack     = flag.Float64("attack", 0, "attack knob")
		decay      = flag.Float64("decay", 1, "decay knob")
		sustain    = flag.Float64("sustain", 1, "sustain level")
		release    = flag.Float64("release", 0.2, "release knob")
		declick    = flag.Duration("declick", 5*time.Millisecond, "amplitude smoothing time (0 disables)")
		channel    = flag.Int("channel", savoy.Omni, "MIDI channel 0-15, or -1 for all")
		keys       = flag.Bool("keys", false, "play live from the terminal keyboard")
		midiPort   = flag.String("midi", "", "MIDI input port name (substring match; needs -tags rtmidi)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()
	initLogger(*debug)

	instOpts := []savoy.Option{
		savoy.WithLogger(logger),
		savoy.WithDeclick(*declick),
		savoy.WithChannel(*channel),
		savoy.WithParameter(savoy.ParamOscillator, float32(*oscillator)),
		savoy.WithParameter(savoy.ParamAttack, float32(*attack)),
		savoy.WithParameter(savoy.ParamDecay, float32(*decay)),
		savoy.WithParameter(savoy.ParamSustain, float32(*sustain)),
		savoy.WithParameter(savoy.ParamRelease, float32(*release)),
	}

	if *outPath != "" {
		text, err := resolveScoreInput(*scorePath, *scoreText)
		if err != nil {
			log.Fatal(err)
		}
		if err := renderToFile(*outPath, text, *sampleRate, *seconds, *release, instOpts); err != nil {
			log.Fatal(err)
		}
		return
	}

	pl, err := savoy.NewPlayer(*sampleRate,
		savoy.WithBackend(savoy.Backend(strings.ToLower(strings.TrimSpace(*backend)))),
		savoy.WithLoopPlayback(*loop),
		savoy.WithPlayerLogger(logger),
		savoy.WithInstrumentOptions(instOpts...),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer pl.Stop()

	if *midiPort != "" {
		stop, err := listenMIDI(*midiPort, pl)
		if err != nil {
			log.Fatal(err)
		}
		defer stop()
	}

	switch {
	case *keys:
		if err := pl.Start(); err != nil {
			log.Fatal(err)
		}
		if err := runKeys(pl); err != nil {
			log.Fatal(err)
		}
	case *midiPort != "" && *scorePath == "" && *scoreText == "":
		if err := pl.Start(); err != nil {
			log.Fatal(err)
		}
		fmt.Println("listening for MIDI; press Ctrl-C to quit")
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
	default:
		text, err := resolveScoreInput(*scorePath, *scoreText)
		if err != nil {
			log.Fatal(err)
		}
		playScore(pl, text, *loop, *loops)
	}
}

func playScore(pl *savoy.Player, text string, loop bool, loops int) {
	ch := pl.Watch()
	if err := pl.PlayText(text); err != nil {
		log.Fatal(err)
	}
	for event := range ch {
		switch event.Kind {
		case savoy.EventPlaybackEnded:
			fmt.Println("playback completed")
			pl.Wait()
			return
		case savoy.EventLoopCompleted:
			fmt.Printf("loop %d completed\n", event.Loops)
			if loop && loops > 0 && event.Loops >= loops {
				pl.Stop()
			}
		}
	}
}

func renderToFile(path, text string, sampleRate int, seconds, release float64, opts []savoy.Option) error {
	score, err := savoy.Compile(text)
	if err != nil {
		return err
	}
	if seconds <= 0 {
		seconds = score.Duration + max(release, 0) + 0.1
	}
	samples, err := savoy.RenderScore(score, sampleRate, seconds, opts...)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := savoy.WriteWAV(f, samples, sampleRate, 2); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("wrote wav", "path", path, "seconds", seconds, "sample_rate", sampleRate)
	return nil
}

func resolveScoreInput(path string, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return defaultScore, nil
}
