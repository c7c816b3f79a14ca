package savoy

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	intmidi "github.com/cbegin/savoy-go/internal/midi"
	intnote "github.com/cbegin/savoy-go/internal/note"
	intparams "github.com/cbegin/savoy-go/internal/params"
	intvoice "github.com/cbegin/savoy-go/internal/voice"
)

var (
	ErrInvalidSampleRate = errors.New("savoy: sample rate must be positive and finite")
	ErrInvalidOption     = errors.New("savoy: invalid option")
)

// Parameter indices, in host order.
const (
	ParamOscillator uint8 = iota
	ParamAttack
	ParamDecay
	ParamSustain
	ParamRelease
)

// DefaultMaxBlockSize is the largest block rendered with one parameter
// snapshot.
const DefaultMaxBlockSize = 64

// TimeRange maps the attack, decay and release knobs to seconds.
type TimeRange = intparams.TimeRange

const (
	CurveLinear      = intparams.Linear
	CurveExponential = intparams.Exponential
)

// Event is a decoded MIDI note event.
type Event = intmidi.Event

// Omni makes the instrument respond on every MIDI channel.
const Omni = intmidi.Omni

type Option func(*instrumentConfig)

type instrumentConfig struct {
	logger       *slog.Logger
	maxBlockSize int
	declick      time.Duration
	timeRange    TimeRange
	channel      int
	queueSize    int
	values       intparams.Values
}

func defaultInstrumentConfig() instrumentConfig {
	return instrumentConfig{
		logger:       slog.Default(),
		maxBlockSize: DefaultMaxBlockSize,
		declick:      time.Duration(intvoice.DefaultDeclick * float64(time.Second)),
		timeRange:    intparams.DefaultTimeRange,
		channel:      Omni,
		queueSize:    intmidi.DefaultQueueSize,
		values:       intparams.Defaults,
	}
}

func (c instrumentConfig) validate() error {
	switch {
	case c.maxBlockSize <= 0:
		return fmt.Errorf("%w: max block size %d", ErrInvalidOption, c.maxBlockSize)
	case c.declick < 0:
		return fmt.Errorf("%w: declick %v", ErrInvalidOption, c.declick)
	case c.channel < Omni || c.channel > 15:
		return fmt.Errorf("%w: channel %d", ErrInvalidOption, c.channel)
	case c.queueSize <= 0:
		return fmt.Errorf("%w: queue size %d", ErrInvalidOption, c.queueSize)
	}
	if err := c.timeRange.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	return nil
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *instrumentConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMaxBlockSize sets the largest sub-block rendered between parameter
// reads.
func WithMaxBlockSize(frames int) Option {
	return func(cfg *instrumentConfig) {
		cfg.maxBlockSize = frames
	}
}

// WithDeclick sets the amplitude smoothing time. 0 disables smoothing.
func WithDeclick(d time.Duration) Option {
	return func(cfg *instrumentConfig) {
		cfg.declick = d
	}
}

func WithTimeRange(r TimeRange) Option {
	return func(cfg *instrumentConfig) {
		cfg.timeRange = r
	}
}

// WithChannel restricts posted events to one MIDI channel (0-15), or Omni.
func WithChannel(channel int) Option {
	return func(cfg *instrumentConfig) {
		cfg.channel = channel
	}
}

// WithQueueSize sets the capacity of the cross-goroutine event queue.
func WithQueueSize(events int) Option {
	return func(cfg *instrumentConfig) {
		cfg.queueSize = events
	}
}

// WithParameter sets the initial value of a parameter.
func WithParameter(index uint8, value float32) Option {
	return func(cfg *instrumentConfig) {
		if int(index) < intparams.Count {
			cfg.values[index] = value
		}
	}
}

// Instrument is the monophonic synth voice with its parameter bank.
//
// Render, Process, NoteOn, NoteOff and SetSampleRate belong to the audio
// goroutine. Post, SetParameter and GetParameter may be called from any
// goroutine.
type Instrument struct {
	log       *slog.Logger
	engine    *intvoice.Engine
	bank      *intparams.Bank
	queue     *intmidi.Queue
	timeRange TimeRange
	channel   int
	maxBlock  int
	scratch   []float32
	apply     func(intmidi.Event)
}

func NewInstrument(sampleRate float64, opts ...Option) (*Instrument, error) {
	if err := checkSampleRate(sampleRate); err != nil {
		return nil, err
	}
	cfg := defaultInstrumentConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	engine := intvoice.New(sampleRate)
	engine.SetDeclick(cfg.declick.Seconds())
	inst := &Instrument{
		log:       cfg.logger,
		engine:    engine,
		bank:      intparams.NewBank(cfg.values),
		queue:     intmidi.NewQueue(cfg.queueSize),
		timeRange: cfg.timeRange,
		channel:   cfg.channel,
		maxBlock:  cfg.maxBlockSize,
		scratch:   make([]float32, cfg.maxBlockSize),
	}
	inst.apply = inst.applyEvent
	inst.log.Debug("instrument created",
		"sample_rate", sampleRate,
		"max_block", cfg.maxBlockSize,
		"declick", cfg.declick,
		"channel", cfg.channel,
		"time_curve", cfg.timeRange.Curve,
	)
	return inst, nil
}

func checkSampleRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, rate)
	}
	return nil
}

// Render fills blockSize frames of every output channel with the mono voice.
func (in *Instrument) Render(outputs [][]float32, blockSize int) {
	for _, ch := range outputs {
		blockSize = min(blockSize, len(ch))
	}
	in.queue.Drain(in.apply)
	for off := 0; off < blockSize; {
		n := min(in.maxBlock, blockSize-off)
		mono := in.scratch[:n]
		in.engine.Process(mono, in.voiceParams())
		for _, ch := range outputs {
			copy(ch[off:off+n], mono)
		}
		off += n
	}
}

// Process renders interleaved stereo frames into dst. A trailing odd
// sample is zeroed.
func (in *Instrument) Process(dst []float32) {
	frames := len(dst) / 2
	clear(dst[frames*2:])
	in.queue.Drain(in.apply)
	for off := 0; off < frames; {
		n := min(in.maxBlock, frames-off)
		mono := in.scratch[:n]
		in.engine.Process(mono, in.voiceParams())
		out := dst[off*2 : (off+n)*2]
		for i, v := range mono {
			out[i*2] = v
			out[i*2+1] = v
		}
		off += n
	}
}

func (in *Instrument) voiceParams() intvoice.Params {
	v := in.bank.Snapshot()
	return intvoice.Params{
		Envelope: v.Envelope(in.timeRange),
		Shape:    v.Shape(),
	}
}

// NoteOn starts a note at the beginning of the next rendered block. A
// velocity of 0 releases the note instead.
func (in *Instrument) NoteOn(pitch, velocity uint8) {
	if velocity == 0 {
		in.NoteOff(pitch)
		return
	}
	in.engine.NoteOn(intnote.Pitch(pitch), intnote.Velocity(velocity))
}

// NoteOff releases pitch if it is the sounding note.
func (in *Instrument) NoteOff(pitch uint8) {
	in.engine.NoteOff(intnote.Pitch(pitch))
}

// Post queues ev for the next Render or Process call. It never blocks and
// reports false when the queue is full.
func (in *Instrument) Post(ev Event) bool {
	return in.queue.Push(ev)
}

// Dropped returns the number of posted events lost to a full queue.
func (in *Instrument) Dropped() uint64 { return in.queue.Drops() }

func (in *Instrument) applyEvent(ev intmidi.Event) {
	if !ev.Accepts(in.channel) {
		return
	}
	switch ev.Kind {
	case intmidi.NoteOn:
		in.NoteOn(ev.Note, ev.Velocity)
	case intmidi.NoteOff:
		in.NoteOff(ev.Note)
	}
}

// SetParameter stores a raw knob value. Unknown indices are ignored.
func (in *Instrument) SetParameter(index uint8, value float32) {
	in.bank.Set(intparams.Index(index), value)
}

// GetParameter returns a raw knob value, or 0 for an unknown index.
func (in *Instrument) GetParameter(index uint8) float32 {
	return in.bank.Get(intparams.Index(index))
}

func (in *Instrument) ParameterName(index uint8) string {
	return intparams.Index(index).Name()
}

func (in *Instrument) ParameterCount() int { return intparams.Count }

// SetSampleRate reconfigures the voice for a new rate and restarts the
// clock. It must not run concurrently with Render or Process.
func (in *Instrument) SetSampleRate(rate float64) error {
	if err := checkSampleRate(rate); err != nil {
		return err
	}
	old := in.engine.SampleRate()
	in.engine.SetSampleRate(rate)
	in.log.Info("sample rate changed", "from", old, "to", rate)
	return nil
}

func (in *Instrument) SampleRate() float64 { return in.engine.SampleRate() }

// Reset silences the voice immediately and discards queued events.
func (in *Instrument) Reset() {
	in.engine.Reset()
	in.queue.Drain(func(intmidi.Event) {})
}

// Active reports whether the voice is sounding, including its release.
func (in *Instrument) Active() bool { return in.engine.Active() }
