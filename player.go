package savoy

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	intaudio "github.com/cbegin/savoy-go/internal/audio"
	intmidi "github.com/cbegin/savoy-go/internal/midi"
	intseq "github.com/cbegin/savoy-go/internal/sequencer"
)

// PlaybackEvent carries score playback events from Watch().
type PlaybackEvent struct {
	Kind  int // EventLoopCompleted or EventPlaybackEnded
	Loops int // completed passes so far
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
)

// Backend selects the audio output used by a Player.
type Backend string

const (
	BackendEbiten    Backend = "ebiten"
	BackendOto       Backend = "oto"
	BackendPortAudio Backend = "portaudio"
)

// ErrUnknownBackend is returned for a Backend outside the known set.
var ErrUnknownBackend = errors.New("savoy: unknown audio backend")

// DefaultFramesPerBuffer is the PortAudio callback size.
const DefaultFramesPerBuffer = 256

type PlayerOption func(*playerConfig)

type playerConfig struct {
	backend      Backend
	loopPlayback bool
	sampleTap    func([]float32)
	logger       *slog.Logger
	instOpts     []Option
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{backend: BackendEbiten, logger: slog.Default()}
}

func WithBackend(b Backend) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.backend = b
	}
}

func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loopPlayback = enabled
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// WithPlayerLogger sets the logger for the player and its instrument.
func WithPlayerLogger(logger *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithInstrumentOptions passes options through to the player's Instrument.
func WithInstrumentOptions(opts ...Option) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.instOpts = append(cfg.instOpts, opts...)
	}
}

// Player runs an Instrument on a live audio backend. Notes can be posted
// from any goroutine while a score plays.
type Player struct {
	mu           sync.Mutex
	log          *slog.Logger
	sampleRate   int
	backendKind  Backend
	inst         *Instrument
	source       *liveSource
	audio        intaudio.Backend
	loopPlayback bool
	done         chan struct{}
	eventCh      chan PlaybackEvent
	eventChMu    sync.Mutex
}

// liveSource feeds the backend from the instrument, driven by the current
// sequencer when a score is playing.
type liveSource struct {
	inst      *Instrument
	seq       atomic.Pointer[intseq.Sequencer]
	last      *intseq.Sequencer
	sampleTap func([]float32)
	buf       []float32
}

func (s *liveSource) Process(dst []float32) {
	seq := s.seq.Load()
	if seq != nil && seq != s.last {
		// a new score starts from a silent voice
		s.inst.Reset()
	}
	s.last = seq
	if seq != nil {
		seq.Process(dst)
	} else {
		s.inst.Process(dst)
	}
	if s.sampleTap != nil {
		s.sampleTap(dst)
	}
}

// Render serves callback backends that want one buffer per channel.
func (s *liveSource) Render(outputs [][]float32, blockSize int) {
	need := blockSize * 2
	if cap(s.buf) < need {
		s.buf = make([]float32, need)
	}
	buf := s.buf[:need]
	s.Process(buf)
	intaudio.Deinterleave(outputs, buf, blockSize)
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	switch cfg.backend {
	case BackendEbiten, BackendOto, BackendPortAudio:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.backend)
	}
	instOpts := append([]Option{WithLogger(cfg.logger)}, cfg.instOpts...)
	inst, err := NewInstrument(float64(sampleRate), instOpts...)
	if err != nil {
		return nil, err
	}
	return &Player{
		log:          cfg.logger,
		sampleRate:   sampleRate,
		backendKind:  cfg.backend,
		inst:         inst,
		source:       &liveSource{inst: inst, sampleTap: cfg.sampleTap},
		loopPlayback: cfg.loopPlayback,
	}, nil
}

// Compile parses score text into a playable Score.
func Compile(text string) (*intseq.Score, error) {
	return intseq.Parse(text)
}

// Start opens the audio backend if needed and begins streaming.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked()
}

func (p *Player) startLocked() error {
	if p.audio == nil {
		backend, err := p.openBackend()
		if err != nil {
			return err
		}
		p.audio = backend
		p.log.Info("audio started", "backend", string(p.backendKind), "sample_rate", p.sampleRate)
	}
	p.audio.Play()
	return nil
}

func (p *Player) openBackend() (intaudio.Backend, error) {
	switch p.backendKind {
	case BackendOto:
		return intaudio.NewOtoPlayer(p.sampleRate, p.source)
	case BackendPortAudio:
		return intaudio.NewPortAudioPlayer(p.sampleRate, DefaultFramesPerBuffer, p.source)
	default:
		return intaudio.NewEbitenPlayer(p.sampleRate, p.source)
	}
}

// PlayText compiles text and plays it.
func (p *Player) PlayText(text string) error {
	score, err := Compile(text)
	if err != nil {
		return err
	}
	return p.Play(score)
}

// Play replaces any playing score with score and starts the backend.
func (p *Player) Play(score *intseq.Score) error {
	if score == nil {
		score = &intseq.Score{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
	}
	p.done = make(chan struct{})
	p.load(score)
	return p.startLocked()
}

// load installs a sequencer for score on the live source. The audio
// goroutine picks it up on its next block.
func (p *Player) load(score *intseq.Score) {
	loops := 0
	var seq *intseq.Sequencer
	seq = intseq.NewWithOptions(score, p.inst, p.sampleRate, intseq.Options{
		Loop: p.loopPlayback,
		OnEvent: func(kind intseq.EventKind) {
			switch kind {
			case intseq.EventLoopCompleted:
				loops++
				p.sendEvent(PlaybackEvent{Kind: EventLoopCompleted, Loops: loops})
			case intseq.EventPlaybackEnded:
				p.source.seq.CompareAndSwap(seq, nil)
				p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Loops: loops + 1})
				p.signalDone()
			}
		},
	})
	p.source.seq.Store(seq)
	p.log.Debug("score queued", "events", len(score.Events), "duration", score.Duration, "loop", p.loopPlayback)
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

func (p *Player) signalDone() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

// Stop closes the backend and ends any score playback.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.audio == nil {
		p.mu.Unlock()
		return nil
	}
	err := p.audio.Stop()
	p.audio = nil
	p.source.seq.Store(nil)
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if dropped := p.inst.Dropped(); dropped > 0 {
		p.log.Warn("note events dropped", "count", dropped)
	}
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	if done != nil {
		close(done)
	}
	return err
}

// Wait blocks until the current playback ends. When loop playback is enabled,
// Wait blocks until Stop or the next Play.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events. The channel is
// buffered (cap 8) and only the most recent Watch() channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// NoteOn posts a note-on for the next audio block.
func (p *Player) NoteOn(pitch, velocity uint8) bool {
	return p.inst.Post(intmidi.On(pitch, velocity))
}

func (p *Player) NoteOff(pitch uint8) bool {
	return p.inst.Post(intmidi.Off(pitch))
}

// Post forwards a decoded MIDI event to the instrument.
func (p *Player) Post(ev Event) bool { return p.inst.Post(ev) }

func (p *Player) SetParameter(index uint8, value float32) {
	p.inst.SetParameter(index, value)
}

func (p *Player) GetParameter(index uint8) float32 {
	return p.inst.GetParameter(index)
}

func (p *Player) Instrument() *Instrument { return p.inst }

func (p *Player) Backend() Backend { return p.backendKind }

func (p *Player) SampleRate() int { return p.sampleRate }
