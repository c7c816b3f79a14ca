// Package audio carries rendered instrument output to a sound device.
// Sources always render interleaved stereo float32; the backends differ
// only in how the device pulls it.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource renders interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// Renderer renders non-interleaved channel buffers, as callback APIs
// deliver them.
type Renderer interface {
	Render(outputs [][]float32, blockSize int)
}

// Backend is a running output stream.
type Backend interface {
	Play()
	Pause()
	IsPlaying() bool
	Stop() error
}

// ErrUnavailable is returned by backends that were not compiled in.
var ErrUnavailable = errors.New("audio backend not available in this build")

// DeviceLatency is the output buffer requested from pull-model backends.
const DeviceLatency = 20 * time.Millisecond

const bytesPerFrame = 8 // two float32 channels

// Clamp limits s to full scale. NaN becomes silence.
func Clamp(s float32) float32 {
	switch {
	case s != s:
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// Deinterleave splits frames of interleaved stereo src into outputs,
// clamped to full scale. Odd outputs take the right channel. Each output
// is written up to its own length.
func Deinterleave(outputs [][]float32, src []float32, frames int) {
	for c, out := range outputs {
		side := c & 1
		for i := range min(frames, len(out)) {
			out[i] = Clamp(src[i*2+side])
		}
	}
}

// StreamReader encodes a SampleSource as the Float32LE stereo byte stream
// pulled by ebiten and oto. A live instrument never ends, so Read never
// returns io.EOF. It is read from a single driver goroutine.
type StreamReader struct {
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

// Read renders whole frames only; a trailing partial frame of p is left
// untouched.
func (r *StreamReader) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(Clamp(s)))
	}
	return frames * bytesPerFrame, nil
}

func (r *StreamReader) Close() error { return nil }

// EbitenPlayer streams a SampleSource through ebiten's audio context.
type EbitenPlayer struct {
	player *ebitaudio.Player
	reader *StreamReader
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// ebiten allows one audio context per process.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

func NewEbitenPlayer(sampleRate int, source SampleSource) (*EbitenPlayer, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	pl.SetBufferSize(DeviceLatency)
	return &EbitenPlayer{player: pl, reader: reader}, nil
}

func (p *EbitenPlayer) Play()           { p.player.Play() }
func (p *EbitenPlayer) Pause()          { p.player.Pause() }
func (p *EbitenPlayer) IsPlaying() bool { return p.player.IsPlaying() }

func (p *EbitenPlayer) Stop() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
