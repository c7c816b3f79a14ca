// Package analysis computes magnitude spectra of rendered audio for the
// scope display and for pitch checks in tests.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/ktye/fft"
)

// ErrTooShort is returned when fewer than two samples are supplied.
var ErrTooShort = errors.New("analysis: need at least 2 samples")

// Analyzer holds a Hann window and FFT plan of a fixed power-of-two size.
// It reuses its buffers and is not safe for concurrent use.
type Analyzer struct {
	size int
	fft  fft.FFT
	env  []float64
	buf  []complex128
	mag  []float64
}

// New returns an Analyzer for frames of size samples. size must be a power
// of two.
func New(size int) (*Analyzer, error) {
	if size < 2 || size&(size-1) != 0 {
		return nil, fmt.Errorf("analysis: size %d is not a power of two", size)
	}
	plan, err := fft.New(size)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	env := make([]float64, size)
	for i := range env {
		env[i] = (1 - math.Cos(2*math.Pi*float64(i)/float64(size))) / 2
	}
	return &Analyzer{
		size: size,
		fft:  plan,
		env:  env,
		buf:  make([]complex128, size),
		mag:  make([]float64, size/2),
	}, nil
}

// Size returns the frame length.
func (a *Analyzer) Size() int { return a.size }

// Spectrum windows the last Size samples of frame (zero padded if shorter)
// and returns the magnitudes of bins 0..Size/2-1, normalized so a full-scale
// sine peaks near 1. The returned slice is reused by the next call.
func (a *Analyzer) Spectrum(frame []float32) []float64 {
	if len(frame) > a.size {
		frame = frame[len(frame)-a.size:]
	}
	for i := range a.buf {
		var x float64
		if i < len(frame) {
			x = float64(frame[i])
		}
		a.buf[i] = complex(x*a.env[i], 0)
	}
	a.buf = a.fft.Transform(a.buf)
	// The Hann window halves the coherent gain.
	scale := 4 / float64(a.size)
	for i := range a.mag {
		c := a.buf[i]
		a.mag[i] = math.Hypot(real(c), imag(c)) * scale
	}
	return a.mag
}

// Peak returns the strongest non-DC bin of the last spectrum and its
// fractional position refined by parabolic interpolation. A spectrum with
// no bin above DC reports bin 0.
func (a *Analyzer) Peak() (bin int, pos float64) {
	if len(a.mag) < 2 {
		return 0, 0
	}
	bin = 1
	for i := 2; i < len(a.mag); i++ {
		if a.mag[i] > a.mag[bin] {
			bin = i
		}
	}
	pos = float64(bin)
	if bin > 1 && bin < len(a.mag)-1 {
		l, c, r := a.mag[bin-1], a.mag[bin], a.mag[bin+1]
		if d := l - 2*c + r; d != 0 {
			pos += 0.5 * (l - r) / d
		}
	}
	return bin, pos
}

// BinFrequency converts a (fractional) bin position to Hz.
func (a *Analyzer) BinFrequency(pos, sampleRate float64) float64 {
	return pos * sampleRate / float64(a.size)
}

// DominantFrequency estimates the strongest frequency in samples using the
// largest power-of-two frame that fits.
func DominantFrequency(samples []float32, sampleRate float64) (float64, error) {
	if len(samples) < 2 {
		return 0, ErrTooShort
	}
	size := 1
	for size*2 <= len(samples) {
		size *= 2
	}
	a, err := New(size)
	if err != nil {
		return 0, err
	}
	a.Spectrum(samples[:size])
	_, pos := a.Peak()
	return a.BinFrequency(pos, sampleRate), nil
}
