package savoy

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	intaudio "github.com/cbegin/savoy-go/internal/audio"
	intseq "github.com/cbegin/savoy-go/internal/sequencer"
)

// RenderScore plays score through a fresh Instrument and returns seconds of
// interleaved stereo output.
func RenderScore(score *intseq.Score, sampleRate int, seconds float64, opts ...Option) ([]float32, error) {
	inst, err := NewInstrument(float64(sampleRate), opts...)
	if err != nil {
		return nil, err
	}
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	seq := intseq.NewWithOptions(score, inst, sampleRate, intseq.Options{})
	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	seq.Process(out)
	return out, nil
}

// WriteWAV encodes interleaved samples as 16-bit PCM. Values outside
// [-1, 1] are clipped.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	if channels <= 0 {
		return fmt.Errorf("%w: %d channels", ErrInvalidOption, channels)
	}
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = toPCM16(s)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

func toPCM16(s float32) int {
	return int(math.Round(float64(intaudio.Clamp(s)) * math.MaxInt16))
}
