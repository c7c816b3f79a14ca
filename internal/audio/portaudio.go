//go:build portaudio

package audio

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioPlayer renders directly inside the PortAudio callback.
type PortAudioPlayer struct {
	mu      sync.Mutex
	stream  *portaudio.Stream
	playing bool
}

// NewPortAudioPlayer opens the default stereo output device. framesPerBuffer
// sets the callback block size.
func NewPortAudioPlayer(sampleRate, framesPerBuffer int, source Renderer) (Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	s, err := portaudio.OpenDefaultStream(0, 2, float64(sampleRate), framesPerBuffer, func(out [][]float32) {
		source.Render(out, len(out[0]))
	})
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	return &PortAudioPlayer{stream: s}, nil
}

func (p *PortAudioPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	if err := p.stream.Start(); err == nil {
		p.playing = true
	}
}

func (p *PortAudioPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	if err := p.stream.Stop(); err == nil {
		p.playing = false
	}
}

func (p *PortAudioPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *PortAudioPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	err := p.stream.Close()
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	return err
}
