//go:build !portaudio

package audio

// NewPortAudioPlayer reports ErrUnavailable; build with -tags portaudio to
// enable the PortAudio backend.
func NewPortAudioPlayer(sampleRate, framesPerBuffer int, source Renderer) (Backend, error) {
	return nil, ErrUnavailable
}
