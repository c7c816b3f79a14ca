package savoy

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

const phrase = "l0.25 c4 e g c5/0.5 r/0.1 a4:64~ b/0.2"

func TestRenderScoreIsDeterministic(t *testing.T) {
	score, err := Compile(phrase)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	hash := func() [32]byte {
		samples, err := RenderScore(score, 48000, 1.6)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		raw := make([]byte, len(samples)*4)
		for i, s := range samples {
			binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
		}
		return sha256.Sum256(raw)
	}
	if a, b := hash(), hash(); a != b {
		t.Fatalf("renders differ: %x != %x", a, b)
	}
}

func TestRenderScoreShape(t *testing.T) {
	score, err := Compile(phrase)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	samples, err := RenderScore(score, 48000, 2.5, WithDeclick(0))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got, want := len(samples), 2*120000; got != want {
		t.Fatalf("len = %d, want %d", got, want)
	}
	var peak float32
	for i := 0; i < len(samples); i += 2 {
		if samples[i] != samples[i+1] {
			t.Fatalf("frame %d: channels differ", i/2)
		}
		peak = max(peak, float32(math.Abs(float64(samples[i]))))
	}
	if peak < 0.5 || peak > 1 {
		t.Fatalf("peak = %v, want within [0.5, 1]", peak)
	}
	// the phrase ends at 1.8s and the default release is 0.2s
	for i := 2 * int(2.01*48000); i < len(samples); i++ {
		if samples[i] != 0 {
			t.Fatalf("sample %d = %v after the release tail", i, samples[i])
		}
	}
}

func TestRenderScoreRejectsBadRate(t *testing.T) {
	if _, err := RenderScore(nil, 0, 1); err == nil {
		t.Fatal("expected an error for sample rate 0")
	}
}

func TestWriteWAVRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1, 2, -2, 0.25}
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := WriteWAV(f, samples, 22050, 2); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer r.Close()
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		t.Fatal("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 22050 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Fatalf("header = %d Hz %d ch %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{0, 16384, -16384, 32767, -32767, 32767, -32767, 8192}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(want))
	}
	for i, w := range want {
		if buf.Data[i] != w {
			t.Fatalf("sample %d = %d, want %d", i, buf.Data[i], w)
		}
	}
}

func TestWriteWAVValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := WriteWAV(f, nil, 0, 2); err == nil {
		t.Fatal("expected error for sample rate 0")
	}
	if err := WriteWAV(f, nil, 44100, 0); err == nil {
		t.Fatal("expected error for 0 channels")
	}
}
