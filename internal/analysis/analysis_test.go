package analysis

import (
	"math"
	"testing"
)

func sine(freq, sr float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freq * float64(i) / sr))
	}
	return out
}

func TestNewRejectsNonPowerOfTwo(t *testing.T) {
	for _, size := range []int{0, 1, 3, 1000} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded, want error", size)
		}
	}
}

func TestDominantFrequencyOfSine(t *testing.T) {
	const sr = 44100.0
	for _, freq := range []float64{110, 440, 1000, 3520} {
		got, err := DominantFrequency(sine(freq, sr, 8192), sr)
		if err != nil {
			t.Fatalf("DominantFrequency: %v", err)
		}
		binWidth := sr / 8192
		if math.Abs(got-freq) > binWidth/2 {
			t.Errorf("freq %v: got %v", freq, got)
		}
	}
}

func TestSpectrumPeakLevel(t *testing.T) {
	const sr = 8192.0
	a, err := New(1024)
	if err != nil {
		t.Fatal(err)
	}
	// 512 Hz lands exactly on bin 64.
	mag := a.Spectrum(sine(512, sr, 1024))
	if len(mag) != 512 {
		t.Fatalf("len = %d, want 512", len(mag))
	}
	bin, _ := a.Peak()
	if bin != 64 {
		t.Fatalf("peak bin = %d, want 64", bin)
	}
	if math.Abs(mag[64]-1) > 0.05 {
		t.Fatalf("peak magnitude = %v, want ~1", mag[64])
	}
}

func TestPeakOfTwoPointSpectrumIsDC(t *testing.T) {
	a, err := New(2)
	if err != nil {
		t.Fatal(err)
	}
	a.Spectrum([]float32{1, -1})
	if bin, pos := a.Peak(); bin != 0 || pos != 0 {
		t.Fatalf("peak = %d %v, want 0 0", bin, pos)
	}
	got, err := DominantFrequency([]float32{0.5, -0.5, 0.25}, 48000)
	if err != nil || got != 0 {
		t.Fatalf("DominantFrequency = %v, %v; want 0, nil", got, err)
	}
}

func TestSpectrumOfSilenceIsZero(t *testing.T) {
	a, err := New(256)
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range a.Spectrum(make([]float32, 100)) {
		if m != 0 {
			t.Fatalf("bin %d = %v, want 0", i, m)
		}
	}
}

func TestDominantFrequencyTooShort(t *testing.T) {
	if _, err := DominantFrequency([]float32{1}, 44100); err != ErrTooShort {
		t.Fatalf("err = %v, want ErrTooShort", err)
	}
}
