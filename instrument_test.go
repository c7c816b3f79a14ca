package savoy

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	intmidi "github.com/cbegin/savoy-go/internal/midi"
	intnote "github.com/cbegin/savoy-go/internal/note"
	intosc "github.com/cbegin/savoy-go/internal/osc"
	intparams "github.com/cbegin/savoy-go/internal/params"
)

const testRate = 44100.0

func scenarioInstrument(t testing.TB, extra ...Option) *Instrument {
	t.Helper()
	opts := append([]Option{
		WithDeclick(0),
		WithParameter(ParamOscillator, 0.9),
		WithParameter(ParamAttack, 0.1),
		WithParameter(ParamDecay, 0.1),
		WithParameter(ParamSustain, 0.5),
		WithParameter(ParamRelease, 0.2),
	}, extra...)
	inst, err := NewInstrument(testRate, opts...)
	if err != nil {
		t.Fatalf("new instrument: %v", err)
	}
	return inst
}

// scenarioLevel is the envelope for a note held from 0 to 0.3s.
func scenarioLevel(t float64) float64 {
	switch {
	case t < 0.1:
		return t / 0.1
	case t < 0.2:
		return 1 - 0.5*(t-0.1)/0.1
	case t < 0.3:
		return 0.5
	case t < 0.5:
		return 0.5 * (1 - (t-0.3)/0.2)
	default:
		return 0
	}
}

func TestInstrumentScenario(t *testing.T) {
	inst := scenarioInstrument(t)
	const block = 441
	left := make([]float32, block)
	right := make([]float32, block)
	outputs := [][]float32{left, right}

	inst.Post(intmidi.On(69, 127))
	for b := 0; b < 60; b++ {
		if b == 30 {
			inst.Post(intmidi.Off(69))
		}
		inst.Render(outputs, block)
		for i := range block {
			now := float64(b*block+i) / testRate
			want := intosc.Render(intosc.Sine, intnote.Pitch(69), now) * scenarioLevel(now)
			if math.Abs(float64(left[i])-want) > 1e-4 {
				t.Fatalf("t=%.5f: sample = %v, want %v", now, left[i], want)
			}
			if left[i] != right[i] {
				t.Fatalf("t=%.5f: channels differ %v != %v", now, left[i], right[i])
			}
			if now >= 0.501 && left[i] != 0 {
				t.Fatalf("t=%.5f: expected exact silence, got %v", now, left[i])
			}
		}
	}
	if inst.Active() {
		t.Fatal("instrument still active after release")
	}
}

func TestInstrumentProcessMatchesRender(t *testing.T) {
	a := scenarioInstrument(t)
	b := scenarioInstrument(t)
	a.NoteOn(60, 100)
	b.NoteOn(60, 100)

	const frames = 300
	inter := make([]float32, frames*2)
	l := make([]float32, frames)
	r := make([]float32, frames)
	for range 10 {
		a.Process(inter)
		b.Render([][]float32{l, r}, frames)
		for i := range frames {
			if inter[i*2] != l[i] || inter[i*2+1] != r[i] {
				t.Fatalf("frame %d: process (%v,%v) != render (%v,%v)", i, inter[i*2], inter[i*2+1], l[i], r[i])
			}
		}
	}
}

func TestInstrumentProcessOddLengthClearsTail(t *testing.T) {
	inst := scenarioInstrument(t)
	inst.NoteOn(60, 127)
	dst := make([]float32, 129)
	for i := range dst {
		dst[i] = 7
	}
	inst.Process(dst)
	if dst[128] != 0 {
		t.Fatalf("trailing sample = %v, want 0", dst[128])
	}
	if dst[126] == 7 || dst[126] != dst[127] {
		t.Fatalf("last frame = (%v,%v), want a rendered stereo pair", dst[126], dst[127])
	}
}

func TestInstrumentRenderShortChannel(t *testing.T) {
	inst := scenarioInstrument(t)
	inst.NoteOn(60, 127)
	long := make([]float32, 128)
	short := make([]float32, 32)
	inst.Render([][]float32{long, short}, 128)
	for i := 32; i < 128; i++ {
		if long[i] != 0 {
			t.Fatalf("frame %d written past the shortest channel", i)
		}
	}
}

func TestInstrumentVelocityZeroReleases(t *testing.T) {
	inst := scenarioInstrument(t)
	inst.NoteOn(60, 127)
	inst.Process(make([]float32, 128))
	inst.NoteOn(60, 0)
	inst.Process(make([]float32, 2*int(0.25*testRate)))
	if inst.Active() {
		t.Fatal("velocity 0 note-on did not release the note")
	}
}

func TestInstrumentChannelFilter(t *testing.T) {
	inst := scenarioInstrument(t, WithChannel(3))
	ev := intmidi.On(60, 127)
	ev.Channel = 5
	inst.Post(ev)
	inst.Process(make([]float32, 128))
	if inst.Active() {
		t.Fatal("event on channel 5 reached a channel 3 instrument")
	}
	ev.Channel = 3
	inst.Post(ev)
	inst.Process(make([]float32, 128))
	if !inst.Active() {
		t.Fatal("event on channel 3 was ignored")
	}
}

func TestInstrumentParameters(t *testing.T) {
	inst, err := NewInstrument(testRate)
	if err != nil {
		t.Fatalf("new instrument: %v", err)
	}
	if got := inst.ParameterCount(); got != 5 {
		t.Fatalf("ParameterCount = %d, want 5", got)
	}
	wantNames := []string{"Oscillator", "Attack", "Decay", "Sustain", "Release"}
	for i, want := range wantNames {
		if got := inst.ParameterName(uint8(i)); got != want {
			t.Fatalf("ParameterName(%d) = %q, want %q", i, got, want)
		}
		if got, want := inst.GetParameter(uint8(i)), intparams.Defaults[i]; got != want {
			t.Fatalf("default %s = %v, want %v", wantNames[i], got, want)
		}
	}
	inst.SetParameter(ParamSustain, 0.25)
	if got := inst.GetParameter(ParamSustain); got != 0.25 {
		t.Fatalf("sustain = %v, want 0.25", got)
	}
	// raw values are stored unclamped
	inst.SetParameter(ParamAttack, 3)
	if got := inst.GetParameter(ParamAttack); got != 3 {
		t.Fatalf("attack = %v, want 3", got)
	}
	inst.SetParameter(42, 1)
	if got := inst.GetParameter(42); got != 0 {
		t.Fatalf("unknown parameter = %v, want 0", got)
	}
	if got := inst.ParameterName(42); got != "unknown" {
		t.Fatalf("unknown parameter name = %q", got)
	}
}

func TestInstrumentConcurrentParameterWrites(t *testing.T) {
	inst := scenarioInstrument(t)
	inst.NoteOn(60, 127)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := float32(0); ; v += 0.01 {
				select {
				case <-stop:
					return
				default:
				}
				inst.SetParameter(uint8(w%intparams.Count), v-float32(int(v)))
			}
		}()
	}
	buf := make([]float32, 256)
	for range 200 {
		inst.Process(buf)
		for i, s := range buf {
			if math.IsNaN(float64(s)) || s > 1 || s < -1 {
				t.Errorf("sample %d out of range: %v", i, s)
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestNewInstrumentValidation(t *testing.T) {
	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := NewInstrument(rate); !errors.Is(err, ErrInvalidSampleRate) {
			t.Fatalf("NewInstrument(%v) err = %v, want ErrInvalidSampleRate", rate, err)
		}
	}
	cases := []struct {
		name string
		opt  Option
	}{
		{"block", WithMaxBlockSize(0)},
		{"declick", WithDeclick(-time.Millisecond)},
		{"channel-low", WithChannel(-2)},
		{"channel-high", WithChannel(16)},
		{"queue", WithQueueSize(0)},
		{"range", WithTimeRange(TimeRange{Curve: CurveExponential, Min: 0, Max: 2})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewInstrument(testRate, tc.opt); !errors.Is(err, ErrInvalidOption) {
				t.Fatalf("err = %v, want ErrInvalidOption", err)
			}
		})
	}
}

func TestInstrumentTimeRange(t *testing.T) {
	inst, err := NewInstrument(testRate,
		WithDeclick(0),
		WithTimeRange(TimeRange{Curve: CurveLinear, Min: 0, Max: 0.01}),
		WithParameter(ParamAttack, 1),
		WithParameter(ParamDecay, 0),
	)
	if err != nil {
		t.Fatalf("new instrument: %v", err)
	}
	inst.NoteOn(69, 127)
	// attack knob at 1 maps to 10ms: after 20ms the voice is at sustain
	inst.Process(make([]float32, 2*int(0.02*testRate)))
	if got := inst.engine.Level(); got != 1 {
		t.Fatalf("level = %v, want 1", got)
	}
}

func TestSetSampleRate(t *testing.T) {
	inst := scenarioInstrument(t)
	for _, rate := range []float64{0, -48000, math.NaN(), math.Inf(-1)} {
		if err := inst.SetSampleRate(rate); !errors.Is(err, ErrInvalidSampleRate) {
			t.Fatalf("SetSampleRate(%v) err = %v", rate, err)
		}
	}
	if got := inst.SampleRate(); got != testRate {
		t.Fatalf("rate changed after rejected update: %v", got)
	}
	inst.NoteOn(69, 127)
	inst.Process(make([]float32, 2*441*5))
	before := inst.engine.Level()
	if err := inst.SetSampleRate(48000); err != nil {
		t.Fatalf("SetSampleRate: %v", err)
	}
	inst.Process(make([]float32, 2))
	if after := inst.engine.Level(); math.Abs(after-before) > 1e-3 {
		t.Fatalf("level jumped across rate change: %v -> %v", before, after)
	}
}

func TestQueueOverflowCountsDrops(t *testing.T) {
	inst := scenarioInstrument(t, WithQueueSize(4))
	for i := range 6 {
		inst.Post(intmidi.On(uint8(60+i), 100))
	}
	if got := inst.Dropped(); got != 2 {
		t.Fatalf("Dropped = %d, want 2", got)
	}
	inst.Process(make([]float32, 2))
	n, ok := inst.engine.Current()
	if !ok || n.Pitch != 63 {
		t.Fatalf("current note = %+v %v, want pitch 63", n, ok)
	}
}

func TestInstrumentRenderDoesNotAllocate(t *testing.T) {
	inst := scenarioInstrument(t)
	outputs := [][]float32{make([]float32, 512), make([]float32, 512)}
	inst.Render(outputs, 512)
	allocs := testing.AllocsPerRun(50, func() {
		inst.Post(intmidi.On(60, 100))
		inst.Render(outputs, 512)
		inst.Post(intmidi.Off(60))
		inst.Render(outputs, 512)
	})
	if allocs != 0 {
		t.Fatalf("Render allocated %v times per run", allocs)
	}
}

func BenchmarkInstrumentRender(b *testing.B) {
	inst := scenarioInstrument(b)
	inst.NoteOn(57, 100)
	outputs := [][]float32{make([]float32, 512), make([]float32, 512)}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		inst.Render(outputs, 512)
	}
}
