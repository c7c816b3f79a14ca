package midi

import (
	"runtime"
	"sync"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		msg  gomidi.Message
		want Event
		ok   bool
	}{
		{"note on", gomidi.NoteOn(2, 60, 100), Event{Kind: NoteOn, Channel: 2, Note: 60, Velocity: 100}, true},
		{"note off", gomidi.NoteOff(0, 69), Event{Kind: NoteOff, Note: 69}, true},
		{"zero velocity note on", gomidi.NoteOn(1, 64, 0), Event{Kind: NoteOff, Channel: 1, Note: 64}, true},
		{"control change", gomidi.ControlChange(0, 7, 100), Event{}, false},
		{"pitch bend", gomidi.Pitchbend(0, 100), Event{}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := Decode(c.msg)
			if ok != c.ok || got != c.want {
				t.Fatalf("Decode = %+v, %v; want %+v, %v", got, ok, c.want, c.ok)
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	for _, ev := range []Event{
		{Kind: NoteOn, Channel: 3, Note: 72, Velocity: 90},
		{Kind: NoteOff, Channel: 15, Note: 0},
	} {
		got, ok := Decode(ev.Message())
		if !ok || got != ev {
			t.Fatalf("round trip %v = %v, %v", ev, got, ok)
		}
	}
}

func TestAccepts(t *testing.T) {
	ev := Event{Kind: NoteOn, Channel: 4}
	if !ev.Accepts(Omni) || !ev.Accepts(4) || ev.Accepts(5) {
		t.Fatal("channel filter mismatch")
	}
}

func TestQueueOrderAndCapacity(t *testing.T) {
	q := NewQueue(3)
	if q.Cap() != 4 {
		t.Fatalf("cap = %d, want 4", q.Cap())
	}
	for i := 0; i < 4; i++ {
		if !q.Push(On(uint8(i), 100)) {
			t.Fatalf("push %d failed", i)
		}
	}
	if q.Push(On(9, 100)) {
		t.Fatal("push into full queue succeeded")
	}
	if q.Drops() != 1 {
		t.Fatalf("drops = %d, want 1", q.Drops())
	}
	for i := 0; i < 4; i++ {
		ev, ok := q.Pop()
		if !ok || ev.Note != uint8(i) {
			t.Fatalf("pop %d = %v, %v", i, ev, ok)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("pop from empty queue succeeded")
	}
	// Wrap around the ring.
	for round := 0; round < 10; round++ {
		q.Push(Off(uint8(round)))
		if ev, ok := q.Pop(); !ok || ev.Note != uint8(round) {
			t.Fatalf("round %d: %v %v", round, ev, ok)
		}
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	const producers, perProducer = 4, 5000
	q := NewQueue(64)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !q.Push(Event{Kind: NoteOn, Channel: uint8(p), Note: uint8(i % 128)}) {
					runtime.Gosched()
				}
			}
		}(p)
	}

	next := make([]int, producers)
	check := func(ev Event) {
		p := int(ev.Channel)
		if int(ev.Note) != next[p]%128 {
			t.Errorf("producer %d: got note %d, want %d", p, ev.Note, next[p]%128)
		}
		next[p]++
	}
	received := 0
	for received < producers*perProducer {
		received += q.Drain(check)
		runtime.Gosched()
	}
	wg.Wait()
	for p, n := range next {
		if n != perProducer {
			t.Fatalf("producer %d delivered %d events, want %d", p, n, perProducer)
		}
	}
}
