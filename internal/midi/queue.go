package midi

import "sync/atomic"

// DefaultQueueSize is the event capacity used when none is configured.
const DefaultQueueSize = 256

type slot struct {
	seq atomic.Uint64
	ev  Event
}

// Queue is a bounded lock-free queue for any number of producers and a
// single consumer. Push never blocks: it reports false when the queue is
// full. Pop must only be called from the consumer goroutine.
type Queue struct {
	slots []slot
	mask  uint64
	_     [56]byte
	head  atomic.Uint64 // next write position
	_     [56]byte
	tail  uint64 // next read position, consumer only
	drops atomic.Uint64
}

// NewQueue returns a queue holding at least size events. The capacity is
// rounded up to a power of two.
func NewQueue(size int) *Queue {
	if size < 2 {
		size = 2
	}
	n := nextPowerOf2(size)
	q := &Queue{slots: make([]slot, n), mask: uint64(n - 1)}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Cap returns the capacity.
func (q *Queue) Cap() int { return len(q.slots) }

// Push appends ev. It returns false and counts a drop when the queue is
// full.
func (q *Queue) Push(ev Event) bool {
	for {
		pos := q.head.Load()
		s := &q.slots[pos&q.mask]
		seq := s.seq.Load()
		switch {
		case seq == pos:
			if q.head.CompareAndSwap(pos, pos+1) {
				s.ev = ev
				s.seq.Store(pos + 1)
				return true
			}
		case seq < pos:
			q.drops.Add(1)
			return false
		}
		// Another producer claimed pos; retry with a fresh head.
	}
}

// Pop removes the oldest event.
func (q *Queue) Pop() (Event, bool) {
	s := &q.slots[q.tail&q.mask]
	if s.seq.Load() != q.tail+1 {
		return Event{}, false
	}
	ev := s.ev
	s.seq.Store(q.tail + q.mask + 1)
	q.tail++
	return ev, true
}

// Drain calls fn for every queued event in order.
func (q *Queue) Drain(fn func(Event)) int {
	n := 0
	for {
		ev, ok := q.Pop()
		if !ok {
			return n
		}
		fn(ev)
		n++
	}
}

// Drops returns the number of events rejected because the queue was full.
func (q *Queue) Drops() uint64 { return q.drops.Load() }
